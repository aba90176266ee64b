package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera types understood by newCameraFromConfig.
const (
	CameraMock    = "mock"
	CameraCommand = "command"
)

// Permission values accepted in PermissionsConfig.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionDevice  = "device" // granted when the camera device node is readable
)

// CameraConfig describes how to talk to the camera.
// Type selects a concrete implementation ("mock" or "command").
type CameraConfig struct {
	Type          string   `yaml:"type"`            // "mock" or "command"
	Device        string   `yaml:"device"`          // e.g., "/dev/video0" (command only)
	Command       string   `yaml:"command"`         // still-capture program, e.g. "libcamera-still"
	ExtraArgs     []string `yaml:"extra_args"`      // appended to the capture command line
	BackIndex     int      `yaml:"back_index"`      // camera index used for the back lens
	FrontIndex    int      `yaml:"front_index"`     // camera index used for the front lens
	FlashPin      int      `yaml:"flash_pin"`       // GPIO pin for the flash LED (BCM). 0 = no flash.
	FlashLeadMs   int      `yaml:"flash_lead_ms"`   // LED on-time before the shutter (ms)
	WarmupMs      int      `yaml:"warmup_ms"`       // delay before the camera reports ready (ms)
	FrameWidthPx  int      `yaml:"frame_width_px"`  // mock frame width
	FrameHeightPx int      `yaml:"frame_height_px"` // mock frame height
}

// CaptureConfig holds the still-image options sent to the camera on every shot.
type CaptureConfig struct {
	Quality               *float64 `yaml:"quality"`                 // 0.0-1.0, default 0.9
	IncludeEncodedPayload *bool    `yaml:"include_encoded_payload"` // default true
}

// StorageConfig describes where captured photos land on disk.
type StorageConfig struct {
	DocumentDir string `yaml:"document_dir"` // working directory for the last photo
	FileName    string `yaml:"file_name"`    // fixed file name, overwritten on every capture
	LibraryDir  string `yaml:"library_dir"`  // media library directory
	CatalogPath string `yaml:"catalog_path"` // SQLite catalog for the media library
}

// UploadConfig describes the remote image host.
type UploadConfig struct {
	Enabled  *bool  `yaml:"enabled"`  // default true
	Endpoint string `yaml:"endpoint"` // overrides the URL built from Account
	Account  string `yaml:"account"`  // cloud name
	Preset   string `yaml:"preset"`   // unsigned upload preset
}

// PermissionsConfig holds the answers given to the permission prompts.
type PermissionsConfig struct {
	Camera       string `yaml:"camera"`        // "granted", "denied" or "device"
	MediaLibrary string `yaml:"media_library"` // "granted" or "denied"
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Capture     CaptureConfig     `yaml:"capture"`
	Storage     StorageConfig     `yaml:"storage"`
	Upload      UploadConfig      `yaml:"upload"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, validates it and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if cfg.Camera.Type == "" {
		cfg.Camera.Type = CameraMock
	}
	switch cfg.Camera.Type {
	case CameraMock:
	case CameraCommand:
		if cfg.Camera.Command == "" {
			cfg.Camera.Command = "libcamera-still"
		}
		if cfg.Camera.Device == "" {
			cfg.Camera.Device = "/dev/video0"
		}
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
	if cfg.Camera.FlashPin < 0 {
		return nil, fmt.Errorf("camera.flash_pin must be >= 0, got %d", cfg.Camera.FlashPin)
	}
	if cfg.Camera.FlashLeadMs <= 0 {
		cfg.Camera.FlashLeadMs = 150 // 150ms LED lead time
	}
	if cfg.Camera.WarmupMs < 0 {
		cfg.Camera.WarmupMs = 0
	}
	if cfg.Camera.FrameWidthPx <= 0 {
		cfg.Camera.FrameWidthPx = 320
	}
	if cfg.Camera.FrameHeightPx <= 0 {
		cfg.Camera.FrameHeightPx = 240
	}

	if cfg.Capture.Quality == nil {
		cfg.Capture.Quality = floatPtr(0.9)
	}
	if q := *cfg.Capture.Quality; math.IsNaN(q) || q < 0 || q > 1 {
		return nil, fmt.Errorf("capture.quality must be between 0 and 1, got %v", q)
	}
	if cfg.Capture.IncludeEncodedPayload == nil {
		cfg.Capture.IncludeEncodedPayload = boolPtr(true)
	}

	if cfg.Storage.DocumentDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Storage.DocumentDir = filepath.Join(home, ".snapgo", "documents")
	}
	if cfg.Storage.FileName == "" {
		cfg.Storage.FileName = "tin_photo.png"
	}
	if cfg.Storage.FileName != filepath.Base(cfg.Storage.FileName) {
		return nil, fmt.Errorf("storage.file_name must be a bare file name, got %q", cfg.Storage.FileName)
	}
	if cfg.Storage.LibraryDir == "" {
		cfg.Storage.LibraryDir = filepath.Join(filepath.Dir(cfg.Storage.DocumentDir), "library")
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = filepath.Join(cfg.Storage.LibraryDir, "catalog.db")
	}

	if cfg.Upload.Enabled == nil {
		cfg.Upload.Enabled = boolPtr(true)
	}
	if cfg.Upload.Account == "" {
		cfg.Upload.Account = "dxlys0taq"
	}
	if cfg.Upload.Preset == "" {
		cfg.Upload.Preset = "react-native-camera-upload"
	}

	if cfg.Permissions.Camera == "" {
		cfg.Permissions.Camera = PermissionGranted
	}
	switch cfg.Permissions.Camera {
	case PermissionGranted, PermissionDenied, PermissionDevice:
	default:
		return nil, fmt.Errorf("permissions.camera must be granted, denied or device, got %q", cfg.Permissions.Camera)
	}
	if cfg.Permissions.MediaLibrary == "" {
		cfg.Permissions.MediaLibrary = PermissionGranted
	}
	switch cfg.Permissions.MediaLibrary {
	case PermissionGranted, PermissionDenied:
	default:
		return nil, fmt.Errorf("permissions.media_library must be granted or denied, got %q", cfg.Permissions.MediaLibrary)
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	return &cfg, nil
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

// PhotoPath returns the fixed local path of the last captured photo.
func (c *Config) PhotoPath() string {
	return filepath.Join(c.Storage.DocumentDir, c.Storage.FileName)
}

// UploadEndpoint returns the image upload URL.
func (c *Config) UploadEndpoint() string {
	if c.Upload.Endpoint != "" {
		return c.Upload.Endpoint
	}
	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", c.Upload.Account)
}

// UploadEnabled reports whether captures are sent to the image host.
func (c *Config) UploadEnabled() bool {
	return c.Upload.Enabled == nil || *c.Upload.Enabled
}

// Quality returns the capture quality; an explicit 0 is kept.
func (c *Config) Quality() float64 {
	if c.Capture.Quality == nil {
		return 0.9
	}
	return *c.Capture.Quality
}

// IncludeEncodedPayload reports whether the camera must return the base64 payload.
func (c *Config) IncludeEncodedPayload() bool {
	return c.Capture.IncludeEncodedPayload == nil || *c.Capture.IncludeEncodedPayload
}

// FlashLead returns how long the flash LED burns before the shutter.
func (c *Config) FlashLead() time.Duration {
	return time.Duration(c.Camera.FlashLeadMs) * time.Millisecond
}

// Warmup returns the delay before the camera reports ready.
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.Camera.WarmupMs) * time.Millisecond
}
