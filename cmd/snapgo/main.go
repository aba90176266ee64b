package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cjeanneret/SnapGo/internal/config"
	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
	"github.com/cjeanneret/SnapGo/internal/logic/session"
	"github.com/cjeanneret/SnapGo/internal/storage"
	"github.com/cjeanneret/SnapGo/internal/tui"
	"github.com/cjeanneret/SnapGo/internal/upload"
	"github.com/cjeanneret/SnapGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	useTUI := flag.Bool("tui", false, "run the terminal camera screen")
	quality := flag.Float64("quality", 0, "override capture quality (0-1]; 0 keeps the config value")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateQualityOverride(*quality); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *quality)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// GPIO is only needed to drive a flash LED
	var gpioDriver gpio.Driver
	if cfg.Camera.Type == config.CameraCommand && cfg.Camera.FlashPin > 0 {
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		debug.Step(1, "Initializing GPIO driver")
		gpioDriver, err = gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
	}

	debug.Step(2, "Initializing camera")
	cam, err := newCameraFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	defer cam.Close()
	debug.Value("Camera type", cfg.Camera.Type)

	debug.Step(3, "Opening media library")
	lib, err := storage.OpenLibrary(cfg.Storage.LibraryDir, cfg.Storage.CatalogPath,
		cfg.Permissions.MediaLibrary == config.PermissionGranted)
	if err != nil {
		log.Fatalf("open media library failed: %v", err)
	}
	defer lib.Close()
	debug.Value("Library", cfg.Storage.LibraryDir)
	debug.Value("Photo path", cfg.PhotoPath())

	deps := newDeps(cfg, cam, lib)
	debug.Value("Upload endpoint", cfg.UploadEndpoint())
	debug.Value("Upload enabled", cfg.UploadEnabled())

	switch {
	case webPort.port() > 0:
		webAddr := fmt.Sprintf(":%d", webPort.port())
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		deps.Notifier = session.MultiNotifier{session.LogNotifier{}, broadcaster}
		ctrl, err := session.New(deps)
		if err != nil {
			log.Fatalf("create session failed: %v", err)
		}
		go startSession(ctx, ctrl)

		srv, err := web.NewServer(webAddr, broadcaster, ctrl)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}

	case *useTUI:
		// The alternate screen owns stdout; debug output goes to a file.
		logPath := filepath.Join(filepath.Dir(cfg.Storage.DocumentDir), "snapgo.log")
		if f, err := openLogFile(logPath); err == nil {
			debug.SetOutput(f)
			defer f.Close()
		} else {
			log.Printf("debug log disabled: %v", err)
			debug.SetOutput(io.Discard)
		}

		notices := tui.NewChanNotifier()
		deps.Notifier = session.MultiNotifier{session.LogNotifier{}, notices}
		ctrl, err := session.New(deps)
		if err != nil {
			log.Fatalf("create session failed: %v", err)
		}
		p := tea.NewProgram(tui.New(ctrl, notices), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Fatalf("tui: %v", err)
		}

	default:
		ctrl, err := session.New(deps)
		if err != nil {
			log.Fatalf("create session failed: %v", err)
		}
		if err := runOnce(ctx, ctrl, readyTimeout); err != nil {
			log.Fatalf("single capture: %v", err)
		}
		fmt.Println(cfg.PhotoPath())
	}
}

const readyTimeout = 10 * time.Second

// newDeps wires the session collaborators from configuration. The caller
// picks the Notifier.
func newDeps(cfg *config.Config, cam camera.Binding, lib session.Library) session.Deps {
	deps := session.Deps{
		Camera:      cam,
		Permissions: newPermissionsFromConfig(cfg),
		Store:       storage.FileStore{},
		Library:     lib,
		PhotoPath:   cfg.PhotoPath(),
		Options: camera.Options{
			Quality:               cfg.Quality(),
			IncludeEncodedPayload: cfg.IncludeEncodedPayload(),
		},
	}
	if cfg.UploadEnabled() {
		deps.Uploader = upload.NewClient(cfg.UploadEndpoint(), cfg.Upload.Preset)
	}
	return deps
}

func startSession(ctx context.Context, ctrl *session.Controller) {
	if err := ctrl.Start(ctx); err != nil {
		debug.Info("Session start: %v", err)
	}
}

// runOnce starts the session, waits for the camera, takes one photo and
// waits for it to be saved and uploaded. A failed upload is reported but
// is not an error: the photo is already on disk.
func runOnce(ctx context.Context, ctrl *session.Controller, timeout time.Duration) error {
	debug.Section("Single capture")
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	if err := waitReady(ctx, ctrl, timeout); err != nil {
		return err
	}
	res, err := ctrl.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if _, err := res.Persist.Wait(ctx); err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	if res.Upload != nil {
		if _, err := res.Upload.Wait(ctx); err != nil {
			log.Printf("photo saved, upload failed: %v", err)
		}
	}
	debug.Section("Capture complete")
	return nil
}

// openLogFile opens path for appending, creating its directory first.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// waitReady polls the session until the camera reports ready.
func waitReady(ctx context.Context, ctrl *session.Controller, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ctrl.State().Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return session.ErrCameraNotReady
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// validateQualityOverride checks a non-zero -quality value. Zero means "use config".
func validateQualityOverride(q float64) error {
	if q == 0 {
		return nil
	}
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 || q > 1 {
		return fmt.Errorf("quality must be between 0 and 1, got %g", q)
	}
	return nil
}

// applyOverrides mutates cfg with CLI overrides. Only non-zero values are applied.
func applyOverrides(cfg *config.Config, quality float64) {
	if quality > 0 {
		cfg.Capture.Quality = &quality
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(g gpio.Driver, cfg *config.Config) (camera.Binding, error) {
	switch cfg.Camera.Type {
	case config.CameraMock:
		return camera.NewMock(cfg.Camera.FrameWidthPx, cfg.Camera.FrameHeightPx, cfg.Warmup()), nil
	case config.CameraCommand:
		return camera.NewCommand(camera.CommandConfig{
			Program:    cfg.Camera.Command,
			Device:     cfg.Camera.Device,
			BackIndex:  cfg.Camera.BackIndex,
			FrontIndex: cfg.Camera.FrontIndex,
			ExtraArgs:  cfg.Camera.ExtraArgs,
			FlashPin:   cfg.Camera.FlashPin,
			FlashLead:  cfg.FlashLead(),
		}, g), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newPermissionsFromConfig maps the configured permission answers.
func newPermissionsFromConfig(cfg *config.Config) camera.Permissions {
	library := cfg.Permissions.MediaLibrary == config.PermissionGranted
	if cfg.Permissions.Camera == config.PermissionDevice {
		return camera.DevicePermissions{Device: cfg.Camera.Device, MediaLibrary: library}
	}
	return camera.StaticPermissions{
		Camera:       cfg.Permissions.Camera == config.PermissionGranted,
		MediaLibrary: library,
	}
}
