package camera

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
)

// RunFunc runs a program and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandConfig configures a Command camera.
type CommandConfig struct {
	Program    string        // e.g. "libcamera-still"
	Device     string        // device node polled for readiness
	BackIndex  int           // --camera index of the back lens
	FrontIndex int           // --camera index of the front lens
	ExtraArgs  []string      // appended to every invocation
	FlashPin   int           // GPIO pin of the flash LED. 0 = no flash.
	FlashLead  time.Duration // LED on-time before the shutter
	PollEvery  time.Duration // readiness poll interval
}

// Command is a Binding that shells out to a still-capture program writing a
// JPEG to stdout, e.g. libcamera-still. The flash is an LED on a GPIO pin,
// lit around the shot.
//
// Invocation:
//
//	<program> -n -t 1 -e jpg -q <quality> --camera <index> [extra...] -o -
type Command struct {
	cfg  CommandConfig
	gpio gpio.Driver
	run  RunFunc

	mu        sync.Mutex
	paused    bool
	capturing bool // a still is being taken; the device is busy
	last      []byte
	stop   chan struct{}
	closed bool
}

// NewCommand creates a command camera. g may be nil when no flash is wired.
func NewCommand(cfg CommandConfig, g gpio.Driver) *Command {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 500 * time.Millisecond
	}
	if cfg.FlashPin > 0 && g != nil {
		_ = g.SetupPin(cfg.FlashPin, gpio.Output)
		_ = g.WritePin(cfg.FlashPin, gpio.Low)
	}
	return &Command{
		cfg:  cfg,
		gpio: g,
		run:  execRun,
		stop: make(chan struct{}),
	}
}

// WithRunner replaces the process runner. Used by tests.
func (c *Command) WithRunner(run RunFunc) *Command {
	c.run = run
	return c
}

func (c *Command) args(quality int, facing Facing) []string {
	index := c.cfg.BackIndex
	if facing == FacingFront {
		index = c.cfg.FrontIndex
	}
	args := []string{
		"-n", "-t", "1", "-e", "jpg",
		"-q", strconv.Itoa(quality),
		"--camera", strconv.Itoa(index),
	}
	args = append(args, c.cfg.ExtraArgs...)
	return append(args, "-o", "-")
}

func (c *Command) flashWired() bool {
	return c.cfg.FlashPin > 0 && c.gpio != nil
}

func (c *Command) Capture(ctx context.Context, req Request) (Picture, error) {
	if err := req.Options.Validate(); err != nil {
		return Picture{}, err
	}

	c.mu.Lock()
	c.capturing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.capturing = false
		c.mu.Unlock()
	}()

	if req.Flash == FlashOn && c.flashWired() {
		if err := c.gpio.WritePin(c.cfg.FlashPin, gpio.High); err != nil {
			return Picture{}, fmt.Errorf("flash on: %w", err)
		}
		defer func() {
			if err := c.gpio.WritePin(c.cfg.FlashPin, gpio.Low); err != nil {
				debug.Error(fmt.Errorf("flash off: %w", err))
			}
		}()
		select {
		case <-time.After(c.cfg.FlashLead):
		case <-ctx.Done():
			return Picture{}, ctx.Err()
		}
	}

	args := c.args(req.Options.JPEGQuality(), req.Facing)
	debug.Verbose("Camera: %s %v", c.cfg.Program, args)
	out, err := c.run(ctx, c.cfg.Program, args...)
	if err != nil {
		return Picture{}, fmt.Errorf("run %s: %w", c.cfg.Program, err)
	}

	c.mu.Lock()
	if len(out) > 0 {
		c.last = out
	}
	c.mu.Unlock()

	if len(out) == 0 || !req.Options.IncludeEncodedPayload {
		return Picture{}, nil
	}
	return Picture{EncodedPayload: base64.StdEncoding.EncodeToString(out)}, nil
}

func (c *Command) PausePreview(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	return nil
}

func (c *Command) ResumePreview(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	return nil
}

// OnReady polls the device node until it appears, then calls fn once.
func (c *Command) OnReady(fn func()) {
	if c.devicePresent() {
		fn()
		return
	}
	go func() {
		ticker := time.NewTicker(c.cfg.PollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if c.devicePresent() {
					debug.Info("Camera device %s is present", c.cfg.Device)
					fn()
					return
				}
			}
		}
	}()
}

func (c *Command) devicePresent() bool {
	if c.cfg.Device == "" {
		return true
	}
	_, err := os.Stat(c.cfg.Device)
	return err == nil
}

// Frame grabs a low-quality still for the live view. While paused, or while
// a capture holds the device, it returns the last picture instead (nil if
// there is none yet).
func (c *Command) Frame(ctx context.Context, facing Facing) ([]byte, error) {
	c.mu.Lock()
	if (c.paused && c.last != nil) || c.capturing {
		last := c.last
		c.mu.Unlock()
		return last, nil
	}
	c.mu.Unlock()

	out, err := c.run(ctx, c.cfg.Program, c.args(40, facing)...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", c.cfg.Program, err)
	}
	return out, nil
}

func (c *Command) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	if c.flashWired() {
		return c.gpio.WritePin(c.cfg.FlashPin, gpio.Low)
	}
	return nil
}
