package camera

import (
	"context"
	"fmt"
	"os"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// Permissions answers the camera and media-library permission prompts.
type Permissions interface {
	RequestCamera(ctx context.Context) (bool, error)
	RequestMediaLibrary(ctx context.Context) (bool, error)
}

// StaticPermissions returns fixed answers, typically taken from the config file.
type StaticPermissions struct {
	Camera       bool
	MediaLibrary bool
}

func (p StaticPermissions) RequestCamera(ctx context.Context) (bool, error) {
	return p.Camera, ctx.Err()
}

func (p StaticPermissions) RequestMediaLibrary(ctx context.Context) (bool, error) {
	return p.MediaLibrary, ctx.Err()
}

// DevicePermissions grants camera access when the device node can be opened
// for reading by the current user.
type DevicePermissions struct {
	Device       string
	MediaLibrary bool
}

func (p DevicePermissions) RequestCamera(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f, err := os.Open(p.Device)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("camera device %s: %w", p.Device, err)
		}
		debug.Info("Camera device %s not readable: %v", p.Device, err)
		return false, nil
	}
	f.Close()
	return true, nil
}

func (p DevicePermissions) RequestMediaLibrary(ctx context.Context) (bool, error) {
	return p.MediaLibrary, ctx.Err()
}
