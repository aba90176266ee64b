package camera

import (
	"context"
	"fmt"
)

// Facing selects the active lens.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "back"
}

// Toggle returns the other lens.
func (f Facing) Toggle() Facing {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// FlashMode is the flash setting applied to the next shot.
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashOn
)

func (m FlashMode) String() string {
	if m == FlashOn {
		return "on"
	}
	return "off"
}

// Toggle returns the other flash mode.
func (m FlashMode) Toggle() FlashMode {
	if m == FlashOff {
		return FlashOn
	}
	return FlashOff
}

// Options are the still-image options sent with every capture.
type Options struct {
	Quality               float64 // JPEG quality, 0.0-1.0
	IncludeEncodedPayload bool    // return the image as base64 text
}

// DefaultOptions returns quality 0.9 with the encoded payload included.
func DefaultOptions() Options {
	return Options{Quality: 0.9, IncludeEncodedPayload: true}
}

// Validate checks that Quality lies in [0,1].
func (o Options) Validate() error {
	if o.Quality < 0 || o.Quality > 1 || o.Quality != o.Quality {
		return fmt.Errorf("quality must be between 0 and 1, got %v", o.Quality)
	}
	return nil
}

// JPEGQuality maps Quality onto the 1-100 scale used by encoders.
func (o Options) JPEGQuality() int {
	q := int(o.Quality*100 + 0.5)
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Request is one capture call: the fixed options plus the lens and flash
// currently selected on the screen.
type Request struct {
	Options Options
	Facing  Facing
	Flash   FlashMode
}

// Picture is the result of one capture. An empty EncodedPayload means the
// camera produced nothing usable.
type Picture struct {
	EncodedPayload string // base64 JPEG
}

// Binding is the high-level interface to a camera, regardless of how it's
// driven (synthetic frames, an external still-capture program, ...).
type Binding interface {
	// Capture takes one still image.
	Capture(ctx context.Context, req Request) (Picture, error)
	// PausePreview freezes the feed on the last captured image.
	PausePreview(ctx context.Context) error
	// ResumePreview restarts the live feed.
	ResumePreview(ctx context.Context) error
	// OnReady registers fn to be called once the camera can take pictures.
	// If the camera is already ready fn is called right away.
	OnReady(fn func())
	// Frame returns the frame currently shown: the frozen picture while
	// paused, a fresh live frame otherwise. JPEG encoded.
	Frame(ctx context.Context, facing Facing) ([]byte, error)
	Close() error
}
