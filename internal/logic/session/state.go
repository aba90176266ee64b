package session

import "github.com/cjeanneret/SnapGo/internal/hw/camera"

// Kind is the controller's top-level state.
type Kind int

const (
	StateUninitialized Kind = iota // permission request not settled yet
	StateDenied                    // camera permission refused; terminal
	StateLive                      // streaming, accepts captures
	StatePreview                   // frozen on the last shot until dismissed
)

func (k Kind) String() string {
	switch k {
	case StateDenied:
		return "denied"
	case StateLive:
		return "live"
	case StatePreview:
		return "preview"
	default:
		return "uninitialized"
	}
}

// Permission is the tri-state camera permission.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Mode is the live/preview session mode.
type Mode int

const (
	ModeLive Mode = iota
	ModePreview
)

func (m Mode) String() string {
	if m == ModePreview {
		return "preview"
	}
	return "live"
}

// State is a snapshot of the controller. Facing, Flash and Ready only carry
// meaning in Live and Preview.
type State struct {
	Kind      Kind
	Facing    camera.Facing
	Flash     camera.FlashMode
	Ready     bool
	Capturing bool // a camera capture call is in flight (Live only)
}

// Permission derives the camera permission from Kind.
func (s State) Permission() Permission {
	switch s.Kind {
	case StateUninitialized:
		return PermissionUnknown
	case StateDenied:
		return PermissionDenied
	default:
		return PermissionGranted
	}
}

// Mode returns ModePreview in Preview and ModeLive otherwise.
func (s State) Mode() Mode {
	if s.Kind == StatePreview {
		return ModePreview
	}
	return ModeLive
}

// CanCapture reports whether a capture would be accepted.
func (s State) CanCapture() bool {
	return s.Kind == StateLive && s.Ready && !s.Capturing
}

// CanToggle reports whether lens and flash toggles are enabled.
func (s State) CanToggle() bool {
	return s.Kind == StateLive && s.Ready
}
