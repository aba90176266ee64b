package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/storage"
	"github.com/cjeanneret/SnapGo/internal/upload"
)

// Library saves a persisted file into the device media library.
type Library interface {
	SaveToLibrary(ctx context.Context, path string) (storage.Asset, error)
}

// Uploader sends a base64 payload to the image host.
type Uploader interface {
	Upload(ctx context.Context, payload string) (upload.Result, error)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Camera      camera.Binding
	Permissions camera.Permissions
	Store       storage.Writer
	Library     Library  // optional
	Uploader    Uploader // optional; nil disables uploads
	Notifier    Notifier // optional; defaults to LogNotifier
	PhotoPath   string   // fixed local file, overwritten by every capture
	Options     camera.Options
}

// CaptureResult carries the two side effects forked by a successful capture.
// Upload is nil when no uploader is configured.
type CaptureResult struct {
	Persist *Task[storage.Asset]
	Upload  *Task[upload.Result]
}

// Wait blocks until both side effects finished (or ctx ends) and returns the
// first error seen.
func (r *CaptureResult) Wait(ctx context.Context) error {
	_, persistErr := r.Persist.Wait(ctx)
	var uploadErr error
	if r.Upload != nil {
		_, uploadErr = r.Upload.Wait(ctx)
	}
	if persistErr != nil {
		return persistErr
	}
	return uploadErr
}

// Controller is the capture session state machine:
//
//	Uninitialized -> Live | Denied   (camera permission settles; Denied is terminal)
//	Live -> Live                     (switch lens, toggle flash)
//	Live -> Preview                  (successful capture)
//	Preview -> Live                  (dismiss)
type Controller struct {
	deps Deps

	mu    sync.Mutex
	state State

	// persistMu keeps the fixed file unchanged until the library copied it.
	persistMu sync.Mutex
}

// New creates a controller in the Uninitialized state.
func New(deps Deps) (*Controller, error) {
	if deps.Camera == nil {
		return nil, fmt.Errorf("camera binding is required")
	}
	if deps.Permissions == nil {
		return nil, fmt.Errorf("permissions are required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.PhotoPath == "" {
		return nil, fmt.Errorf("photo path is required")
	}
	if err := deps.Options.Validate(); err != nil {
		return nil, fmt.Errorf("capture options: %w", err)
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	return &Controller{deps: deps}, nil
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setKind(k Kind) {
	debug.Transition(c.state.Kind.String(), k.String())
	c.state.Kind = k
}

// Start requests camera permission once. Granted moves to Live and hooks the
// camera readiness signal; refused (or a failed request) moves to Denied for
// the rest of the session. The media-library request is fired without
// waiting for or keeping its answer.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Kind != StateUninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	go func() {
		ok, err := c.deps.Permissions.RequestMediaLibrary(context.WithoutCancel(ctx))
		if err != nil {
			debug.Error(fmt.Errorf("media library permission: %w", err))
			return
		}
		debug.Info("Media library permission granted: %v", ok)
	}()

	granted, err := c.deps.Permissions.RequestCamera(ctx)

	c.mu.Lock()
	if c.state.Kind != StateUninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err != nil || !granted {
		c.setKind(StateDenied)
		c.mu.Unlock()
		if err != nil {
			debug.Error(fmt.Errorf("camera permission: %w", err))
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		debug.Info("Camera permission denied")
		return ErrPermissionDenied
	}
	c.setKind(StateLive)
	c.mu.Unlock()

	debug.Info("Camera permission granted")
	c.deps.Camera.OnReady(func() { c.SetReady(true) })
	return nil
}

// SetReady records the camera readiness signal.
func (c *Controller) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Ready != ready {
		debug.Live("Camera ready: %v", ready)
	}
	c.state.Ready = ready
}

// toggleAllowed must be called with mu held.
func (c *Controller) toggleAllowed() error {
	switch c.state.Kind {
	case StateLive:
	case StatePreview:
		return ErrPreviewActive
	case StateDenied:
		return ErrPermissionDenied
	default:
		return ErrNotStarted
	}
	if !c.state.Ready {
		return ErrCameraNotReady
	}
	return nil
}

// SwitchLens flips between the back and front lens. It only changes state;
// the new lens is used by the next capture.
func (c *Controller) SwitchLens() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.toggleAllowed(); err != nil {
		return c.state, err
	}
	c.state.Facing = c.state.Facing.Toggle()
	debug.Live("Lens: %s", c.state.Facing)
	return c.state, nil
}

// ToggleFlash flips the flash mode used by the next capture.
func (c *Controller) ToggleFlash() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.toggleAllowed(); err != nil {
		return c.state, err
	}
	c.state.Flash = c.state.Flash.Toggle()
	debug.Live("Flash: %s", c.state.Flash)
	return c.state, nil
}

// Capture takes one still. On success the feed is frozen, the session moves
// to Preview and two independent side effects are started: persisting the
// photo (fixed file, then media library) and uploading it. Neither is waited
// for. A capture that yields no payload leaves the session in Live and
// starts nothing.
func (c *Controller) Capture(ctx context.Context) (*CaptureResult, error) {
	c.mu.Lock()
	switch {
	case c.state.Kind == StateDenied:
		c.mu.Unlock()
		return nil, ErrPermissionDenied
	case c.state.Kind == StateUninitialized:
		c.mu.Unlock()
		return nil, ErrNotStarted
	case c.state.Kind == StatePreview:
		c.mu.Unlock()
		return nil, ErrPreviewActive
	case !c.state.Ready:
		c.mu.Unlock()
		return nil, ErrCameraNotReady
	case c.state.Capturing:
		c.mu.Unlock()
		return nil, ErrCaptureInProgress
	}
	c.state.Capturing = true
	req := camera.Request{
		Options: c.deps.Options,
		Facing:  c.state.Facing,
		Flash:   c.state.Flash,
	}
	c.mu.Unlock()

	debug.PrintStruct("Capture request", req)
	pic, err := c.deps.Camera.Capture(ctx, req)
	if err != nil || pic.EncodedPayload == "" {
		c.mu.Lock()
		c.state.Capturing = false
		c.mu.Unlock()
		if err != nil {
			debug.Error(fmt.Errorf("capture: %w", err))
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		debug.Live("Capture returned no payload")
		return nil, ErrCaptureFailed
	}

	if err := c.deps.Camera.PausePreview(ctx); err != nil {
		debug.Error(fmt.Errorf("pause preview: %w", err))
	}

	c.mu.Lock()
	c.state.Capturing = false
	c.setKind(StatePreview)
	c.mu.Unlock()
	debug.Shot(req.Facing.String(), req.Flash.String(), len(pic.EncodedPayload))

	// Side effects outlive the request that triggered them.
	bg := context.WithoutCancel(ctx)
	payload := pic.EncodedPayload
	result := &CaptureResult{
		Persist: startTask("persist", func() (storage.Asset, error) {
			return c.persist(bg, payload)
		}),
	}
	if c.deps.Uploader != nil {
		result.Upload = startTask("upload", func() (upload.Result, error) {
			return c.upload(bg, payload)
		})
	}
	return result, nil
}

func (c *Controller) persist(ctx context.Context, payload string) (storage.Asset, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	path := c.deps.PhotoPath
	if err := c.deps.Store.WriteString(path, payload, storage.EncodingBase64); err != nil {
		err = fmt.Errorf("persist photo: %w", err)
		debug.Error(err)
		c.deps.Notifier.Notify(Notice{Level: NoticeError, Message: MsgSaveFailed})
		return storage.Asset{}, err
	}
	if c.deps.Library == nil {
		return storage.Asset{SourcePath: path}, nil
	}
	asset, err := c.deps.Library.SaveToLibrary(ctx, path)
	if err != nil {
		err = fmt.Errorf("save to library: %w", err)
		debug.Error(err)
		c.deps.Notifier.Notify(Notice{Level: NoticeError, Message: MsgSaveFailed})
		return storage.Asset{}, err
	}
	return asset, nil
}

func (c *Controller) upload(ctx context.Context, payload string) (upload.Result, error) {
	res, err := c.deps.Uploader.Upload(ctx, payload)
	if err != nil {
		debug.Error(err)
		c.deps.Notifier.Notify(Notice{Level: NoticeError, Message: MsgUploadFailed})
		return upload.Result{}, err
	}
	c.deps.Notifier.Notify(Notice{Level: NoticeInfo, Message: MsgUploadOK})
	return res, nil
}

// Dismiss leaves Preview: the live feed is resumed, then the session returns
// to Live. If resuming fails the session stays in Preview.
func (c *Controller) Dismiss(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Kind != StatePreview {
		c.mu.Unlock()
		return ErrNotInPreview
	}
	c.mu.Unlock()

	if err := c.deps.Camera.ResumePreview(ctx); err != nil {
		return fmt.Errorf("resume preview: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind == StatePreview {
		c.setKind(StateLive)
	}
	return nil
}

// Frame returns the frame the screen should show right now.
func (c *Controller) Frame(ctx context.Context) ([]byte, error) {
	s := c.State()
	switch s.Kind {
	case StateDenied:
		return nil, ErrPermissionDenied
	case StateUninitialized:
		return nil, ErrNotStarted
	}
	return c.deps.Camera.Frame(ctx, s.Facing)
}
