package session

import "errors"

var (
	// ErrPermissionDenied: camera access refused; all camera functions halt.
	ErrPermissionDenied = errors.New("no access to camera")
	// ErrCameraNotReady: the binding has not signalled readiness yet.
	ErrCameraNotReady = errors.New("camera not ready")
	// ErrCaptureFailed: the camera returned no payload.
	ErrCaptureFailed = errors.New("capture failed")

	ErrNotStarted        = errors.New("session not started")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrPreviewActive     = errors.New("preview active")
	ErrNotInPreview      = errors.New("not in preview")
	ErrCaptureInProgress = errors.New("capture already in progress")
)
