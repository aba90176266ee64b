package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/logic/session"
)

// Session is the part of the capture controller exposed over HTTP.
type Session interface {
	State() session.State
	Capture(ctx context.Context) (*session.CaptureResult, error)
	SwitchLens() (session.State, error)
	ToggleFlash() (session.State, error)
	Dismiss(ctx context.Context) error
	Frame(ctx context.Context) ([]byte, error)
}

// StateView is the JSON form of session.State.
type StateView struct {
	State      string `json:"state"`
	Permission string `json:"permission"`
	Mode       string `json:"mode,omitempty"`
	Facing     string `json:"facing"`
	Flash      string `json:"flash"`
	Ready      bool   `json:"ready"`
	Capturing  bool   `json:"capturing"`
	CanCapture bool   `json:"can_capture"`
	CanToggle  bool   `json:"can_toggle"`
}

// NewStateView converts a session state for the page.
func NewStateView(s session.State) StateView {
	v := StateView{
		State:      s.Kind.String(),
		Permission: s.Permission().String(),
		Facing:     s.Facing.String(),
		Flash:      s.Flash.String(),
		Ready:      s.Ready,
		Capturing:  s.Capturing,
		CanCapture: s.CanCapture(),
		CanToggle:  s.CanToggle(),
	}
	if s.Kind == session.StateLive || s.Kind == session.StatePreview {
		v.Mode = s.Mode().String()
	}
	return v
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Session     Session
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If sess is nil, every session route returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, sess Session, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Session:     sess,
		staticFS:    staticFS,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, session.ErrCaptureFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrCameraNotReady),
		errors.Is(err, session.ErrPreviewActive),
		errors.Is(err, session.ErrNotInPreview),
		errors.Is(err, session.ErrCaptureInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"error": err.Error(),
		"state": NewStateView(h.Session.State()),
	})
}

func (h *Handlers) available(w http.ResponseWriter) bool {
	if h.Session == nil {
		http.Error(w, "camera session not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState handles GET /state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(h.Session.State()))
}

// HandleCapture handles POST /capture. The photo is taken synchronously;
// saving and uploading continue in the background and report through the
// status stream.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	res, err := h.Session.Capture(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectWait)
		defer cancel()
		h.Broadcaster.Broadcast(sideEffectOutcome(ctx, res))
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "preview",
		"state":  NewStateView(h.Session.State()),
	})
}

// sideEffectWait bounds how long a capture's save and upload are followed.
const sideEffectWait = 2 * time.Minute

// sideEffectOutcome waits for the save and upload of a capture and
// describes how they ended. A task still running when ctx ends is
// reported as such, not as finished.
func sideEffectOutcome(ctx context.Context, res *session.CaptureResult) (level, msg string) {
	if _, err := res.Persist.Wait(ctx); err != nil {
		debug.Verbose("Capture save: %v", err)
		if ctx.Err() != nil {
			return session.NoticeError, "Photo save still running after " + sideEffectWait.String()
		}
		return session.NoticeError, "Photo save failed: " + err.Error()
	}
	if res.Upload == nil {
		return session.NoticeInfo, "Photo saved"
	}
	if _, err := res.Upload.Wait(ctx); err != nil {
		debug.Verbose("Capture upload: %v", err)
		if ctx.Err() != nil {
			return session.NoticeError, "Photo saved; upload still running after " + sideEffectWait.String()
		}
		return session.NoticeError, "Photo saved; upload failed: " + err.Error()
	}
	return session.NoticeInfo, "Photo saved and uploaded"
}

// HandleLens handles POST /lens.
func (h *Handlers) HandleLens(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	s, err := h.Session.SwitchLens()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(s))
}

// HandleFlash handles POST /flash.
func (h *Handlers) HandleFlash(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	s, err := h.Session.ToggleFlash()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(s))
}

// HandleDismiss handles POST /dismiss.
func (h *Handlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	if err := h.Session.Dismiss(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(h.Session.State()))
}

// HandleFrame handles GET /frame: the current live frame, or the frozen
// picture while in preview.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	frame, err := h.Session.Frame(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(frame) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
