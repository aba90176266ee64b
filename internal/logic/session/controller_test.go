package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/storage"
	"github.com/cjeanneret/SnapGo/internal/upload"
)

// ---------- fakes ----------

// fakeCamera records binding calls.
type fakeCamera struct {
	mu        sync.Mutex
	payload   string
	err       error
	block     chan struct{} // when set, Capture waits on it
	captures  []camera.Request
	pauses    int
	resumes   int
	resumeErr error
	onReady   func()
	fireNow   bool
}

func (f *fakeCamera) Capture(ctx context.Context, req camera.Request) (camera.Picture, error) {
	f.mu.Lock()
	f.captures = append(f.captures, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return camera.Picture{EncodedPayload: f.payload}, f.err
}

func (f *fakeCamera) PausePreview(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeCamera) ResumePreview(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.resumes++
	return nil
}

func (f *fakeCamera) OnReady(fn func()) {
	f.mu.Lock()
	f.onReady = fn
	fire := f.fireNow
	f.mu.Unlock()
	if fire {
		fn()
	}
}

func (f *fakeCamera) Frame(ctx context.Context, facing camera.Facing) ([]byte, error) {
	return []byte("frame-" + facing.String()), nil
}

func (f *fakeCamera) Close() error { return nil }

func (f *fakeCamera) counts() (captures, pauses, resumes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures), f.pauses, f.resumes
}

type fakePermissions struct {
	camera       bool
	err          error
	libraryAsked chan struct{} // optional; receives once per media-library request
}

func (p fakePermissions) RequestCamera(ctx context.Context) (bool, error) { return p.camera, p.err }
func (p fakePermissions) RequestMediaLibrary(ctx context.Context) (bool, error) {
	if p.libraryAsked != nil {
		p.libraryAsked <- struct{}{}
	}
	return true, nil
}

type write struct {
	path, content string
	enc           storage.Encoding
}

type fakeStore struct {
	mu     sync.Mutex
	writes []write
	err    error
}

func (s *fakeStore) WriteString(path, content string, enc storage.Encoding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, write{path, content, enc})
	return s.err
}

type fakeLibrary struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (l *fakeLibrary) SaveToLibrary(ctx context.Context, path string) (storage.Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saved = append(l.saved, path)
	if l.err != nil {
		return storage.Asset{}, l.err
	}
	return storage.Asset{ID: "asset-1", SourcePath: path}, nil
}

type recordingNotifier struct {
	ch chan Notice
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan Notice, 16)}
}

func (r *recordingNotifier) Notify(n Notice) { r.ch <- n }

func (r *recordingNotifier) next(t *testing.T) Notice {
	t.Helper()
	select {
	case n := <-r.ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notice")
		return Notice{}
	}
}

// cloudinaryStub records upload requests and answers with response.
type cloudinaryStub struct {
	mu     sync.Mutex
	bodies []string
}

func newCloudinaryStub(t *testing.T, response string) (*cloudinaryStub, *upload.Client) {
	t.Helper()
	stub := &cloudinaryStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		stub.bodies = append(stub.bodies, string(data))
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return stub, upload.NewClient(srv.URL, upload.DefaultPreset)
}

type harness struct {
	cam      *fakeCamera
	store    *fakeStore
	library  *fakeLibrary
	notifier *recordingNotifier
	ctrl     *Controller
}

func newHarness(t *testing.T, granted bool, uploader Uploader) *harness {
	t.Helper()
	h := &harness{
		cam:      &fakeCamera{payload: "ABC123", fireNow: true},
		store:    &fakeStore{},
		library:  &fakeLibrary{},
		notifier: newRecordingNotifier(),
	}
	ctrl, err := New(Deps{
		Camera:      h.cam,
		Permissions: fakePermissions{camera: granted},
		Store:       h.store,
		Library:     h.library,
		Uploader:    uploader,
		Notifier:    h.notifier,
		PhotoPath:   "/docs/tin_photo.png",
		Options:     camera.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// ---------- construction ----------

func TestNew_RequiresDeps(t *testing.T) {
	cam := &fakeCamera{}
	cases := []struct {
		name string
		deps Deps
	}{
		{"no_camera", Deps{Permissions: fakePermissions{}, Store: &fakeStore{}, PhotoPath: "p", Options: camera.DefaultOptions()}},
		{"no_permissions", Deps{Camera: cam, Store: &fakeStore{}, PhotoPath: "p", Options: camera.DefaultOptions()}},
		{"no_store", Deps{Camera: cam, Permissions: fakePermissions{}, PhotoPath: "p", Options: camera.DefaultOptions()}},
		{"no_path", Deps{Camera: cam, Permissions: fakePermissions{}, Store: &fakeStore{}, Options: camera.DefaultOptions()}},
		{"bad_quality", Deps{Camera: cam, Permissions: fakePermissions{}, Store: &fakeStore{}, PhotoPath: "p", Options: camera.Options{Quality: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.deps); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- permissions ----------

func TestStart_Granted(t *testing.T) {
	h := newHarness(t, true, nil)
	if got := h.ctrl.State().Permission(); got != PermissionUnknown {
		t.Errorf("permission before Start = %v, want unknown", got)
	}
	h.start(t)

	s := h.ctrl.State()
	if s.Kind != StateLive || !s.Ready {
		t.Errorf("state = %+v, want ready Live", s)
	}
	if s.Permission() != PermissionGranted {
		t.Errorf("permission = %v, want granted", s.Permission())
	}
	if s.Facing != camera.FacingBack || s.Flash != camera.FlashOff {
		t.Errorf("defaults = %v/%v, want back/off", s.Facing, s.Flash)
	}
}

func TestStart_DeniedNeverReachesLive(t *testing.T) {
	h := newHarness(t, false, nil)
	err := h.ctrl.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start err = %v, want ErrPermissionDenied", err)
	}
	if h.ctrl.State().Kind != StateDenied {
		t.Fatalf("state = %v, want denied", h.ctrl.State().Kind)
	}
	if h.cam.onReady != nil {
		t.Error("readiness should not be hooked when denied")
	}

	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Capture err = %v, want ErrPermissionDenied", err)
	}
	if _, err := h.ctrl.SwitchLens(); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("SwitchLens err = %v, want ErrPermissionDenied", err)
	}
	if _, err := h.ctrl.Frame(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Frame err = %v, want ErrPermissionDenied", err)
	}
	h.ctrl.SetReady(true)
	if h.ctrl.State().CanCapture() {
		t.Error("capture must never be offered when denied")
	}

	// Denied is terminal: no re-prompt.
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}
	if h.ctrl.State().Kind != StateDenied {
		t.Error("state should remain denied")
	}
	if c, _, _ := h.cam.counts(); c != 0 {
		t.Errorf("camera captured %d times, want 0", c)
	}
}

func TestStart_AsksForMediaLibrary(t *testing.T) {
	asked := make(chan struct{}, 1)
	ctrl, err := New(Deps{
		Camera:      &fakeCamera{fireNow: true},
		Permissions: fakePermissions{camera: false, libraryAsked: asked},
		Store:       &fakeStore{},
		PhotoPath:   "/docs/tin_photo.png",
		Options:     camera.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// The library request does not depend on the camera answer.
	ctrl.Start(context.Background())

	select {
	case <-asked:
	case <-time.After(time.Second):
		t.Fatal("media library permission was never requested")
	}
	if ctrl.State().Kind != StateDenied {
		t.Errorf("state = %v, want denied", ctrl.State().Kind)
	}
}

func TestStart_PermissionErrorDenies(t *testing.T) {
	h := newHarness(t, true, nil)
	h.ctrl.deps.Permissions = fakePermissions{err: errors.New("no device")}
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start err = %v, want ErrPermissionDenied", err)
	}
	if h.ctrl.State().Kind != StateDenied {
		t.Error("permission request error should deny")
	}
}

func TestBeforeStart(t *testing.T) {
	h := newHarness(t, true, nil)
	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Capture err = %v, want ErrNotStarted", err)
	}
	if _, err := h.ctrl.ToggleFlash(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("ToggleFlash err = %v, want ErrNotStarted", err)
	}
}

// ---------- readiness ----------

func TestNotReady_ActionsHaveNoEffect(t *testing.T) {
	h := newHarness(t, true, nil)
	h.cam.fireNow = false
	h.start(t)

	before := h.ctrl.State()
	if before.Ready {
		t.Fatal("camera should not be ready yet")
	}

	if _, err := h.ctrl.SwitchLens(); !errors.Is(err, ErrCameraNotReady) {
		t.Errorf("SwitchLens err = %v, want ErrCameraNotReady", err)
	}
	if _, err := h.ctrl.ToggleFlash(); !errors.Is(err, ErrCameraNotReady) {
		t.Errorf("ToggleFlash err = %v, want ErrCameraNotReady", err)
	}
	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrCameraNotReady) {
		t.Errorf("Capture err = %v, want ErrCameraNotReady", err)
	}

	if after := h.ctrl.State(); after != before {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
	if c, p, _ := h.cam.counts(); c != 0 || p != 0 {
		t.Errorf("camera calls = %d captures, %d pauses; want none", c, p)
	}
	if len(h.store.writes) != 0 {
		t.Error("nothing should be persisted")
	}

	// The binding's callback flips readiness.
	h.cam.onReady()
	if !h.ctrl.State().Ready {
		t.Error("OnReady callback should mark the camera ready")
	}
}

// ---------- toggles ----------

func TestToggles_Live(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)

	s, err := h.ctrl.SwitchLens()
	if err != nil || s.Facing != camera.FacingFront {
		t.Fatalf("SwitchLens = %v, %v; want front", s.Facing, err)
	}
	s, err = h.ctrl.ToggleFlash()
	if err != nil || s.Flash != camera.FlashOn {
		t.Fatalf("ToggleFlash = %v, %v; want on", s.Flash, err)
	}
	if s.Kind != StateLive {
		t.Errorf("toggles must stay in Live, got %v", s.Kind)
	}
	if c, p, r := h.cam.counts(); c+p+r != 0 {
		t.Error("toggles must not touch the camera")
	}

	s, _ = h.ctrl.SwitchLens()
	if s.Facing != camera.FacingBack {
		t.Errorf("second SwitchLens = %v, want back", s.Facing)
	}
}

func TestToggles_NoOpInPreview(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	before := h.ctrl.State()
	if _, err := h.ctrl.SwitchLens(); !errors.Is(err, ErrPreviewActive) {
		t.Errorf("SwitchLens err = %v, want ErrPreviewActive", err)
	}
	if _, err := h.ctrl.ToggleFlash(); !errors.Is(err, ErrPreviewActive) {
		t.Errorf("ToggleFlash err = %v, want ErrPreviewActive", err)
	}
	if after := h.ctrl.State(); after != before {
		t.Errorf("state changed in preview: %+v -> %+v", before, after)
	}
}

func TestCapture_UsesSelectedLensAndFlash(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	h.ctrl.SwitchLens()
	h.ctrl.ToggleFlash()

	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	req := h.cam.captures[0]
	if req.Facing != camera.FacingFront || req.Flash != camera.FlashOn {
		t.Errorf("request = %+v, want front lens with flash", req)
	}
	if req.Options != camera.DefaultOptions() {
		t.Errorf("options = %+v, want quality 0.9 with payload", req.Options)
	}
}

// ---------- capture ----------

func TestCapture_Scenario(t *testing.T) {
	stub, client := newCloudinaryStub(t, `{"secure_url":"https://res.example/x.jpg"}`)
	h := newHarness(t, true, client)
	h.start(t)

	res, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if h.ctrl.State().Kind != StatePreview {
		t.Fatalf("state = %v, want preview", h.ctrl.State().Kind)
	}
	if _, p, _ := h.cam.counts(); p != 1 {
		t.Errorf("pauses = %d, want 1", p)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := res.Wait(ctx); err != nil {
		t.Fatalf("side effects: %v", err)
	}

	if len(h.store.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(h.store.writes))
	}
	w := h.store.writes[0]
	if w.path != "/docs/tin_photo.png" || w.content != "ABC123" || w.enc != storage.EncodingBase64 {
		t.Errorf("write = %+v", w)
	}
	if len(h.library.saved) != 1 || h.library.saved[0] != "/docs/tin_photo.png" {
		t.Errorf("library saves = %v", h.library.saved)
	}

	if len(stub.bodies) != 1 {
		t.Fatalf("upload requests = %d, want 1", len(stub.bodies))
	}
	want := `{"file":"data:image/jpg;base64,ABC123","upload_preset":"react-native-camera-upload"}`
	if stub.bodies[0] != want {
		t.Errorf("upload body = %s, want %s", stub.bodies[0], want)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(stub.bodies[0]), &decoded); err != nil || decoded["file"] != "data:image/jpg;base64,ABC123" {
		t.Errorf("decoded body = %v, %v", decoded, err)
	}

	n := h.notifier.next(t)
	if n.Level != NoticeInfo || n.Message != MsgUploadOK {
		t.Errorf("notice = %+v, want upload success", n)
	}
	if h.ctrl.State().Kind != StatePreview {
		t.Error("side effects must not leave Preview")
	}
}

func TestCapture_UploadWithoutSecureURL(t *testing.T) {
	_, client := newCloudinaryStub(t, `{}`)
	h := newHarness(t, true, client)
	h.start(t)

	res, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	_, upErr := res.Upload.Wait(context.Background())
	if !errors.Is(upErr, upload.ErrUploadFailed) {
		t.Errorf("upload err = %v, want ErrUploadFailed", upErr)
	}

	n := h.notifier.next(t)
	if n.Level != NoticeError || n.Message != MsgUploadFailed {
		t.Errorf("notice = %+v, want upload failure", n)
	}
	if h.ctrl.State().Kind != StatePreview {
		t.Errorf("state = %v, want preview until dismissal", h.ctrl.State().Kind)
	}
	if err := h.ctrl.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if h.ctrl.State().Kind != StateLive {
		t.Error("dismiss should return to Live")
	}
}

func TestCapture_NoPayloadStaysLive(t *testing.T) {
	_, client := newCloudinaryStub(t, `{"secure_url":"https://x"}`)
	h := newHarness(t, true, client)
	h.cam.payload = ""
	h.start(t)

	res, err := h.ctrl.Capture(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("err = %v, want ErrCaptureFailed", err)
	}
	if res != nil {
		t.Error("no side effects expected")
	}
	s := h.ctrl.State()
	if s.Kind != StateLive || s.Capturing {
		t.Errorf("state = %+v, want idle Live", s)
	}
	if _, p, _ := h.cam.counts(); p != 0 {
		t.Error("feed must not be frozen")
	}
	if len(h.store.writes) != 0 {
		t.Error("nothing should be persisted")
	}
	select {
	case n := <-h.notifier.ch:
		t.Errorf("capture failure must be silent, got notice %+v", n)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCapture_CameraErrorStaysLive(t *testing.T) {
	h := newHarness(t, true, nil)
	h.cam.err = errors.New("sensor timeout")
	h.start(t)

	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("err = %v, want ErrCaptureFailed", err)
	}
	if h.ctrl.State().Kind != StateLive {
		t.Error("state should stay Live")
	}
	// A later capture works again.
	h.cam.err = nil
	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Errorf("retry Capture: %v", err)
	}
}

func TestCapture_OncePerAction(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)

	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrPreviewActive) {
		t.Errorf("second Capture err = %v, want ErrPreviewActive", err)
	}
	if c, _, _ := h.cam.counts(); c != 1 {
		t.Errorf("captures = %d, want 1", c)
	}

	if err := h.ctrl.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Errorf("Capture after dismiss: %v", err)
	}
	if c, _, _ := h.cam.counts(); c != 2 {
		t.Errorf("captures = %d, want 2", c)
	}
}

func TestCapture_ConcurrentRejected(t *testing.T) {
	h := newHarness(t, true, nil)
	h.cam.block = make(chan struct{})
	h.start(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Capture(context.Background())
		done <- err
	}()

	deadline := time.After(time.Second)
	for !h.ctrl.State().Capturing {
		select {
		case <-deadline:
			t.Fatal("first capture never started")
		case <-time.After(time.Millisecond):
		}
	}
	if h.ctrl.State().CanCapture() {
		t.Error("CanCapture should be false while capturing")
	}
	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("concurrent Capture err = %v, want ErrCaptureInProgress", err)
	}

	close(h.cam.block)
	if err := <-done; err != nil {
		t.Fatalf("first Capture: %v", err)
	}
	if c, _, _ := h.cam.counts(); c != 1 {
		t.Errorf("captures = %d, want 1", c)
	}
}

func TestCapture_PersistFailureNotified(t *testing.T) {
	h := newHarness(t, true, nil)
	h.store.err = errors.New("disk full")
	h.start(t)

	res, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Upload != nil {
		t.Error("no upload task without an uploader")
	}
	if _, err := res.Persist.Wait(context.Background()); err == nil {
		t.Error("expected persist error")
	}
	n := h.notifier.next(t)
	if n.Level != NoticeError || n.Message != MsgSaveFailed {
		t.Errorf("notice = %+v, want save failure", n)
	}
	if len(h.library.saved) != 0 {
		t.Error("library save must not run after a failed write")
	}
}

func TestCapture_LibraryFailureNotified(t *testing.T) {
	h := newHarness(t, true, nil)
	h.library.err = storage.ErrLibraryDenied
	h.start(t)

	res, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := res.Persist.Wait(context.Background()); !errors.Is(err, storage.ErrLibraryDenied) {
		t.Errorf("persist err = %v, want ErrLibraryDenied", err)
	}
	if n := h.notifier.next(t); n.Message != MsgSaveFailed {
		t.Errorf("notice = %+v", n)
	}
}

func TestCapture_SideEffectsSurviveCancelledRequest(t *testing.T) {
	_, client := newCloudinaryStub(t, `{"secure_url":"https://x"}`)
	h := newHarness(t, true, client)
	h.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := h.ctrl.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	cancel()

	if err := res.Wait(context.Background()); err != nil {
		t.Errorf("side effects should not inherit cancellation: %v", err)
	}
}

// ---------- dismiss ----------

func TestDismiss_ReturnsToLiveWithoutReplay(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	res, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	res.Wait(context.Background())

	if err := h.ctrl.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if h.ctrl.State().Kind != StateLive {
		t.Errorf("state = %v, want live", h.ctrl.State().Kind)
	}
	if _, _, r := h.cam.counts(); r != 1 {
		t.Errorf("resumes = %d, want 1", r)
	}
	if len(h.store.writes) != 1 {
		t.Errorf("writes = %d; dismiss must not replay the last capture", len(h.store.writes))
	}
}

func TestDismiss_NotInPreview(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	if err := h.ctrl.Dismiss(context.Background()); !errors.Is(err, ErrNotInPreview) {
		t.Errorf("err = %v, want ErrNotInPreview", err)
	}
}

func TestDismiss_ResumeFailureStaysInPreview(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	if _, err := h.ctrl.Capture(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.cam.resumeErr = errors.New("feed stuck")
	if err := h.ctrl.Dismiss(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if h.ctrl.State().Kind != StatePreview {
		t.Error("state should stay in preview")
	}
}

func TestFrame_UsesCurrentLens(t *testing.T) {
	h := newHarness(t, true, nil)
	h.start(t)
	h.ctrl.SwitchLens()
	frame, err := h.ctrl.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if string(frame) != "frame-front" {
		t.Errorf("frame = %q, want frame-front", frame)
	}
}

// slowLibrary delays every save, like a library on slow storage.
type slowLibrary struct {
	lib   *storage.Library
	delay time.Duration
}

func (l slowLibrary) SaveToLibrary(ctx context.Context, path string) (storage.Asset, error) {
	time.Sleep(l.delay)
	return l.lib.SaveToLibrary(ctx, path)
}

func TestCapture_OverlappingSavesKeepTheirOwnPhoto(t *testing.T) {
	dir := t.TempDir()
	lib, err := storage.OpenLibrary(filepath.Join(dir, "library"), filepath.Join(dir, "catalog.db"), true)
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()

	cam := &fakeCamera{payload: "AAAA", fireNow: true}
	ctrl, err := New(Deps{
		Camera:      cam,
		Permissions: fakePermissions{camera: true},
		Store:       storage.FileStore{},
		Library:     slowLibrary{lib: lib, delay: 100 * time.Millisecond},
		Notifier:    newRecordingNotifier(),
		PhotoPath:   filepath.Join(dir, "docs", "tin_photo.png"),
		Options:     camera.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, err := ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if err := ctrl.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	cam.mu.Lock()
	cam.payload = "BBBB"
	cam.mu.Unlock()
	second, err := ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a1, err := first.Persist.Wait(ctx)
	if err != nil {
		t.Fatalf("first persist: %v", err)
	}
	a2, err := second.Persist.Wait(ctx)
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}

	for _, tc := range []struct {
		asset storage.Asset
		want  []byte
	}{
		{a1, []byte{0x00, 0x00, 0x00}}, // "AAAA"
		{a2, []byte{0x04, 0x10, 0x41}}, // "BBBB"
	} {
		got, err := os.ReadFile(lib.Path(tc.asset))
		if err != nil {
			t.Fatalf("read asset: %v", err)
		}
		if string(got) != string(tc.want) {
			t.Errorf("asset %s = %x, want %x", tc.asset.ID, got, tc.want)
		}
	}

	assets, err := lib.List(context.Background())
	if err != nil || len(assets) != 2 {
		t.Errorf("catalog has %d assets (%v), want 2", len(assets), err)
	}
}
