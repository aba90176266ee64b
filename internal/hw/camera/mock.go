package camera

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// Mock is a Binding that synthesizes JPEG frames. Used on a PC and in demos.
type Mock struct {
	width  int
	height int
	warmup time.Duration

	mu     sync.Mutex
	seq    int
	paused bool
	last   []byte
	timers []*time.Timer
	closed bool
}

// NewMock creates a synthetic camera of the given frame size that reports
// ready after warmup.
func NewMock(width, height int, warmup time.Duration) *Mock {
	return &Mock{width: width, height: height, warmup: warmup}
}

func (m *Mock) Capture(ctx context.Context, req Request) (Picture, error) {
	if err := ctx.Err(); err != nil {
		return Picture{}, err
	}
	if err := req.Options.Validate(); err != nil {
		return Picture{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Picture{}, fmt.Errorf("mock camera closed")
	}

	m.seq++
	data, err := encodeJPEG(testPattern(m.width, m.height, req.Facing, req.Flash, m.seq), req.Options.JPEGQuality())
	if err != nil {
		return Picture{}, fmt.Errorf("encode frame: %w", err)
	}
	m.last = data
	debug.Verbose("Mock camera: shot %d (%d bytes, quality=%d)", m.seq, len(data), req.Options.JPEGQuality())

	if !req.Options.IncludeEncodedPayload {
		return Picture{}, nil
	}
	return Picture{EncodedPayload: base64.StdEncoding.EncodeToString(data)}, nil
}

func (m *Mock) PausePreview(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	debug.Trace("Mock camera: preview paused")
	return nil
}

func (m *Mock) ResumePreview(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	debug.Trace("Mock camera: preview resumed")
	return nil
}

// Paused reports whether the feed is frozen.
func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Mock) OnReady(fn func()) {
	if m.warmup <= 0 {
		fn()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = append(m.timers, time.AfterFunc(m.warmup, fn))
}

func (m *Mock) Frame(ctx context.Context, facing Facing) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused && m.last != nil {
		return m.last, nil
	}
	m.seq++
	return encodeJPEG(testPattern(m.width, m.height, facing, FlashOff, m.seq), 60)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.closed = true
	return nil
}
