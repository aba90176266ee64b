package session

import "github.com/cjeanneret/SnapGo/internal/debug"

// Notice levels.
const (
	NoticeInfo  = "info"
	NoticeError = "error"
)

// User-facing notice texts.
const (
	MsgUploadOK     = "Upload successful"
	MsgUploadFailed = "Cannot upload"
	MsgSaveFailed   = "Cannot save photo"
)

// Notice is a transient message shown to the user.
type Notice struct {
	Level   string
	Message string
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// MultiNotifier fans a notice out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// LogNotifier writes notices to the debug log.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	debug.Info("Notice (%s): %s", n.Level, n.Message)
}
