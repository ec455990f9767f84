package chattest

import (
	"sync"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// Notification is one recorded Notify call.
type Notification struct {
	Message        chat.Message
	ExceptSocketID string
}

// RecordingNotifier captures notifications instead of delivering them.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

func (r *RecordingNotifier) Notify(msg chat.Message, exceptSocketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Notification{Message: msg, ExceptSocketID: exceptSocketID})
}

// Calls returns a copy of the notifications seen so far.
func (r *RecordingNotifier) Calls() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.calls...)
}
