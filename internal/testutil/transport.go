package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/threadpost/internal/content"
)

// Call is one recorded Submit call.
type Call struct {
	Text    string
	ReplyTo string
}

// RecordingTransport records submissions and hands out sequential external
// ids "ext-1", "ext-2", ...
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingTransport struct {
	mu    sync.Mutex
	calls []Call
	next  int

	// Fail, if set, is consulted for every call; a non-nil error is returned
	// instead of a receipt and no id is consumed.
	Fail func(call Call) error

	// OnSubmit, if set, runs after a call is recorded and before it returns.
	OnSubmit func(call Call)
}

// NewRecordingTransport creates a transport that accepts everything.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

// Calls returns the submissions so far, in order.
func (t *RecordingTransport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Submit implements the scheduler transport.
func (t *RecordingTransport) Submit(ctx context.Context, text, replyTo string) (content.Receipt, error) {
	call := Call{Text: text, ReplyTo: replyTo}

	t.mu.Lock()
	t.calls = append(t.calls, call)
	fail, hook := t.Fail, t.OnSubmit
	t.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if fail != nil {
		if err := fail(call); err != nil {
			return content.Receipt{}, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := fmt.Sprintf("ext-%d", t.next)
	return content.Receipt{ExternalID: id, ExternalURL: "https://x.test/status/" + id}, nil
}
