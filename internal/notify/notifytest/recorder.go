// Package notifytest provides a recording Notifier for unit tests.
package notifytest

import (
	"context"
	"sync"

	"custos/internal/notify"
)

// Recorder captures every notification request it receives.
type Recorder struct {
	mu   sync.Mutex
	sent []notify.Request
	err  error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Send return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Send(_ context.Context, req notify.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, req)
	return nil
}

// Sent returns a copy of all recorded requests.
func (r *Recorder) Sent() []notify.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Request, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns the number of recorded requests.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// Reset discards all recorded requests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
