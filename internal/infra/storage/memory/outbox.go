package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "booking-service/internal/app/outbox"
)

type outboxEntry struct {
	msg       appoutbox.Message
	status    string
	nextRunAt time.Time
	lastError string
}

const (
	outboxPending    = "pending"
	outboxProcessing = "processing"
	outboxSent       = "sent"
)

// Outbox keeps committed records until the relay worker delivers them.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	notify  chan struct{}
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1), now: time.Now}
}

// Add appends a record outside any unit of work.
func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.append(record)
	return nil
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	for _, rec := range records {
		o.entries = append(o.entries, &outboxEntry{msg: appoutbox.Message{EventRecord: rec}, status: outboxPending})
	}
	o.mu.Unlock()
}

// Flush wakes a worker blocked in Wait.
func (o *Outbox) Flush(ctx context.Context) error {
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Wait exposes flush notifications to the relay worker.
func (o *Outbox) Wait() <-chan struct{} {
	return o.notify
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, e := range o.entries {
		if e.status != outboxPending || e.nextRunAt.After(now) {
			continue
		}
		e.status = outboxProcessing
		e.msg.Attempts++
		msg := e.msg
		return &msg, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.status = outboxSent
		e.lastError = ""
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.status = outboxPending
		e.nextRunAt = next
		e.lastError = errMsg
	}
	return nil
}

// Pending returns records not yet delivered, in insertion order.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []appoutbox.EventRecord
	for _, e := range o.entries {
		if e.status != outboxSent {
			out = append(out, e.msg.EventRecord)
		}
	}
	return out
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.entries {
		if e.msg.ID == id {
			return e
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ appoutbox.Flusher = (*Outbox)(nil)
	_ appoutbox.Store   = (*Outbox)(nil)
)
