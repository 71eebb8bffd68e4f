package memory

import (
	"context"
	"sync"
	"time"

	"mapin/internal/infra/outbox"
)

// Outbox keeps pending event records in memory.
type Outbox struct {
	mu      sync.Mutex
	records []outbox.Record
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, rec outbox.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rec.State == "" {
		rec.State = outbox.StateNew
	}
	if rec.NextAttempt.IsZero() {
		rec.NextAttempt = time.Now().UTC()
	}
	o.records = append(o.records, rec)
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*outbox.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for i := range o.records {
		rec := &o.records[i]
		if (rec.State == outbox.StateNew || rec.State == outbox.StateFailed) && !rec.NextAttempt.After(now) {
			rec.State = outbox.StateClaimed
			out := *rec
			return &out, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	return o.setState(id, func(rec *outbox.Record) {
		rec.State = outbox.StateSent
	})
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return o.setState(id, func(rec *outbox.Record) {
		rec.State = outbox.StateFailed
		rec.NextAttempt = next
		rec.LastError = errMsg
		rec.Attempts++
	})
}

func (o *Outbox) setState(id string, apply func(*outbox.Record)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.records {
		if o.records[i].ID == id {
			apply(&o.records[i])
			return nil
		}
	}
	return nil
}

// Pending reports how many records still await publication.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	count := 0
	for _, rec := range o.records {
		if rec.State == outbox.StateNew || rec.State == outbox.StateFailed || rec.State == outbox.StateClaimed {
			count++
		}
	}
	return count
}

var _ outbox.Store = (*Outbox)(nil)
