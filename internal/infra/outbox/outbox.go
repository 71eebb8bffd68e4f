// Package outbox decouples domain mutations from broker publication: sinks
// append records, a worker claims and publishes them with retry backoff.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// Record is one pending domain event.
type Record struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Aggregate   string            `bson:"aggregate"`
	Payload     []byte            `bson:"payload"`
	Headers     map[string]string `bson:"headers"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	LastError   string            `bson:"last_error"`
}

// Store persists records between append and publication.
type Store interface {
	Add(ctx context.Context, rec Record) error
	Claim(ctx context.Context, workerID string) (*Record, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Sink adapts a Store to the domain EventSink contract, JSON-encoding the
// payload.
type Sink struct {
	Store Store
}

func (s Sink) Emit(ctx context.Context, name, aggregate string, payload any) error {
	if s.Store == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", name, err)
	}
	return s.Store.Add(ctx, Record{
		ID:         uuid.NewString(),
		Name:       name,
		Aggregate:  aggregate,
		Payload:    data,
		OccurredAt: time.Now().UTC(),
		State:      StateNew,
	})
}
