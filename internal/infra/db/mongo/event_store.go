package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"mapin/internal/domain/event"
)

// EventStore persists map events in MongoDB.
type EventStore struct {
	col    *mongo.Collection
	logger *slog.Logger
}

func NewEventStore(db *mongo.Database, logger *slog.Logger) *EventStore {
	return &EventStore{col: db.Collection("events"), logger: logger}
}

func (s *EventStore) CreateEvent(ctx context.Context, ev event.Event) error {
	_, err := s.col.InsertOne(ctx, ev)
	return err
}

func (s *EventStore) EventByID(ctx context.Context, id string) (*event.Event, error) {
	var ev event.Event
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (s *EventStore) ListEvents(ctx context.Context) ([]event.Event, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []event.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JoinEvent adds the user unless the event is at capacity. The capacity
// check and the addition happen in one filtered update, so concurrent joins
// cannot overshoot the limit.
func (s *EventStore) JoinEvent(ctx context.Context, id, userID string) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"capacity": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{bson.M{"$size": "$participant_ids"}, "$capacity"}}},
			bson.M{"participant_ids": userID},
		},
	}
	update := bson.M{"$addToSet": bson.M{"participant_ids": userID}}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.EventByID(ctx, id); err != nil {
			return err
		}
		return event.ErrFull
	}
	return nil
}

func (s *EventStore) LeaveEvent(ctx context.Context, id, userID string) error {
	update := bson.M{"$pull": bson.M{"participant_ids": userID}}
	res, err := s.col.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return event.ErrNotFound
	}
	return nil
}

var _ event.Store = (*EventStore)(nil)
