package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mapin/internal/domain/chat"
)

// ChatStore persists conversations and messages in MongoDB. Live queries are
// backed by change streams (requires a replica set, as do the transactional
// message appends).
type ChatStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewChatStore(db *mongo.Database, logger *slog.Logger) *ChatStore {
	s := &ChatStore{db: db, logger: logger}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}}}
	if _, err := s.messages().Indexes().CreateOne(context.Background(), idx); err != nil && logger != nil {
		logger.Warn("message index creation failed", "error", err)
	}
	return s
}

func (s *ChatStore) conversations() *mongo.Collection {
	return s.db.Collection("conversations")
}

func (s *ChatStore) messages() *mongo.Collection {
	return s.db.Collection("messages")
}

func (s *ChatStore) CreateConversation(ctx context.Context, conv chat.Conversation) (bool, error) {
	if _, err := s.conversations().InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// already exists at this id: idempotent create
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := s.conversations().FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	cur, err := s.conversations().Find(ctx, bson.M{"participant_ids": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []chat.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChatStore) JoinConversation(ctx context.Context, id string, p chat.Participant) error {
	update := bson.M{
		"$addToSet": bson.M{
			"participant_ids": p.ID,
			"participants":    p,
		},
	}
	res, err := s.conversations().UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// LeaveConversation removes the user from both participant lists. A single
// document update keeps the removal all-or-nothing.
func (s *ChatStore) LeaveConversation(ctx context.Context, id, userID string) error {
	update := bson.M{
		"$pull": bson.M{
			"participant_ids": userID,
			"participants":    bson.M{"id": userID},
		},
	}
	res, err := s.conversations().UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// AppendMessage inserts the message and refreshes the conversation preview
// inside one transaction, so the preview can never lag the message list.
func (s *ChatStore) AppendMessage(ctx context.Context, msg chat.Message) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.messages().InsertOne(sc, msg); err != nil {
			return nil, err
		}
		update := bson.M{"$set": bson.M{
			"last_message":    chat.TrimSnippet(msg.Text, chat.SnippetMax),
			"last_message_at": msg.SentAt,
		}}
		res, err := s.conversations().UpdateByID(sc, msg.ConversationID, update)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, chat.ErrNotFound
		}
		return nil, nil
	})
	return err
}

func (s *ChatStore) LatestMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	return s.findMessages(ctx, bson.M{"conversation_id": conversationID}, limit)
}

func (s *ChatStore) MessagesBefore(ctx context.Context, conversationID string, before chat.Cursor, limit int) ([]chat.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"$or": bson.A{
			bson.M{"sent_at": bson.M{"$lt": before.SentAt}},
			bson.M{"sent_at": before.SentAt, "_id": bson.M{"$lt": before.MessageID}},
		},
	}
	return s.findMessages(ctx, filter, limit)
}

func (s *ChatStore) findMessages(ctx context.Context, filter bson.M, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = chat.PageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []chat.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchConversations ticks on any conversation change. The watch is
// collection-wide; consumers re-read their own list per tick, which also
// covers removals that a participant-filtered pipeline would miss.
func (s *ChatStore) WatchConversations(ctx context.Context, userID string) (<-chan struct{}, error) {
	return s.watch(ctx, s.conversations(), mongo.Pipeline{})
}

func (s *ChatStore) WatchMessages(ctx context.Context, conversationID string) (<-chan struct{}, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.conversation_id": conversationID}}},
	}
	return s.watch(ctx, s.messages(), pipeline)
}

func (s *ChatStore) watch(ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) (<-chan struct{}, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := col.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	ticks := make(chan struct{}, 1)
	go func() {
		defer close(ticks)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			select {
			case ticks <- struct{}{}:
			default:
				// a pending tick already forces a re-read
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil && s.logger != nil {
			s.logger.Error("change stream failed", "collection", col.Name(), "error", err)
		}
	}()
	return ticks, nil
}

var _ chat.Store = (*ChatStore)(nil)
