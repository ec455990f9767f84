package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// ChatsStore implements chat.ChatRepository on the chats collection.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the provided collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// FindByID returns the chat with the given id.
func (s *ChatsStore) FindByID(ctx context.Context, id string) (*chat.Chat, error) {
	ids, err := objectIDs(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": ids[0]})
}

// FindByPair matches the ordered pair only; the resolver probes both orders.
func (s *ChatsStore) FindByPair(ctx context.Context, senderID, recipientID string) (*chat.Chat, error) {
	ids, err := objectIDs(senderID, recipientID)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"sender_user_id": ids[0], "recipient_user_id": ids[1]})
}

// Create inserts a chat. A duplicate pair in either order yields chat.ErrConflict.
func (s *ChatsStore) Create(ctx context.Context, senderID, recipientID string) (*chat.Chat, error) {
	ids, err := objectIDs(senderID, recipientID)
	if err != nil {
		return nil, err
	}

	doc := &Chat{
		SenderUserID:    ids[0],
		RecipientUserID: ids[1],
		PairKey:         chat.PairKey(ids[0].Hex(), ids[1].Hex()),
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, chat.ErrConflict
		}
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)
	return doc.domain(), nil
}

func (s *ChatsStore) findOne(ctx context.Context, filter bson.M) (*chat.Chat, error) {
	var doc Chat
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.domain(), nil
}

var _ chat.ChatRepository = (*ChatsStore)(nil)

// IDsForUser returns the ids of every chat userID takes part in.
func (s *ChatsStore) IDsForUser(ctx context.Context, userID bson.ObjectID) ([]bson.ObjectID, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_user_id": userID},
		bson.M{"recipient_user_id": userID},
	}}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []Chat
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]bson.ObjectID, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	return ids, nil
}

// DeleteByIDs removes the given chats.
func (s *ChatsStore) DeleteByIDs(ctx context.Context, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
