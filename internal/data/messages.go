package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// MessagesStore implements chat.MessageRepository on the messages collection.
type MessagesStore struct {
	// coll is the "messages" collection
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Insert stores a sealed message and returns it with its id populated.
func (m *MessagesStore) Insert(ctx context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
	ids, err := objectIDs(msg.ChatID, msg.SenderUserID, msg.RecipientUserID)
	if err != nil {
		return chat.StoredMessage{}, err
	}

	doc := &Message{
		ChatID:          ids[0],
		SenderUserID:    ids[1],
		RecipientUserID: ids[2],
		Body:            msg.Ciphertext,
		CreatedAt:       msg.CreatedAt,
	}
	result, err := m.coll.InsertOne(ctx, doc)
	if err != nil {
		return chat.StoredMessage{}, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)
	return doc.domain(), nil
}

// ListByChat returns every message of a chat, oldest first. ObjectIDs grow
// monotonically within a process so _id breaks created_at ties in insertion order.
func (m *MessagesStore) ListByChat(ctx context.Context, chatID string) ([]chat.StoredMessage, error) {
	ids, err := objectIDs(chatID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.coll.Find(ctx, bson.M{"chat_id": ids[0]}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []Message
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]chat.StoredMessage, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].domain())
	}
	return out, nil
}

// FindByID returns one stored message.
func (m *MessagesStore) FindByID(ctx context.Context, id string) (chat.StoredMessage, error) {
	ids, err := objectIDs(id)
	if err != nil {
		return chat.StoredMessage{}, err
	}

	var doc Message
	if err := m.coll.FindOne(ctx, bson.M{"_id": ids[0]}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return chat.StoredMessage{}, chat.ErrNotFound
		}
		return chat.StoredMessage{}, err
	}
	return doc.domain(), nil
}

var _ chat.MessageRepository = (*MessagesStore)(nil)

// DeleteForChats removes all messages owned by the given chats.
func (m *MessagesStore) DeleteForChats(ctx context.Context, chatIDs []bson.ObjectID) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	res, err := m.coll.DeleteMany(ctx, bson.M{"chat_id": bson.M{"$in": chatIDs}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
