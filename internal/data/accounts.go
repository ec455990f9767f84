package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Accounts is the user store plus the chat data a user owns, so that
// removing a user also removes their chats and the messages in them.
type Accounts struct {
	*UsersStore
	chats *ChatsStore
	msgs  *MessagesStore
}

// NewAccounts returns an Accounts over the three stores.
func NewAccounts(users *UsersStore, chats *ChatsStore, msgs *MessagesStore) *Accounts {
	return &Accounts{UsersStore: users, chats: chats, msgs: msgs}
}

// DeleteUser removes the user's messages, then chats, then the user. A
// failure part way leaves the user row in place so the call can be repeated.
func (a *Accounts) DeleteUser(ctx context.Context, id string) error {
	ids, err := objectIDs(id)
	if err != nil {
		return err
	}
	userID := ids[0]

	chatIDs, err := a.chats.IDsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if _, err := a.msgs.DeleteForChats(ctx, chatIDs); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := a.chats.DeleteByIDs(ctx, chatIDs); err != nil {
		return fmt.Errorf("delete chats: %w", err)
	}

	res, err := a.coll.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
