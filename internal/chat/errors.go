package chat

import (
	"errors"

	"github.com/PaulBabatuyi/directChat/internal/crypto"
)

var (
	ErrNotFound            = errors.New("chat: not found")
	ErrNotAuthorized       = errors.New("chat: not a participant")
	ErrConflict            = errors.New("chat: already exists")
	ErrDecryption          = crypto.ErrDecryption
	ErrRetrieval           = errors.New("chat: message could not be retrieved")
	ErrPublish             = errors.New("chat: notification publish failed")
	ErrPersistence         = errors.New("chat: storage failure")
	ErrParticipantMismatch = errors.New("chat: sender and recipient do not match the chat")
	ErrInvalidRecipient    = errors.New("chat: invalid recipient")
	ErrEmptyMessage        = errors.New("chat: message is empty")
)
