package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/directChat/internal/auth"
	"github.com/PaulBabatuyi/directChat/internal/chat"
	"github.com/PaulBabatuyi/directChat/internal/data"
)

const (
	objectIDRule = "required,hexadecimal,len=24"

	// socketIDHeader carries the caller's own push session so it is not echoed.
	socketIDHeader = "X-Socket-ID"
	appliedHeader  = "X-Send-Applied"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userSelectedRequest struct {
	UserID string `json:"user_id" validate:"required,hexadecimal,len=24"`
}

type sendMessageRequest struct {
	ChatID      string `json:"chat_id" validate:"required,hexadecimal,len=24"`
	RecipientID string `json:"recipient_id" validate:"required,hexadecimal,len=24"`
	Message     string `json:"message" validate:"required,max=5000"`
}

type participantJSON struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type messageJSON struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func toParticipantJSON(p chat.Participant, _ int) participantJSON {
	return participantJSON{UserID: p.UserID, Name: p.Name}
}

func toMessageJSON(m chat.Message, _ int) messageJSON {
	return messageJSON{
		ID:          m.ID,
		SenderID:    m.SenderUserID,
		RecipientID: m.RecipientUserID,
		Message:     m.Body,
		CreatedAt:   m.CreatedAt,
	}
}

// bind decodes the JSON body into req and validates it, writing a 400 on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.Error(msg, zap.String("user_id", currentUserID(c)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// register hashes the password, stores the user and returns a JWT.
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, "failed to hash password", err)
		return
	}

	user, err := s.accounts.CreateUser(c.Request.Context(), req.Email, req.Name, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		s.internalError(c, "create user failed", err)
		return
	}

	s.issueToken(c, http.StatusCreated, user)
}

// login authenticates a user and returns a JWT.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}

	user, err := s.accounts.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, data.ErrUserNotFound) {
		s.internalError(c, "lookup user failed", err)
		return
	}
	// unknown email and wrong password look the same to the caller
	if err != nil || auth.CheckPassword(user.Password, req.Password) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	s.issueToken(c, http.StatusOK, user)
}

// deleteAccount removes the caller together with their chats and messages.
func (s *Server) deleteAccount(c *gin.Context) {
	err := s.accounts.DeleteUser(c.Request.Context(), currentUserID(c))
	if err != nil && !errors.Is(err, data.ErrUserNotFound) {
		s.internalError(c, "delete account failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) issueToken(c *gin.Context, code int, user *data.User) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.internalError(c, "failed to generate token", err)
		return
	}
	c.JSON(code, tokenResponse{Token: token, UserID: user.ID.Hex(), ExpiresAt: expiresAt})
}

// listChats returns the roster with no conversation open.
func (s *Server) listChats(c *gin.Context) {
	roster, err := s.chats.ListChats(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.internalError(c, "list chats failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chats":    lo.Map(roster, toParticipantJSON),
		"messages": nil,
	})
}

// openChat returns the roster plus one conversation. Anything the caller may
// not see sends them back to the roster.
func (s *Server) openChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	if s.validate.Var(chatID, objectIDRule) != nil {
		c.Redirect(http.StatusFound, "/messages")
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	view, err := s.chats.OpenChat(ctx, userID, chatID)
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrNotAuthorized) {
		c.Redirect(http.StatusFound, "/messages")
		return
	}
	if err != nil {
		s.internalError(c, "open chat failed", err)
		return
	}

	roster, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		s.internalError(c, "list chats failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":   view.Chat.ID,
		"chats":     lo.Map(roster, toParticipantJSON),
		"recipient": toParticipantJSON(view.Recipient, 0),
		"messages":  lo.Map(view.Messages, toMessageJSON),
	})
}

// getMessage returns a single message of a chat the caller belongs to.
func (s *Server) getMessage(c *gin.Context) {
	chatID, messageID := c.Param("chat_id"), c.Param("message_id")
	if s.validate.Var(chatID, objectIDRule) != nil || s.validate.Var(messageID, objectIDRule) != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	msg, err := s.chats.Message(c.Request.Context(), currentUserID(c), chatID, messageID)
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrNotAuthorized) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		s.internalError(c, "get message failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": toMessageJSON(msg, 0)})
}

// userSelected resolves or creates the chat with the chosen user.
func (s *Server) userSelected(c *gin.Context) {
	var req userSelectedRequest
	if !s.bind(c, &req) {
		return
	}

	chatID, err := s.chats.SelectRecipient(c.Request.Context(), currentUserID(c), req.UserID)
	if errors.Is(err, chat.ErrInvalidRecipient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient"})
		return
	}
	if err != nil {
		s.internalError(c, "resolve chat failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}

// sendMessage appends a message and answers with the chat's history. A send
// that could not be applied still answers 200 with the unchanged history;
// X-Send-Applied tells the two apart.
func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.chats.Send(c.Request.Context(), chat.SendInput{
		CurrentUserID: currentUserID(c),
		ChatID:        req.ChatID,
		RecipientID:   req.RecipientID,
		Text:          req.Message,
		SocketID:      c.GetHeader(socketIDHeader),
	})
	if err != nil {
		s.internalError(c, "send message failed", err)
		return
	}

	c.Header(appliedHeader, strconv.FormatBool(res.Applied))
	c.JSON(http.StatusOK, gin.H{"messages": lo.Map(res.Messages, toMessageJSON)})
}
