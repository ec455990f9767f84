package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/PaulBabatuyi/directChat/internal/auth"
	"github.com/PaulBabatuyi/directChat/internal/chat"
	"github.com/PaulBabatuyi/directChat/internal/data"
	"github.com/PaulBabatuyi/directChat/internal/delivery"
	"github.com/PaulBabatuyi/directChat/internal/middleware"
)

// accountStore is the subset of data.Accounts used by the account endpoints.
type accountStore interface {
	CreateUser(ctx context.Context, email, name, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Server holds everything the HTTP handlers and the inbox stream need.
type Server struct {
	accounts accountStore
	chats    *chat.Service
	hub      *delivery.Hub
	auth     *auth.JWTManager
	validate *validator.Validate
	log      *zap.Logger

	// authLimiter guards register/login per client IP; sendLimiter guards
	// send_message per user.
	authLimiter *middleware.LimiterStore
	sendLimiter *middleware.LimiterStore
}

// newServer returns a ready-to-use Server. Limiters may be nil to disable limiting.
func newServer(accounts accountStore, chats *chat.Service, hub *delivery.Hub, authMgr *auth.JWTManager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		accounts: accounts,
		chats:    chats,
		hub:      hub,
		auth:     authMgr,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// withLimiters attaches the rate limiter stores.
func (s *Server) withLimiters(authLimiter, sendLimiter *middleware.LimiterStore) *Server {
	s.authLimiter = authLimiter
	s.sendLimiter = sendLimiter
	return s
}

// routes builds the gin engine.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	public := r.Group("/")
	if s.authLimiter != nil {
		public.Use(middleware.RateLimit(s.authLimiter, "auth", nil))
	}
	public.POST("/register", s.register)
	public.POST("/login", s.login)

	private := r.Group("/", s.requireAuth(false))
	private.GET("/messages", s.listChats)
	private.GET("/messages/:chat_id", s.openChat)
	private.GET("/messages/:chat_id/:message_id", s.getMessage)
	private.POST("/user_selected", s.userSelected)
	private.DELETE("/account", s.deleteAccount)
	if s.sendLimiter != nil {
		private.POST("/send_message", middleware.RateLimit(s.sendLimiter, "send", func(c *gin.Context) string {
			return "user:" + currentUserID(c)
		}), s.sendMessage)
	} else {
		private.POST("/send_message", s.sendMessage)
	}

	// browsers cannot set headers on a websocket handshake
	r.GET("/ws", s.requireAuth(true), s.serveWS)
	return r
}

// registerInbox registers the InboxService on the given gRPC server.
func registerInbox(g *grpc.Server, srv *Server) {
	g.RegisterService(&inboxServiceDesc, srv)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			s.log.Error("request", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}
