package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/ripple/internal/poke"
	"github.com/MarcoPoloResearchLab/ripple/internal/store"
	ripplesync "github.com/MarcoPoloResearchLab/ripple/internal/sync"
)

const userIDContextKey = "ripple_user_id"

const defaultHeartbeatInterval = 30 * time.Second

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingSyncService    = errors.New("sync service dependency required")
	errMissingNotifier       = errors.New("poke notifier dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator checks a bearer token and returns the user it belongs to.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the sync engine.
type Dependencies struct {
	TokenValidator    TokenValidator
	SyncService       *ripplesync.Service
	Notifier          *poke.Notifier
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
}

// NewHTTPHandler builds the gin router exposing the replicache endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.SyncService == nil {
		return nil, errMissingSyncService
	}
	if deps.Notifier == nil {
		return nil, errMissingNotifier
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:            deps.TokenValidator,
		syncService:       deps.SyncService,
		notifier:          deps.Notifier,
		logger:            logger,
		heartbeatInterval: heartbeat,
	}

	router.GET("/", handler.handleRoot)

	protected := router.Group("/replicache")
	protected.Use(handler.authorizeRequest)
	protected.POST("/pull", handler.handlePull)
	protected.POST("/push", handler.handlePush)
	protected.GET("/poke", handler.handlePoke)

	return router, nil
}

type httpHandler struct {
	tokens            TokenValidator
	syncService       *ripplesync.Service
	notifier          *poke.Notifier
	logger            *zap.Logger
	heartbeatInterval time.Duration
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "ripple sync api")
}

func (h *httpHandler) handlePull(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request ripplesync.PullRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ClientGroupID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response, err := h.syncService.Pull(c.Request.Context(), userID, request)
	if err != nil {
		if errors.Is(err, store.ErrClientGroupOwnership) {
			c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("pull failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pull_failed"})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handlePush(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request ripplesync.PushRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ClientGroupID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	// Mutation-level outcomes never surface here; clients observe
	// convergence through subsequent pulls.
	if err := h.syncService.Push(c.Request.Context(), userID, request); err != nil {
		h.logger.Error("push failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "push_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter for EventSource clients, which cannot set
// headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
