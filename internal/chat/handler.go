package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/middleware"
)

// TurnRunner is satisfied by *Orchestrator.
type TurnRunner interface {
	RunTurn(ctx context.Context, history []Turn, userMessage string, scope ScopingContext) (Reply, error)
}

// SiteID accepts a JSON string or number; null and "" mean no site.
type SiteID string

func (s *SiteID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SiteID(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return err
	}
	*s = SiteID(num.String())
	return nil
}

type ChatRequest struct {
	Messages []Turn `json:"messages"`
	SiteID   SiteID `json:"siteId"`
}

type ChatHandler struct {
	runner  TurnRunner
	timeout time.Duration
	logger  logging.Logger
}

func NewChatHandler(runner TurnRunner, timeout time.Duration, logger logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &ChatHandler{runner: runner, timeout: timeout, logger: logger}
}

func RegisterRoutes(router gin.IRoutes, handler *ChatHandler) {
	router.POST("/api/chat", handler.HandleChat)
}

func (h *ChatHandler) HandleChat(c *gin.Context) {
	if h == nil || h.runner == nil {
		c.JSON(http.StatusInternalServerError, ToErrorEnvelope(&SystemError{Message: "chat is unavailable"}))
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	history, message, err := SplitConversation(req.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	logger := middleware.GetContextLogger(c, h.logger).WithFields(logging.Fields{
		"site_id":  string(req.SiteID),
		"messages": len(req.Messages),
	})
	logger.Debug("Chat request received")

	reply, err := h.runner.RunTurn(ctx, history, message, ScopingContext{SiteID: string(req.SiteID)})
	if err != nil {
		logger.WithError(err).Warn("Chat request failed")
		c.JSON(http.StatusInternalServerError, ToErrorEnvelope(err))
		return
	}
	c.JSON(http.StatusOK, reply)
}
