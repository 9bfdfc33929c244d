package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/middleware"
)

// DefaultRange is the readings window when the request gives none.
const DefaultRange = 7 * 24 * time.Hour

// DefaultWindow is the range used when a request names no bounds. It ends at
// the next hour boundary so requests within the same hour share a cache entry
// and still include the current partial hour.
func DefaultWindow(now time.Time) (from, to time.Time) {
	to = now.UTC().Truncate(time.Hour).Add(time.Hour)
	return to.Add(-DefaultRange), to
}

// Source is satisfied by *Service.
type Source interface {
	Sites(ctx context.Context) ([]string, error)
	Readings(ctx context.Context, siteID int64, from, to time.Time) ([]telemetry.SensorReading, error)
}

type Handler struct {
	source Source
	logger logging.Logger
	now    func() time.Time
}

func NewHandler(source Source, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Handler{source: source, logger: logger, now: time.Now}
}

func RegisterRoutes(router gin.IRoutes, h *Handler) {
	router.GET("/api/sites", h.HandleSites)
	router.GET("/api/sites/:siteId/readings", h.HandleReadings)
}

func (h *Handler) HandleSites(c *gin.Context) {
	sites, err := h.source.Sites(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to fetch sites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

func (h *Handler) HandleReadings(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.Param("siteId"), 10, 64)
	if err != nil || siteID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "siteId must be a non-negative integer"})
		return
	}

	_, to := DefaultWindow(h.now())
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC3339 timestamp"})
			return
		}
	}
	from := to.Add(-DefaultRange)
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC3339 timestamp"})
			return
		}
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must not be after to"})
		return
	}

	readings, err := h.source.Readings(c.Request.Context(), siteID, from, to)
	if err != nil {
		h.fail(c, err, "Failed to fetch readings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	middleware.GetContextLogger(c, h.logger).WithError(err).Error(msg)
	if telemetry.IsConfigurationError(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Configuration Error: " + err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
