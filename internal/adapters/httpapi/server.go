// Package httpapi exposes the participant registry over HTTP and streams
// snapshots over a websocket.
package httpapi

import (
	"cmp"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/input"
	"lerngruppe/internal/ports/output"
)

const requestTimeout = 5 * time.Second

// Translator renders localized messages and picks the locale of a request.
type Translator interface {
	output.T
	Locale(acceptLanguage string) string
}

// Server holds the HTTP handlers.
type Server struct {
	participants input.ParticipantUseCase
	translator   Translator
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	now          func() time.Time
}

// NewServer creates a Server. gatherer may be nil, then /metrics is not
// mounted.
func NewServer(participants input.ParticipantUseCase, translator Translator, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		participants: participants,
		translator:   translator,
		gatherer:     gatherer,
		logger:       logger,
		now:          time.Now,
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/participants", s.listParticipants())
	api.POST("/participants", s.addParticipant())
	api.DELETE("/participants/:id", s.removeParticipant())
	api.GET("/participants/stream", s.streamParticipants())
	api.POST("/withdrawals", s.withdraw())
	api.POST("/migrations", s.migrate())
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// forDisplay sorts by timestamp, then id, and strips delete tokens.
func forDisplay(ps []entities.Participant) []entities.Participant {
	out := make([]entities.Participant, len(ps))
	for i, p := range ps {
		out[i] = p.Public()
	}
	slices.SortStableFunc(out, func(a, b entities.Participant) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
