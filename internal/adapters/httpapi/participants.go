package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"lerngruppe/internal/domain/entities"
)

type withdrawalRequest struct {
	DeleteToken string `json:"deleteToken" binding:"required"`
}

func (s *Server) listParticipants() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		ps, err := s.participants.GetParticipants(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, forDisplay(ps))
	}
}

// addParticipant takes the flat participant object. The caller owns the
// delete token; a missing timestamp is set to the receipt time.
func (s *Server) addParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		var p entities.Participant
		if err := c.ShouldBindJSON(&p); err != nil {
			s.badRequest(c, err)
			return
		}
		p.ID = ""
		if p.Timestamp.IsZero() {
			p.Timestamp = s.now().UTC()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		id, err := s.participants.AddParticipant(ctx, p)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func (s *Server) withdraw() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		deleted, err := s.participants.DeleteParticipantByToken(ctx, req.DeleteToken)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

// removeParticipant is the admin removal. An unknown id is not an error.
func (s *Server) removeParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		if err := s.participants.DeleteParticipantByID(ctx, c.Param("id")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) migrate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Migration walks the whole legacy set; it gets the request's own
		// lifetime, not the short per-call timeout.
		n, err := s.participants.MigrateLegacyCache(c.Request.Context())
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"migrated": n})
	}
}
