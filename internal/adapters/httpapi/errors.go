package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/infrastructure/i18n"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLegacyCacheCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// message localizes err for the locale of the request.
func (s *Server) message(c *gin.Context, err error) string {
	return localize(s.translator, s.translator.Locale(c.GetHeader("Accept-Language")), err)
}

func localize(t Translator, locale string, err error) string {
	return i18n.ErrorMessage(t, locale, err)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": s.message(c, err)})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	locale := s.translator.Locale(c.GetHeader("Accept-Language"))
	s.logger.Debug("bad request", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": s.translator.T(locale, "error.bad_request", nil)})
}
