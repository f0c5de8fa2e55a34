package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Retired endpoints answer 410 Gone with Deprecation and Sunset headers
// (RFC 8594 HTTP-dates) so old clients learn the surface moved on.
var (
	guessDeprecatedAt = time.Date(2025, 8, 21, 23, 56, 46, 0, time.UTC)
	guessSunsetAt     = time.Date(2025, 8, 30, 23, 59, 59, 0, time.UTC)

	statusDeprecatedAt = time.Date(2025, 8, 30, 17, 43, 17, 0, time.UTC)
	statusSunsetAt     = time.Date(2025, 9, 20, 23, 59, 59, 0, time.UTC)
)

type DeprecatedHandler struct{}

func NewDeprecatedHandler() *DeprecatedHandler {
	return &DeprecatedHandler{}
}

func respondGone(c *gin.Context, detail string, deprecatedAt, sunsetAt time.Time) {
	c.Header("Deprecation", deprecatedAt.Format(http.TimeFormat))
	c.Header("Sunset", sunsetAt.Format(http.TimeFormat))
	c.JSON(http.StatusGone, ErrorEnvelope{Detail: detail})
}

func (dh *DeprecatedHandler) Root(c *gin.Context) {
	respondGone(c, "GET / has been retired.", statusDeprecatedAt, statusSunsetAt)
}

func (dh *DeprecatedHandler) LlmGuess(c *gin.Context) {
	respondGone(c, "POST /llm/guess has been retired.", guessDeprecatedAt, guessSunsetAt)
}

func (dh *DeprecatedHandler) Status(c *gin.Context) {
	respondGone(c, "GET /status/{project_id} has been retired.", statusDeprecatedAt, statusSunsetAt)
}
