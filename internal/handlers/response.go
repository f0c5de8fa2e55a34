package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cassiama/LicenseGuard-API/internal/apierr"
)

// ErrorEnvelope is the error body every endpoint speaks: a single
// human-readable detail string.
type ErrorEnvelope struct {
	Detail string `json:"detail"`
}

// RespondError writes err as an ErrorEnvelope. Typed API errors carry their
// own status and message; anything else is an internal fault.
func RespondError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		c.JSON(ae.Status, ErrorEnvelope{Detail: ae.Err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{Detail: "Internal Server Error"})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
