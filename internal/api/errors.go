package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"querydeck/internal/aiclient"
	"querydeck/internal/auth"
	"querydeck/internal/project"
	"querydeck/internal/schema"
)

// writeError translates service errors into HTTP responses. The raw
// error text reaches the client only for errors that describe the
// client's own input.
func writeError(c *gin.Context, err error) {
	var identityErr *auth.IdentityError
	var connErr *aiclient.ConnectionError

	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, schema.ErrColumnNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, schema.ErrAllowFloor):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, project.ErrBadCardDesign):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &connErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": connErr.Error()})
	case errors.As(err, &identityErr):
		status := identityErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": identityErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
