package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"querydeck/internal/auth"
)

type AuthHandler struct {
	identity *auth.Client
	denylist *auth.Denylist
	logger   zerolog.Logger
}

func NewAuthHandler(identity *auth.Client, denylist *auth.Denylist, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, denylist: denylist, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and a password of at least 8 characters are required"})
		return
	}

	session, err := h.identity.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	session, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SignOut revokes the caller's token locally and tells the identity
// service. A failed upstream logout still leaves the token revoked
// here.
func (h *AuthHandler) SignOut(c *gin.Context) {
	token := accessToken(c)
	if err := h.denylist.Revoke(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}
	if err := h.identity.SignOut(c.Request.Context(), token); err != nil {
		h.logger.Warn().Err(err).Msg("upstream logout failed, token revoked locally")
	}
	c.Status(http.StatusNoContent)
}
