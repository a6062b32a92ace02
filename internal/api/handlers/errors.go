package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/crypto-tracker/internal/services"
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var transportErr *services.TransportError
	var schemaErr *services.SchemaError
	var policyErr *services.PasswordPolicyError

	switch {
	case errors.As(err, &transportErr), errors.As(err, &schemaErr):
		log.Printf("Upstream failure on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable", "details": err.Error()})
	case errors.As(err, &policyErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password does not meet requirements", "details": policyErr.Problems})
	case errors.Is(err, services.ErrDuplicateUser):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidFormat), errors.Is(err, services.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
