package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/crypto-tracker/internal/services"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transport", &services.TransportError{Op: "markets", StatusCode: 503, Err: errors.New("down")}, http.StatusBadGateway},
		{"schema", &services.SchemaError{Endpoint: "search", Detail: "missing coins"}, http.StatusBadGateway},
		{"wrapped transport", fmt.Errorf("remote search: %w", &services.TransportError{Op: "search", Err: errors.New("eof")}), http.StatusBadGateway},
		{"duplicate", services.ErrDuplicateUser, http.StatusConflict},
		{"invalid format", fmt.Errorf("%w: user email is required", services.ErrInvalidFormat), http.StatusBadRequest},
		{"invalid email", services.ErrInvalidEmail, http.StatusBadRequest},
		{"policy", &services.PasswordPolicyError{Problems: []string{"too short"}}, http.StatusBadRequest},
		{"not found", services.ErrUserNotFound, http.StatusNotFound},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
