package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

// maxImportSize bounds the body of an import request
const maxImportSize = 1 << 20

type AuthHandler struct {
	users    *services.UserStore
	sessions *services.SessionManager
}

func NewAuthHandler(users *services.UserStore, sessions *services.SessionManager) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
	}
}

// withoutHash strips the password hash before a record leaves the server
func withoutHash(u models.UserRecord) models.UserRecord {
	u.PasswordHash = ""
	return u
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, withoutHash(user))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.ClearSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetSession returns the current session, if it is still valid
func (h *AuthHandler) GetSession(c *gin.Context) {
	session := h.sessions.GetSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"valid":   session != nil,
		"session": session,
	})
}

func (h *AuthHandler) CreateGuest(c *gin.Context) {
	var req models.GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	guest, err := h.sessions.CreateGuest(c.Request.Context(), req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, guest)
}

func (h *AuthHandler) GetGuest(c *gin.Context) {
	guest := h.sessions.GetGuest(c.Request.Context())
	if guest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no guest session"})
		return
	}
	c.JSON(http.StatusOK, guest)
}

func (h *AuthHandler) ClearGuest(c *gin.Context) {
	h.sessions.ClearGuest(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "guest session cleared"})
}

// ValidatePassword reports every password policy violation
func (h *AuthHandler) ValidatePassword(c *gin.Context) {
	var req models.ValidatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, services.ValidatePassword(req.Password))
}

// ExportUser downloads a user's portable export document
func (h *AuthHandler) ExportUser(c *gin.Context) {
	includePassword, _ := strconv.ParseBool(c.DefaultQuery("include_password", "false"))

	export, err := h.users.Export(c.Request.Context(), c.Param("email"), includePassword)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="crypto-tracker-export.json"`)
	c.IndentedJSON(http.StatusOK, export)
}

// ImportUser stores a user from an export document
func (h *AuthHandler) ImportUser(c *gin.Context) {
	merge, _ := strconv.ParseBool(c.DefaultQuery("merge", "false"))

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	user, err := h.users.Import(c.Request.Context(), data, merge)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, withoutHash(user))
}
