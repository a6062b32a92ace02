package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

const (
	sessionTTL       = 24 * time.Hour
	defaultGuestName = "Guest"
)

// SessionManager tracks the current login session and the guest session.
//
// Remembered sessions go to the durable tier and never expire. Other sessions
// go to the ephemeral tier with a 24 hour expiry. Reads check the durable
// tier first. Guest sessions only ever live in the ephemeral tier.
type SessionManager struct {
	users     *UserStore
	durable   storage.Store
	ephemeral storage.Store
	now       func() time.Time

	mu sync.Mutex
}

func NewSessionManager(users *UserStore, durable, ephemeral storage.Store) *SessionManager {
	return &SessionManager{
		users:     users,
		durable:   durable,
		ephemeral: ephemeral,
		now:       time.Now,
	}
}

// GenerateSessionToken returns a "session_"-prefixed random token.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return "session_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Login authenticates the credentials and creates a session for the user.
func (m *SessionManager) Login(ctx context.Context, email, password string, rememberMe bool) (models.SessionRecord, error) {
	user, err := m.users.Authenticate(ctx, email, password)
	if err != nil {
		return models.SessionRecord{}, err
	}
	return m.CreateSession(ctx, user, rememberMe)
}

// CreateSession replaces any current session with a new one for user and
// records the login time on the user record.
func (m *SessionManager) CreateSession(ctx context.Context, user models.UserRecord, rememberMe bool) (models.SessionRecord, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return models.SessionRecord{}, err
	}

	now := m.now().UTC()
	session := models.SessionRecord{
		Token:     token,
		User:      user.Projection(),
		CreatedAt: now,
	}
	target := m.durable
	if !rememberMe {
		expires := now.Add(sessionTTL)
		session.ExpiresAt = &expires
		target = m.ephemeral
	}

	m.mu.Lock()
	m.clearLocked(ctx)
	if err := storage.SetJSON(ctx, target, SessionKey, session); err != nil {
		log.Printf("Session manager: failed to persist session: %v", err)
		metrics.PersistenceWriteFailuresTotal.WithLabelValues(SessionKey).Inc()
	}
	m.mu.Unlock()

	if _, err := m.users.Update(ctx, user.Email, UserUpdate{LastLogin: &now}); err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Printf("Session manager: failed to record last login for %s: %v", user.Email, err)
	}

	metrics.AuthEventsTotal.WithLabelValues("login").Inc()
	return session, nil
}

// GetSession returns the current session, or nil when there is none. An
// expired session is removed from both tiers.
func (m *SessionManager) GetSession(ctx context.Context) *models.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.readSession(ctx, m.durable)
	if session == nil {
		session = m.readSession(ctx, m.ephemeral)
	}
	if session == nil {
		return nil
	}

	if session.Expired(m.now()) {
		m.clearLocked(ctx)
		metrics.AuthEventsTotal.WithLabelValues("session_expired").Inc()
		return nil
	}
	return session
}

func (m *SessionManager) IsSessionValid(ctx context.Context) bool {
	return m.GetSession(ctx) != nil
}

// ClearSession removes the session from both tiers.
func (m *SessionManager) ClearSession(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked(ctx)
	metrics.AuthEventsTotal.WithLabelValues("logout").Inc()
}

func (m *SessionManager) clearLocked(ctx context.Context) {
	for _, s := range []storage.Store{m.durable, m.ephemeral} {
		if err := s.Remove(ctx, SessionKey); err != nil {
			log.Printf("Session manager: failed to remove session: %v", err)
			metrics.PersistenceWriteFailuresTotal.WithLabelValues(SessionKey).Inc()
		}
	}
}

func (m *SessionManager) readSession(ctx context.Context, s storage.Store) *models.SessionRecord {
	var session models.SessionRecord
	if err := storage.GetJSON(ctx, s, SessionKey, &session); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Session manager: ignoring unreadable session: %v", err)
			metrics.PersistenceCorruptReadsTotal.WithLabelValues(SessionKey).Inc()
		}
		return nil
	}
	if session.Token == "" {
		return nil
	}
	return &session
}

// CreateGuest starts a credential-less guest session.
func (m *SessionManager) CreateGuest(ctx context.Context, displayName string) (models.GuestSession, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return models.GuestSession{}, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultGuestName
	}

	guest := models.GuestSession{
		IsGuest:     true,
		DisplayName: displayName,
		Token:       token,
		CreatedAt:   m.now().UTC(),
	}
	if err := storage.SetJSON(ctx, m.ephemeral, GuestKey, guest); err != nil {
		log.Printf("Session manager: failed to persist guest session: %v", err)
		metrics.PersistenceWriteFailuresTotal.WithLabelValues(GuestKey).Inc()
	}

	metrics.AuthEventsTotal.WithLabelValues("guest").Inc()
	return guest, nil
}

// GetGuest returns the guest session, or nil when there is none.
func (m *SessionManager) GetGuest(ctx context.Context) *models.GuestSession {
	var guest models.GuestSession
	if err := storage.GetJSON(ctx, m.ephemeral, GuestKey, &guest); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Session manager: ignoring unreadable guest session: %v", err)
		}
		return nil
	}
	return &guest
}

func (m *SessionManager) ClearGuest(ctx context.Context) {
	if err := m.ephemeral.Remove(ctx, GuestKey); err != nil {
		log.Printf("Session manager: failed to remove guest session: %v", err)
	}
}
