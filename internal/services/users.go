package services

import (
	"context"
	"encoding/json"
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

// Storage keys shared with the browser dashboard.
const (
	UsersKey   = "crypto_tracker_users"
	SessionKey = "crypto_tracker_session"
	GuestKey   = "crypto_tracker_guest"

	ExportVersion = "1.0"
)

// UserStore keeps the user table as a single JSON object keyed by email.
type UserStore struct {
	store    storage.Store
	hashCost int
	now      func() time.Time

	mu sync.Mutex

	dummyOnce sync.Once
	dummy     string
}

func NewUserStore(store storage.Store) *UserStore {
	return &UserStore{
		store:    store,
		hashCost: DefaultHashCost,
		now:      time.Now,
	}
}

// UserUpdate holds the mutable profile fields. Nil fields are left alone.
type UserUpdate struct {
	DisplayName *string
	Password    *string
	LastLogin   *time.Time
}

// Register creates a user. The password must pass ValidatePassword and the
// display name defaults to the local part of the email.
func (s *UserStore) Register(ctx context.Context, email, password, displayName string) (models.UserRecord, error) {
	email = strings.TrimSpace(email)
	if !ValidateEmail(email) {
		return models.UserRecord{}, ErrInvalidEmail
	}
	if check := ValidatePassword(password); !check.Valid {
		return models.UserRecord{}, &PasswordPolicyError{Problems: check.Errors}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.loadLocked(ctx)
	if _, exists := users[email]; exists {
		return models.UserRecord{}, ErrDuplicateUser
	}

	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	user := models.UserRecord{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	users[email] = user
	s.saveLocked(ctx, users)

	metrics.AuthEventsTotal.WithLabelValues("register").Inc()
	return user, nil
}

func (s *UserStore) Get(ctx context.Context, email string) (models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.loadLocked(ctx)[strings.TrimSpace(email)]
	if !ok {
		return models.UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

// Update applies upd to an existing user and returns the stored record.
func (s *UserStore) Update(ctx context.Context, email string, upd UserUpdate) (models.UserRecord, error) {
	var hash string
	if upd.Password != nil {
		if check := ValidatePassword(*upd.Password); !check.Valid {
			return models.UserRecord{}, &PasswordPolicyError{Problems: check.Errors}
		}
		var err error
		if hash, err = HashPassword(*upd.Password, s.hashCost); err != nil {
			return models.UserRecord{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.loadLocked(ctx)
	email = strings.TrimSpace(email)
	user, ok := users[email]
	if !ok {
		return models.UserRecord{}, ErrUserNotFound
	}

	if upd.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if hash != "" {
		user.PasswordHash = hash
	}
	if upd.LastLogin != nil {
		t := upd.LastLogin.UTC()
		user.LastLogin = &t
	}

	users[email] = user
	s.saveLocked(ctx, users)
	return user, nil
}

// Authenticate checks the credentials and returns the user on success.
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (models.UserRecord, error) {
	user, err := s.Get(ctx, email)
	if err != nil {
		// still pay the bcrypt cost so unknown emails are not distinguishable by timing
		VerifyPassword(password, s.dummyHash())
		metrics.AuthEventsTotal.WithLabelValues("login_failed").Inc()
		return models.UserRecord{}, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		metrics.AuthEventsTotal.WithLabelValues("login_failed").Inc()
		return models.UserRecord{}, ErrInvalidCredentials
	}
	return user, nil
}

// dummyHash returns a hash at the store's cost, built once on first use.
func (s *UserStore) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = HashPassword("not-a-real-password-0", s.hashCost)
	})
	return s.dummy
}

// Export serializes a user for transfer. The password hash is included only
// when includePassword is set.
func (s *UserStore) Export(ctx context.Context, email string, includePassword bool) (models.UserExport, error) {
	user, err := s.Get(ctx, email)
	if err != nil {
		return models.UserExport{}, err
	}

	out := models.UserExport{
		Version:    ExportVersion,
		ExportedAt: s.now().UTC(),
		User: models.ExportedUser{
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   user.CreatedAt,
		},
	}
	if includePassword {
		out.User.PasswordHash = user.PasswordHash
	}
	return out, nil
}

// Import stores a user from export data. Without merge an existing email is
// rejected with ErrDuplicateUser; with merge the imported fields overwrite
// the existing ones. Data without a user email fails with ErrInvalidFormat
// and changes nothing.
func (s *UserStore) Import(ctx context.Context, data []byte, merge bool) (models.UserRecord, error) {
	var doc struct {
		User map[string]json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.UserRecord{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var email string
	if raw, ok := doc.User["email"]; ok {
		if err := json.Unmarshal(raw, &email); err != nil {
			return models.UserRecord{}, fmt.Errorf("%w: email must be a string", ErrInvalidFormat)
		}
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return models.UserRecord{}, fmt.Errorf("%w: user email is required", ErrInvalidFormat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.loadLocked(ctx)
	existing, exists := users[email]
	if exists && !merge {
		return models.UserRecord{}, fmt.Errorf("%w: use merge to update", ErrDuplicateUser)
	}

	fields := map[string]json.RawMessage{}
	if exists {
		base, err := json.Marshal(existing)
		if err != nil {
			return models.UserRecord{}, err
		}
		if err := json.Unmarshal(base, &fields); err != nil {
			return models.UserRecord{}, err
		}
	}
	for k, v := range doc.User {
		fields[k] = v
	}
	stamp, _ := json.Marshal(s.now().UTC())
	fields["importedAt"] = stamp

	merged, err := json.Marshal(fields)
	if err != nil {
		return models.UserRecord{}, err
	}
	var user models.UserRecord
	if err := json.Unmarshal(merged, &user); err != nil {
		return models.UserRecord{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	user.Email = email

	users[email] = user
	s.saveLocked(ctx, users)

	metrics.AuthEventsTotal.WithLabelValues("import").Inc()
	return user, nil
}

// loadLocked reads the user table, failing open to an empty table.
func (s *UserStore) loadLocked(ctx context.Context) map[string]models.UserRecord {
	users := map[string]models.UserRecord{}
	err := storage.GetJSON(ctx, s.store, UsersKey, &users)

	var corrupt *storage.CorruptError
	switch {
	case err == nil:
		if users == nil {
			users = map[string]models.UserRecord{}
		}
	case errors.Is(err, storage.ErrNotFound):
	case errors.As(err, &corrupt):
		log.Printf("User store: ignoring corrupt user table: %v", err)
		metrics.PersistenceCorruptReadsTotal.WithLabelValues(UsersKey).Inc()
		users = map[string]models.UserRecord{}
	default:
		log.Printf("User store: failed to read user table: %v", err)
		users = map[string]models.UserRecord{}
	}
	return users
}

func (s *UserStore) saveLocked(ctx context.Context, users map[string]models.UserRecord) {
	if err := storage.SetJSON(ctx, s.store, UsersKey, users); err != nil {
		log.Printf("User store: failed to persist user table: %v", err)
		metrics.PersistenceWriteFailuresTotal.WithLabelValues(UsersKey).Inc()
	}
}
