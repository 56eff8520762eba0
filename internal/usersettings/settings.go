// Package usersettings stores per-user microphone and equalizer preferences.
package usersettings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Bounds and defaults of the audio settings.
const (
	MinGain     = 20
	MaxGain     = 200
	DefaultGain = 100
	MinEQ       = -12
	MaxEQ       = 12
)

var (
	// ErrSettingsNotFound is returned by repositories when a user has no row.
	ErrSettingsNotFound = errors.New("user settings not found")
	// ErrOutOfRange is returned when a setting is outside its bounds.
	ErrOutOfRange = errors.New("setting out of range")
	// ErrUserRequired is returned when no user identity is attached.
	ErrUserRequired = errors.New("user id is required")
)

// Settings are the recording preferences of one user.
type Settings struct {
	Gain     int
	Bass     int
	Treble   int
	DeviceID *string
}

// Defaults returns the settings of a user who never saved any.
func Defaults() Settings {
	return Settings{Gain: DefaultGain}
}

// Validate checks every field against its bounds.
func (s Settings) Validate() error {
	switch {
	case s.Gain < MinGain || s.Gain > MaxGain:
		return fmt.Errorf("%w: gain must be between %d and %d", ErrOutOfRange, MinGain, MaxGain)
	case s.Bass < MinEQ || s.Bass > MaxEQ:
		return fmt.Errorf("%w: bass must be between %d and %d", ErrOutOfRange, MinEQ, MaxEQ)
	case s.Treble < MinEQ || s.Treble > MaxEQ:
		return fmt.Errorf("%w: treble must be between %d and %d", ErrOutOfRange, MinEQ, MaxEQ)
	}
	return nil
}

func (s Settings) clone() Settings {
	if s.DeviceID != nil {
		d := *s.DeviceID
		s.DeviceID = &d
	}
	return s
}

// Repository persists settings keyed by user ID.
type Repository interface {
	// Get returns ErrSettingsNotFound when the user has no saved settings.
	Get(ctx context.Context, userID string) (Settings, error)
	// Upsert stores settings for the user and returns the stored row.
	Upsert(ctx context.Context, userID string, s Settings) (Settings, error)
}

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]Settings
}

// NewMemoryRepository creates a new in-memory settings repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{settings: make(map[string]Settings)}
}

// Get returns the stored settings of userID.
func (r *MemoryRepository) Get(_ context.Context, userID string) (Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[userID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return s.clone(), nil
}

// Upsert stores a copy of s for userID.
func (r *MemoryRepository) Upsert(_ context.Context, userID string, s Settings) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[userID] = s.clone()
	return s.clone(), nil
}

// Service implements the settings use cases.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns the user's settings, or the defaults when none were saved.
func (s *Service) Get(ctx context.Context, userID string) (Settings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Settings{}, ErrUserRequired
	}
	st, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get user settings: %w", err)
	}
	return st, nil
}

// Update validates and stores the user's settings.
func (s *Service) Update(ctx context.Context, userID string, st Settings) (Settings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Settings{}, ErrUserRequired
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	stored, err := s.repo.Upsert(ctx, userID, st)
	if err != nil {
		return Settings{}, fmt.Errorf("update user settings: %w", err)
	}
	s.logger.Debug("user settings updated",
		slog.String("user_id", userID),
		slog.Int("gain", stored.Gain),
	)
	return stored, nil
}
