package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// RecordingPurger removes every recording that belongs to a script.
type RecordingPurger interface {
	PurgeScript(ctx context.Context, scriptID int64) error
}

// Service implements the script catalog use cases.
type Service struct {
	repo   Repository
	purger RecordingPurger
	logger *slog.Logger
}

// NewService creates a new Service. purger may be nil, in which case
// deleting a script leaves its recordings in place.
func NewService(repo Repository, purger RecordingPurger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		purger: purger,
		logger: logger,
	}
}

// SetPurger sets the recording purger used by Delete.
func (s *Service) SetPurger(p RecordingPurger) {
	s.purger = p
}

// List returns all scripts ordered by name.
func (s *Service) List(ctx context.Context) ([]*Script, error) {
	return s.repo.List(ctx)
}

// Get retrieves a script by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Script, error) {
	return s.repo.FindByID(ctx, id)
}

// Create stores a new script. The name must not be in use.
func (s *Service) Create(ctx context.Context, name string, lines []string) (*Script, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	sc := New(name, lines)
	if err := s.repo.Create(ctx, sc); err != nil {
		s.logger.Error("failed to create script",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("create script: %w", err)
	}

	s.logger.Info("script created",
		slog.Int64("script_id", sc.ID),
		slog.String("name", sc.Name),
		slog.Int("line_count", sc.LineCount()),
	)
	return sc, nil
}

// CreateFromText creates a script from an uploaded .txt file. The name
// defaults to the file name without its .txt extension.
func (s *Service) CreateFromText(ctx context.Context, filename, name string, content []byte) (*Script, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if !strings.HasSuffix(strings.ToLower(base), ".txt") {
		return nil, ErrNotTextFile
	}

	lines := ParseLines(content)
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = base
	}
	if strings.HasSuffix(strings.ToLower(name), ".txt") {
		name = name[:len(name)-len(".txt")]
	}

	return s.Create(ctx, name, lines)
}

// Update replaces a script's name and lines.
func (s *Service) Update(ctx context.Context, id int64, name string, lines []string) (*Script, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	sc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, id); err != nil {
		return nil, err
	}

	sc.Name = name
	sc.Lines = append([]string(nil), lines...)
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}

	s.logger.Info("script updated",
		slog.Int64("script_id", sc.ID),
		slog.String("name", sc.Name),
		slog.Int("line_count", sc.LineCount()),
	)
	return sc, nil
}

// Delete removes a script together with its recordings.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	if s.purger != nil {
		if err := s.purger.PurgeScript(ctx, id); err != nil {
			s.logger.Error("failed to purge script recordings",
				slog.Int64("script_id", id),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("purge recordings: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("script deleted", slog.Int64("script_id", id))
	return nil
}

// ensureNameFree returns a DuplicateNameError when a script other than
// exceptID already uses name.
func (s *Service) ensureNameFree(ctx context.Context, name string, exceptID int64) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case errors.Is(err, ErrScriptNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup script name: %w", err)
	case existing.ID == exceptID:
		return nil
	default:
		return &DuplicateNameError{Name: name}
	}
}
