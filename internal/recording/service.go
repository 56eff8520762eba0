package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/maauso/kuiper-api/internal/audio"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/storage"
)

// ContentType is the MIME type recordings are stored and served with.
const ContentType = "audio/wav"

// ScriptReader is the part of the script catalog the recording use cases need.
type ScriptReader interface {
	FindByID(ctx context.Context, id int64) (*script.Script, error)
	List(ctx context.Context) ([]*script.Script, error)
}

// AnalysisObserver is notified of every analysis result.
type AnalysisObserver interface {
	ObserveAnalysis(res audio.Result)
}

// Service implements the recording use cases.
type Service struct {
	repo     Repository
	scripts  ScriptReader
	store    storage.ObjectStore
	analyze  func([]byte) audio.Result
	observer AnalysisObserver
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAnalyzer replaces the WAV analyzer. Used by tests.
func WithAnalyzer(fn func([]byte) audio.Result) ServiceOption {
	return func(s *Service) {
		s.analyze = fn
	}
}

// WithAnalysisObserver sets an observer for analysis results.
func WithAnalysisObserver(o AnalysisObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService creates a new Service.
func NewService(repo Repository, scripts ScriptReader, store storage.ObjectStore, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		scripts: scripts,
		store:   store,
		analyze: audio.Analyze,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveInput contains the parameters of an upload.
type SaveInput struct {
	ScriptID   int64
	LineIndex  int
	PhraseText string
	UserID     string
	Audio      []byte
}

// SaveOutput is the stored recording together with its analysis.
type SaveOutput struct {
	Recording *Recording
	Analysis  audio.Result
}

// Save analyzes and stores an uploaded recording. Re-recording a line
// replaces the previous audio and metadata. Recordings that fail the quality
// checks are stored too, with Valid set to false.
func (s *Service) Save(ctx context.Context, in SaveInput) (*SaveOutput, error) {
	if len(in.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	phrase := strings.TrimSpace(in.PhraseText)
	if phrase == "" {
		return nil, ErrPhraseRequired
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrUserRequired
	}

	sc, err := s.scripts.FindByID(ctx, in.ScriptID)
	if err != nil {
		return nil, err
	}
	if !sc.HasLine(in.LineIndex) {
		return nil, &InvalidLineIndexError{Index: in.LineIndex, LineCount: sc.LineCount()}
	}

	res := s.Analyze(in.Audio)

	filename := Filename(sc.Name, in.LineIndex)
	path := StoragePath(userID, sc.ID, filename)

	// Put replaces any audio from an earlier take of the same line.
	if err := s.store.Put(ctx, path, in.Audio, ContentType); err != nil {
		s.logger.Error("failed to upload audio to storage",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("store audio: %w", err)
	}

	rec := &Recording{
		ScriptID:        sc.ID,
		ScriptName:      sc.Name,
		LineIndex:       in.LineIndex,
		PhraseText:      phrase,
		RecorderName:    userID,
		UserID:          userID,
		Filename:        filename,
		StoragePath:     path,
		DurationSeconds: res.DurationSeconds,
		PeakAmplitude:   res.PeakAmplitude,
		RMSLevel:        res.RMSLevel,
		Valid:           res.Valid,
		FileSizeBytes:   int64(len(in.Audio)),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		s.logger.Error("failed to save recording metadata",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("save recording: %w", err)
	}

	s.logger.Info("saved recording",
		slog.Int64("recording_id", rec.ID),
		slog.String("user_id", userID),
		slog.String("filename", filename),
		slog.Float64("duration_seconds", res.DurationSeconds),
		slog.Bool("valid", res.Valid),
		slog.String("outcome", res.Outcome.String()),
	)

	return &SaveOutput{Recording: rec, Analysis: res}, nil
}

// Analyze runs the WAV quality checks on data without storing anything.
func (s *Service) Analyze(data []byte) audio.Result {
	res := s.analyze(data)
	if s.observer != nil {
		s.observer.ObserveAnalysis(res)
	}
	return res
}

// List returns userID's recordings, optionally restricted to one script,
// with script names filled in.
func (s *Service) List(ctx context.Context, userID string, scriptID int64) ([]*Recording, error) {
	recs, err := s.repo.List(ctx, Filter{ScriptID: scriptID, RecorderName: strings.TrimSpace(userID)})
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if len(recs) == 0 {
		return recs, nil
	}

	scripts, err := s.scripts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	names := make(map[int64]string, len(scripts))
	for _, sc := range scripts {
		names[sc.ID] = sc.Name
	}
	for _, r := range recs {
		r.ScriptName = names[r.ScriptID]
	}
	return recs, nil
}

// Progress returns, for every script ordered by name, how many of its lines
// userID has recorded.
func (s *Service) Progress(ctx context.Context, userID string) ([]Progress, error) {
	scripts, err := s.scripts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}

	recorder := strings.TrimSpace(userID)
	out := make([]Progress, 0, len(scripts))
	for _, sc := range scripts {
		n, err := s.repo.Count(ctx, sc.ID, recorder)
		if err != nil {
			return nil, fmt.Errorf("count recordings: %w", err)
		}
		total := sc.LineCount()
		out = append(out, Progress{
			ScriptID:   sc.ID,
			ScriptName: sc.Name,
			Recorded:   n,
			Total:      total,
			Remaining:  total - n,
			Percent:    percent(n, total),
		})
	}
	return out, nil
}

// percent returns recorded/total as a percentage rounded to one decimal.
func percent(recorded, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(recorded)/float64(total)*1000) / 10
}

// Audio returns the recording and its audio bytes. Recordings owned by other
// users are reported as ErrRecordingNotFound.
func (s *Service) Audio(ctx context.Context, userID string, id int64) (*Recording, []byte, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.StoragePath == "" {
		return nil, nil, ErrAudioNotFound
	}

	rc, err := s.store.Get(ctx, rec.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrAudioNotFound
		}
		return nil, nil, fmt.Errorf("load audio: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("read audio: %w", err)
	}
	return rec, data, nil
}

// Delete removes a recording owned by userID. A failure to remove the audio
// object is logged and the metadata row is deleted regardless.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if rec.StoragePath != "" {
		if err := s.store.Delete(ctx, rec.StoragePath); err != nil {
			s.logger.Warn("failed to delete recording audio",
				slog.String("path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted recording",
		slog.Int64("recording_id", id),
		slog.String("user_id", userID),
	)
	return nil
}

// PurgeScript removes the audio and metadata of every recording of scriptID.
// Object removal failures are logged; metadata is removed regardless.
func (s *Service) PurgeScript(ctx context.Context, scriptID int64) error {
	recs, err := s.repo.List(ctx, Filter{ScriptID: scriptID})
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}

	paths := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.StoragePath != "" {
			paths = append(paths, r.StoragePath)
		}
	}
	if len(paths) > 0 {
		if err := s.store.Delete(ctx, paths...); err != nil {
			s.logger.Warn("failed to delete storage files",
				slog.Int64("script_id", scriptID),
				slog.Int("count", len(paths)),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.DeleteByScript(ctx, scriptID); err != nil {
		return fmt.Errorf("delete recordings: %w", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, userID string, id int64) (*Recording, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(strings.TrimSpace(userID)) {
		return nil, ErrRecordingNotFound
	}
	return rec, nil
}
