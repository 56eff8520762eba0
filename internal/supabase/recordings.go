package supabase

import (
	"context"
	"net/url"

	"github.com/maauso/kuiper-api/internal/recording"
)

// Compile-time check that RecordingRepository implements recording.Repository.
var _ recording.Repository = (*RecordingRepository)(nil)

// recordingConflictKey is the unique constraint re-recordings collide on.
const recordingConflictKey = "script_id,line_index,recorder_name"

// RecordingRepository stores recording metadata in the "recordings" table.
type RecordingRepository struct {
	client *Client
}

// NewRecordingRepository creates a new RecordingRepository.
func NewRecordingRepository(c *Client) *RecordingRepository {
	return &RecordingRepository{client: c}
}

func toRecording(r recordingRow) *recording.Recording {
	rec := &recording.Recording{
		ID:              r.ID,
		ScriptID:        r.ScriptID,
		LineIndex:       r.LineIndex,
		PhraseText:      r.PhraseText,
		RecorderName:    r.RecorderName,
		Filename:        r.Filename,
		DurationSeconds: r.DurationSeconds,
		PeakAmplitude:   r.PeakAmplitude,
		RMSLevel:        r.RMSLevel,
		Valid:           true,
		FileSizeBytes:   r.FileSizeBytes,
		CreatedAt:       r.CreatedAt.Time,
	}
	if r.UserID != nil {
		rec.UserID = *r.UserID
	}
	if r.StoragePath != nil {
		rec.StoragePath = *r.StoragePath
	}
	if r.IsValid != nil {
		rec.Valid = *r.IsValid
	}
	return rec
}

func fromRecording(rec *recording.Recording) recordingRow {
	row := recordingRow{
		ScriptID:        rec.ScriptID,
		LineIndex:       rec.LineIndex,
		PhraseText:      rec.PhraseText,
		RecorderName:    rec.RecorderName,
		Filename:        rec.Filename,
		DurationSeconds: rec.DurationSeconds,
		PeakAmplitude:   rec.PeakAmplitude,
		RMSLevel:        rec.RMSLevel,
		IsValid:         &rec.Valid,
		FileSizeBytes:   rec.FileSizeBytes,
	}
	if rec.UserID != "" {
		row.UserID = &rec.UserID
	}
	if rec.StoragePath != "" {
		row.StoragePath = &rec.StoragePath
	}
	return row
}

// Upsert inserts or merges the recording on its conflict key.
func (r *RecordingRepository) Upsert(ctx context.Context, rec *recording.Recording) error {
	var rows []recordingRow
	if err := r.client.Upsert(ctx, tableRecordings, recordingConflictKey, fromRecording(rec), &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		rec.ID = rows[0].ID
		rec.CreatedAt = rows[0].CreatedAt.Time
	}
	return nil
}

// FindByID retrieves a recording by its ID.
func (r *RecordingRepository) FindByID(ctx context.Context, id int64) (*recording.Recording, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", eq(id))
	q.Set("limit", "1")

	var rows []recordingRow
	if err := r.client.Select(ctx, tableRecordings, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, recording.ErrRecordingNotFound
	}
	return toRecording(rows[0]), nil
}

func filterQuery(f recording.Filter) url.Values {
	q := url.Values{}
	if f.ScriptID != 0 {
		q.Set("script_id", eq(f.ScriptID))
	}
	if f.RecorderName != "" {
		q.Set("recorder_name", eq(f.RecorderName))
	}
	return q
}

// List returns recordings matching f ordered by script ID then line index.
func (r *RecordingRepository) List(ctx context.Context, f recording.Filter) ([]*recording.Recording, error) {
	q := filterQuery(f)
	q.Set("select", "*")
	q.Set("order", "script_id.asc,line_index.asc")

	var rows []recordingRow
	if err := r.client.Select(ctx, tableRecordings, q, &rows); err != nil {
		return nil, err
	}
	out := make([]*recording.Recording, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecording(row))
	}
	return out, nil
}

// Count returns the number of recordings of scriptID by recorderName.
func (r *RecordingRepository) Count(ctx context.Context, scriptID int64, recorderName string) (int, error) {
	q := filterQuery(recording.Filter{ScriptID: scriptID, RecorderName: recorderName})
	q.Set("select", "id")
	return r.client.Count(ctx, tableRecordings, q)
}

// Delete removes a recording row.
func (r *RecordingRepository) Delete(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("id", eq(id))

	var rows []recordingRow
	if err := r.client.Delete(ctx, tableRecordings, q, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return recording.ErrRecordingNotFound
	}
	return nil
}

// DeleteByScript removes every recording row of scriptID.
func (r *RecordingRepository) DeleteByScript(ctx context.Context, scriptID int64) error {
	q := url.Values{}
	q.Set("script_id", eq(scriptID))
	return r.client.Delete(ctx, tableRecordings, q, nil)
}
