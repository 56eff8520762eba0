package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/kuiper-api/internal/audio"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/storage"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

type observerFunc func(audio.Result)

func (f observerFunc) ObserveAnalysis(res audio.Result) { f(res) }

// sineWAV builds a mono 16-bit PCM WAV with a 440 Hz sine at amplitude amp.
func sineWAV(frames, rate int, amp float64) []byte {
	payload := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		v := amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(int16(math.Round(v*32767))))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(payload)))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), uint32(rate), uint32(rate * 2), uint16(2), uint16(16)} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	scripts *script.MemoryRepository
	store   *mockStore
	script  *script.Script
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	scripts := script.NewMemoryRepository()
	sc := script.New("LauraVoice", []string{"Hello there.", "How are you?", "Goodbye."})
	require.NoError(t, scripts.Create(context.Background(), sc))

	repo := NewMemoryRepository()
	store := new(mockStore)
	return &fixture{
		svc:     NewService(repo, scripts, store, nil, opts...),
		repo:    repo,
		scripts: scripts,
		store:   store,
		script:  sc,
	}
}

func TestService_Save(t *testing.T) {
	var observed []audio.Result
	f := newFixture(t, WithAnalysisObserver(observerFunc(func(r audio.Result) {
		observed = append(observed, r)
	})))
	ctx := context.Background()
	wav := sineWAV(22050, 22050, 0.5)

	path := "user-1/1/LauraVoice_0002.wav"
	f.store.On("Put", ctx, path, wav, "audio/wav").Return(nil).Once()

	out, err := f.svc.Save(ctx, SaveInput{
		ScriptID:   f.script.ID,
		LineIndex:  1,
		PhraseText: "  How are you?  ",
		UserID:     "user-1",
		Audio:      wav,
	})
	require.NoError(t, err)
	f.store.AssertExpectations(t)
	f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	rec := out.Recording
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "LauraVoice_0002.wav", rec.Filename)
	assert.Equal(t, path, rec.StoragePath)
	assert.Equal(t, "How are you?", rec.PhraseText)
	assert.Equal(t, "user-1", rec.RecorderName)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "LauraVoice", rec.ScriptName)
	assert.Equal(t, int64(len(wav)), rec.FileSizeBytes)
	assert.True(t, rec.Valid)
	assert.InDelta(t, 1.0, rec.DurationSeconds, 1e-9)
	assert.InDelta(t, 0.5, rec.PeakAmplitude, 0.001)
	assert.InDelta(t, 0.3536, rec.RMSLevel, 0.001)

	assert.True(t, out.Analysis.Valid)
	require.Len(t, observed, 1)
	assert.Equal(t, audio.OutcomeAnalyzed, observed[0].Outcome)

	stored, err := f.repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.RMSLevel, stored.RMSLevel)
}

func TestService_Save_InvalidAudioIsStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	silence := sineWAV(22050, 22050, 0)

	f.store.On("Put", ctx, mock.Anything, silence, "audio/wav").Return(nil)

	out, err := f.svc.Save(ctx, SaveInput{
		ScriptID: f.script.ID, LineIndex: 0, PhraseText: "Hello there.", UserID: "u", Audio: silence,
	})
	require.NoError(t, err)

	assert.False(t, out.Recording.Valid)
	assert.False(t, out.Analysis.Valid)
	assert.Equal(t, "Audio too quiet (RMS 0.000)", out.Analysis.Error)
}

func TestService_Save_ReRecordKeepsID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wav := sineWAV(22050, 22050, 0.5)

	f.store.On("Put", ctx, mock.Anything, mock.Anything, "audio/wav").Return(nil)

	in := SaveInput{ScriptID: f.script.ID, LineIndex: 0, PhraseText: "Hello there.", UserID: "u", Audio: wav}
	first, err := f.svc.Save(ctx, in)
	require.NoError(t, err)
	second, err := f.svc.Save(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.Recording.ID, second.Recording.ID)
	f.store.AssertNumberOfCalls(t, "Put", 2)
}

func TestService_Save_Rejections(t *testing.T) {
	wav := sineWAV(22050, 22050, 0.5)

	tests := []struct {
		name    string
		mutate  func(in *SaveInput)
		wantErr error
		wantMsg string
	}{
		{"empty audio", func(in *SaveInput) { in.Audio = nil }, ErrEmptyAudio, "empty audio data"},
		{"blank phrase", func(in *SaveInput) { in.PhraseText = " \t" }, ErrPhraseRequired, "phrase text is required"},
		{"missing user", func(in *SaveInput) { in.UserID = "" }, ErrUserRequired, ""},
		{"unknown script", func(in *SaveInput) { in.ScriptID = 404 }, script.ErrScriptNotFound, ""},
		{"negative line", func(in *SaveInput) { in.LineIndex = -1 }, ErrInvalidLineIndex, "invalid line index -1 for script with 3 lines"},
		{"line past end", func(in *SaveInput) { in.LineIndex = 3 }, ErrInvalidLineIndex, "invalid line index 3 for script with 3 lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := SaveInput{ScriptID: f.script.ID, LineIndex: 0, PhraseText: "Hello", UserID: "u", Audio: wav}
			tt.mutate(&in)

			_, err := f.svc.Save(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
			f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Save_StoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("Put", ctx, mock.Anything, mock.Anything, "audio/wav").Return(errors.New("bucket unavailable"))

	_, err := f.svc.Save(ctx, SaveInput{
		ScriptID: f.script.ID, LineIndex: 0, PhraseText: "Hello", UserID: "u", Audio: sineWAV(22050, 22050, 0.5),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	list, err := f.repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_Save_UsesInjectedAnalyzer(t *testing.T) {
	f := newFixture(t, WithAnalyzer(func([]byte) audio.Result {
		return audio.Result{Valid: false, Error: "Audio is clipping", PeakAmplitude: 1}
	}))
	ctx := context.Background()

	f.store.On("Put", ctx, mock.Anything, mock.Anything, "audio/wav").Return(nil)

	out, err := f.svc.Save(ctx, SaveInput{
		ScriptID: f.script.ID, LineIndex: 2, PhraseText: "Goodbye.", UserID: "u", Audio: []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Audio is clipping", out.Analysis.Error)
	assert.Equal(t, 1.0, out.Recording.PeakAmplitude)
}

func seed(t *testing.T, f *fixture, recs ...*Recording) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, f.repo.Upsert(context.Background(), r))
	}
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := script.New("Other", []string{"a"})
	require.NoError(t, f.scripts.Create(ctx, other))

	seed(t, f,
		&Recording{ScriptID: f.script.ID, LineIndex: 1, RecorderName: "u1", UserID: "u1"},
		&Recording{ScriptID: other.ID, LineIndex: 0, RecorderName: "u1", UserID: "u1"},
		&Recording{ScriptID: f.script.ID, LineIndex: 0, RecorderName: "u2", UserID: "u2"},
	)

	all, err := f.svc.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "LauraVoice", all[0].ScriptName)
	assert.Equal(t, "Other", all[1].ScriptName)

	filtered, err := f.svc.List(ctx, "u1", other.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, other.ID, filtered[0].ScriptID)

	none, err := f.svc.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_Progress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := script.New("Aardvark", []string{"only"})
	require.NoError(t, f.scripts.Create(ctx, empty))

	seed(t, f,
		&Recording{ScriptID: f.script.ID, LineIndex: 0, RecorderName: "u1", UserID: "u1"},
		&Recording{ScriptID: f.script.ID, LineIndex: 2, RecorderName: "u1", UserID: "u1"},
		&Recording{ScriptID: f.script.ID, LineIndex: 1, RecorderName: "u2", UserID: "u2"},
	)

	progress, err := f.svc.Progress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, progress, 2)

	assert.Equal(t, Progress{ScriptID: empty.ID, ScriptName: "Aardvark", Recorded: 0, Total: 1, Remaining: 1, Percent: 0}, progress[0])
	assert.Equal(t, Progress{ScriptID: f.script.ID, ScriptName: "LauraVoice", Recorded: 2, Total: 3, Remaining: 1, Percent: 66.7}, progress[1])
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(0, 0))
	assert.Equal(t, 0.0, percent(0, 5))
	assert.Equal(t, 33.3, percent(1, 3))
	assert.Equal(t, 100.0, percent(4, 4))
	assert.Equal(t, 12.5, percent(1, 8))
}

func TestService_Audio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &Recording{ScriptID: 1, LineIndex: 0, RecorderName: "u1", UserID: "u1", Filename: "LauraVoice_0001.wav", StoragePath: "u1/1/LauraVoice_0001.wav"}
	noPath := &Recording{ScriptID: 1, LineIndex: 1, RecorderName: "u1", UserID: "u1"}
	gone := &Recording{ScriptID: 1, LineIndex: 2, RecorderName: "u1", UserID: "u1", StoragePath: "u1/1/gone.wav"}
	seed(t, f, rec, noPath, gone)

	f.store.On("Get", ctx, "u1/1/LauraVoice_0001.wav").Return(io.NopCloser(bytes.NewReader([]byte("RIFF"))), nil)
	f.store.On("Get", ctx, "u1/1/gone.wav").Return(nil, storage.ErrObjectNotFound)

	got, data, err := f.svc.Audio(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "LauraVoice_0001.wav", got.Filename)
	assert.Equal(t, []byte("RIFF"), data)

	_, _, err = f.svc.Audio(ctx, "u2", rec.ID)
	assert.ErrorIs(t, err, ErrRecordingNotFound)

	_, _, err = f.svc.Audio(ctx, "u1", 999)
	assert.ErrorIs(t, err, ErrRecordingNotFound)

	_, _, err = f.svc.Audio(ctx, "u1", noPath.ID)
	assert.ErrorIs(t, err, ErrAudioNotFound)

	_, _, err = f.svc.Audio(ctx, "u1", gone.ID)
	assert.ErrorIs(t, err, ErrAudioNotFound)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &Recording{ScriptID: 1, LineIndex: 0, RecorderName: "u1", UserID: "u1", StoragePath: "u1/1/a.wav"}
	seed(t, f, rec)

	assert.ErrorIs(t, f.svc.Delete(ctx, "u2", rec.ID), ErrRecordingNotFound)

	f.store.On("Delete", ctx, []string{"u1/1/a.wav"}).Return(errors.New("storage down")).Once()

	require.NoError(t, f.svc.Delete(ctx, "u1", rec.ID))
	f.store.AssertExpectations(t)

	_, err := f.repo.FindByID(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrRecordingNotFound)
}

func TestService_PurgeScript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed(t, f,
		&Recording{ScriptID: 1, LineIndex: 0, RecorderName: "u1", StoragePath: "u1/1/a.wav"},
		&Recording{ScriptID: 1, LineIndex: 1, RecorderName: "u2", StoragePath: "u2/1/b.wav"},
		&Recording{ScriptID: 1, LineIndex: 2, RecorderName: "u2"},
		&Recording{ScriptID: 2, LineIndex: 0, RecorderName: "u1", StoragePath: "u1/2/c.wav"},
	)

	f.store.On("Delete", ctx, []string{"u1/1/a.wav", "u2/1/b.wav"}).Return(errors.New("partial failure")).Once()

	require.NoError(t, f.svc.PurgeScript(ctx, 1))
	f.store.AssertExpectations(t)

	left, err := f.repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(2), left[0].ScriptID)
}

func TestService_ImplementsScriptPurger(t *testing.T) {
	var _ script.RecordingPurger = (*Service)(nil)
}
