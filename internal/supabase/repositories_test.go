package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/kuiper-api/internal/recording"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/usersettings"
)

func TestScriptRepository_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/scripts", r.URL.Path)
		assert.Equal(t, "name.asc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[
			{"id":2,"name":"A","lines":["x","y"],"line_count":2,"created_at":"2025-01-02T03:04:05+00:00"},
			{"id":1,"name":"B","lines":null,"line_count":0}
		]`))
	})
	repo := NewScriptRepository(c)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, []string{"x", "y"}, list[0].Lines)
	assert.Equal(t, 2025, list[0].CreatedAt.Year())
	assert.Equal(t, []string{}, list[1].Lines)
}

func TestScriptRepository_FindByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "eq.7" {
			_, _ = w.Write([]byte(`[{"id":7,"name":"Laura","lines":["a"],"line_count":1}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	repo := NewScriptRepository(c)

	sc, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Laura", sc.Name)
	assert.Equal(t, 1, sc.LineCount())

	_, err = repo.FindByID(context.Background(), 8)
	assert.ErrorIs(t, err, script.ErrScriptNotFound)

	_, err = repo.FindByName(context.Background(), "nope")
	assert.ErrorIs(t, err, script.ErrScriptNotFound)
}

func TestScriptRepository_CreateUpdateDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			assert.NoError(t, json.Unmarshal(body, &row))
			assert.NotContains(t, row, "id")
			assert.NotContains(t, row, "created_at")
			assert.EqualValues(t, 2, row["line_count"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id":11,"name":"New","lines":["a","b"],"line_count":2,"created_at":"2025-05-05T00:00:00Z"}]`))
		case http.MethodPatch:
			if r.URL.Query().Get("id") != "eq.11" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"id":11,"name":"Renamed","lines":["a"],"line_count":1,"created_at":"2025-05-05T00:00:00Z"}]`))
		case http.MethodDelete:
			if r.URL.Query().Get("id") != "eq.11" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"id":11}]`))
		}
	})
	repo := NewScriptRepository(c)
	ctx := context.Background()

	sc := script.New("New", []string{"a", "b"})
	require.NoError(t, repo.Create(ctx, sc))
	assert.Equal(t, int64(11), sc.ID)
	assert.Equal(t, 2025, sc.CreatedAt.Year())

	sc.Name = "Renamed"
	sc.Lines = []string{"a"}
	require.NoError(t, repo.Update(ctx, sc))
	assert.ErrorIs(t, repo.Update(ctx, &script.Script{ID: 12, Name: "x"}), script.ErrScriptNotFound)

	require.NoError(t, repo.Delete(ctx, 11))
	assert.ErrorIs(t, repo.Delete(ctx, 12), script.ErrScriptNotFound)
}

func TestRecordingRepository_Upsert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/recordings", r.URL.Path)
		assert.Equal(t, "script_id,line_index,recorder_name", r.URL.Query().Get("on_conflict"))

		body, _ := io.ReadAll(r.Body)
		var row map[string]any
		assert.NoError(t, json.Unmarshal(body, &row))
		assert.NotContains(t, row, "id")
		assert.Equal(t, "u1", row["user_id"])
		assert.Equal(t, "u1/3/Laura_0001.wav", row["storage_path"])
		assert.Equal(t, false, row["is_valid"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":42,"script_id":3,"line_index":0,"recorder_name":"u1","created_at":"2025-06-01T00:00:00+00:00"}]`))
	})
	repo := NewRecordingRepository(c)

	rec := &recording.Recording{
		ScriptID: 3, LineIndex: 0, RecorderName: "u1", UserID: "u1",
		Filename: "Laura_0001.wav", StoragePath: "u1/3/Laura_0001.wav", Valid: false,
	}
	require.NoError(t, repo.Upsert(context.Background(), rec))
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, 2025, rec.CreatedAt.Year())
}

func TestRecordingRepository_ListAndFind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("id") == "eq.5" {
			_, _ = w.Write([]byte(`[{"id":5,"script_id":1,"line_index":2,"recorder_name":"u1","user_id":"u1","storage_path":"u1/1/x.wav","is_valid":false,"rms_level":0.25}]`))
			return
		}
		if q.Get("id") != "" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		assert.Equal(t, "eq.1", q.Get("script_id"))
		assert.Equal(t, "eq.u1", q.Get("recorder_name"))
		assert.Equal(t, "script_id.asc,line_index.asc", q.Get("order"))
		_, _ = w.Write([]byte(`[{"id":5,"script_id":1,"line_index":2,"recorder_name":"u1","user_id":null,"storage_path":null,"is_valid":null}]`))
	})
	repo := NewRecordingRepository(c)
	ctx := context.Background()

	rec, err := repo.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "u1/1/x.wav", rec.StoragePath)
	assert.False(t, rec.Valid)
	assert.Equal(t, 0.25, rec.RMSLevel)

	_, err = repo.FindByID(ctx, 6)
	assert.ErrorIs(t, err, recording.ErrRecordingNotFound)

	list, err := repo.List(ctx, recording.Filter{ScriptID: 1, RecorderName: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].UserID)
	assert.Empty(t, list[0].StoragePath)
	assert.True(t, list[0].Valid, "missing is_valid defaults to true")
}

func TestRecordingRepository_CountAndDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.Method {
		case http.MethodHead:
			assert.Equal(t, "eq.4", q.Get("script_id"))
			assert.Equal(t, "eq.u1", q.Get("recorder_name"))
			w.Header().Set("Content-Range", "0-2/3")
		case http.MethodDelete:
			if q.Get("id") == "eq.9" {
				_, _ = w.Write([]byte(`[{"id":9}]`))
				return
			}
			if q.Get("script_id") == "eq.4" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			_, _ = w.Write([]byte(`[]`))
		}
	})
	repo := NewRecordingRepository(c)
	ctx := context.Background()

	n, err := repo.Count(ctx, 4, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, repo.Delete(ctx, 9))
	assert.ErrorIs(t, repo.Delete(ctx, 10), recording.ErrRecordingNotFound)
	require.NoError(t, repo.DeleteByScript(ctx, 4))
}

func TestSettingsRepository(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/user_settings", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("user_id") == "eq.u1" {
				_, _ = w.Write([]byte(`[{"user_id":"u1","gain":150,"bass":null,"treble":-3,"device_id":"mic"}]`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
		case http.MethodPost:
			assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
			body, _ := io.ReadAll(r.Body)
			var row map[string]any
			assert.NoError(t, json.Unmarshal(body, &row))
			assert.Contains(t, row, "device_id")
			assert.Nil(t, row["device_id"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("[" + string(body) + "]"))
		}
	})
	repo := NewSettingsRepository(c)
	ctx := context.Background()

	st, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, st.Gain)
	assert.Equal(t, 0, st.Bass)
	assert.Equal(t, -3, st.Treble)
	require.NotNil(t, st.DeviceID)
	assert.Equal(t, "mic", *st.DeviceID)

	_, err = repo.Get(ctx, "u2")
	assert.ErrorIs(t, err, usersettings.ErrSettingsNotFound)

	saved, err := repo.Upsert(ctx, "u2", usersettings.Settings{Gain: 90, Bass: 1, Treble: 2})
	require.NoError(t, err)
	assert.Equal(t, usersettings.Settings{Gain: 90, Bass: 1, Treble: 2}, saved)
}
