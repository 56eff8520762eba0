package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPurger struct {
	mock.Mock
}

func (m *mockPurger) PurgeScript(ctx context.Context, scriptID int64) error {
	args := m.Called(ctx, scriptID)
	return args.Error(0)
}

func newTestService(t *testing.T) (*Service, *mockPurger) {
	t.Helper()
	purger := new(mockPurger)
	return NewService(NewMemoryRepository(), purger, nil), purger
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "  Laura  ", []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, "Laura", sc.Name)
	assert.Equal(t, 2, sc.LineCount())
	assert.NotZero(t, sc.ID)
	assert.False(t, sc.CreatedAt.IsZero())

	_, err = svc.Create(ctx, "Laura", []string{"three"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, `script name "Laura" already exists`, err.Error())

	_, err = svc.Create(ctx, " ", []string{"x"})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.Create(ctx, "Empty", nil)
	assert.ErrorIs(t, err, ErrNoLines)
}

func TestService_CreateFromText(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		override string
		content  string
		wantName string
		wantErr  error
	}{
		{"name from file", "LauraVoice.txt", "", "a\nb\n", "LauraVoice", nil},
		{"upper-case extension", "PHONEMES.TXT", "", "a", "PHONEMES", nil},
		{"explicit name", "x.txt", "Custom", "a", "Custom", nil},
		{"explicit name with extension", "x.txt", "Custom.txt", "a", "Custom", nil},
		{"path stripped", "dir/sub/lines.txt", "", "a", "lines", nil},
		{"not a text file", "audio.wav", "", "a", "", ErrNotTextFile},
		{"no lines", "blank.txt", "", "\n \n", "", ErrNoLines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)

			sc, err := svc.CreateFromText(context.Background(), tt.filename, tt.override, []byte(tt.content))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, sc.Name)
		})
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "A", []string{"1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "B", []string{"1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, "A2", []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Name)
	assert.Equal(t, 3, updated.LineCount())

	// Keeping its own name is fine.
	_, err = svc.Update(ctx, a.ID, "A2", []string{"1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, "B", []string{"1"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.Update(ctx, 999, "Z", []string{"1"})
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestService_Delete_PurgesRecordings(t *testing.T) {
	svc, purger := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "A", []string{"1"})
	require.NoError(t, err)

	purger.On("PurgeScript", ctx, sc.ID).Return(nil).Once()

	require.NoError(t, svc.Delete(ctx, sc.ID))
	purger.AssertExpectations(t)

	_, err = svc.Get(ctx, sc.ID)
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestService_Delete_PurgeFailureKeepsScript(t *testing.T) {
	svc, purger := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "A", []string{"1"})
	require.NoError(t, err)

	purger.On("PurgeScript", ctx, sc.ID).Return(errors.New("db down")).Once()

	err = svc.Delete(ctx, sc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = svc.Get(ctx, sc.ID)
	assert.NoError(t, err)
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, purger := newTestService(t)

	err := svc.Delete(context.Background(), 42)

	assert.ErrorIs(t, err, ErrScriptNotFound)
	purger.AssertNotCalled(t, "PurgeScript", mock.Anything, mock.Anything)
}

func TestService_List(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "zeta", []string{"1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alpha", []string{"1"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	// No purger configured: delete still works.
	require.NoError(t, svc.Delete(ctx, list[0].ID))
}
