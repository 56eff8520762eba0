package usersettings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Get(ctx context.Context, userID string) (Settings, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(Settings), args.Error(1)
}

func (m *mockRepo) Upsert(ctx context.Context, userID string, s Settings) (Settings, error) {
	args := m.Called(ctx, userID, s)
	return args.Get(0).(Settings), args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name  string
		s     Settings
		valid bool
	}{
		{"defaults", Defaults(), true},
		{"bounds low", Settings{Gain: 20, Bass: -12, Treble: -12}, true},
		{"bounds high", Settings{Gain: 200, Bass: 12, Treble: 12}, true},
		{"gain too low", Settings{Gain: 19}, false},
		{"gain too high", Settings{Gain: 201}, false},
		{"bass too low", Settings{Gain: 100, Bass: -13}, false},
		{"treble too high", Settings{Gain: 100, Treble: 13}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutOfRange)
			}
		})
	}
}

func TestService_GetDefaults(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)

	st, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Settings{Gain: 100, Bass: 0, Treble: 0}, st)
	assert.Nil(t, st.DeviceID)
}

func TestService_UpdateThenGet(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	in := Settings{Gain: 150, Bass: 3, Treble: -4, DeviceID: strPtr("mic-1")}
	out, err := svc.Update(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Mutating the caller's copy does not change storage.
	*in.DeviceID = "changed"

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.DeviceID)
	assert.Equal(t, "mic-1", *got.DeviceID)
	assert.Equal(t, 150, got.Gain)

	other, err := svc.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), other)
}

func TestService_UpdateRejectsOutOfRange(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, nil)

	_, err := svc.Update(context.Background(), "u1", Settings{Gain: 500})

	assert.ErrorIs(t, err, ErrOutOfRange)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RequiresUser(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)

	_, err := svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, ErrUserRequired)

	_, err = svc.Update(context.Background(), "", Defaults())
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestService_RepositoryErrors(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.On("Get", ctx, "u1").Return(Settings{}, errors.New("db down"))
	repo.On("Upsert", ctx, "u1", Defaults()).Return(Settings{}, errors.New("db down"))

	_, err := svc.Get(ctx, "u1")
	assert.ErrorContains(t, err, "db down")

	_, err = svc.Update(ctx, "u1", Defaults())
	assert.ErrorContains(t, err, "db down")
}
