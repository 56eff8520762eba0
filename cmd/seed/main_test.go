package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/kuiper-api/internal/script"
)

func TestFileFlags(t *testing.T) {
	var f fileFlags
	require.NoError(t, f.Set("Laura=LauraVoice.txt"))
	require.NoError(t, f.Set(" Other = /abs/other.txt "))

	assert.Equal(t, fileFlags{
		{Name: "Laura", Path: "LauraVoice.txt"},
		{Name: "Other", Path: "/abs/other.txt"},
	}, f)
	assert.Equal(t, "Laura=LauraVoice.txt,Other=/abs/other.txt", f.String())

	assert.Error(t, f.Set("no-separator"))
	assert.Error(t, f.Set("=path.txt"))
	assert.Error(t, f.Set("Name="))
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "laura.txt"), []byte("Hello.\n\n  Bye.  \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte("\n \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "taken.txt"), []byte("x\n"), 0o600))

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := script.NewMemoryRepository()
	svc := script.NewService(repo, nil, logger)
	_, err := svc.Create(ctx, "Taken", []string{"old"})
	require.NoError(t, err)

	res := seed(ctx, svc, dir, []scriptFile{
		{Name: "LauraVoice", Path: "laura.txt"},
		{Name: "Blank", Path: "blank.txt"},
		{Name: "Missing", Path: "missing.txt"},
		{Name: "Taken", Path: "taken.txt"},
	}, logger)

	assert.Equal(t, result{Created: 1, Existing: 1, Skipped: 2}, res)

	sc, err := repo.FindByName(ctx, "LauraVoice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello.", "Bye."}, sc.Lines)

	taken, err := repo.FindByName(ctx, "Taken")
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, taken.Lines, "existing scripts are left alone")
}
