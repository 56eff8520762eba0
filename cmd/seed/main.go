// Package main seeds the script catalog from local .txt files, one phrase
// per line.
//
// Usage:
//
//	seed [-dir .] [-file Name=path.txt ...]
//
// Requires SUPABASE_URL and SUPABASE_KEY.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/maauso/kuiper-api/internal/config"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/supabase"
)

// scriptFile is one -file Name=path pair.
type scriptFile struct {
	Name string
	Path string
}

var defaultFiles = []scriptFile{
	{Name: "LauraVoice", Path: "LauraVoice.txt"},
	{Name: "phoneme_coverage", Path: "phoneme_coverage.txt"},
}

// fileFlags implements flag.Value for the repeatable -file flag.
type fileFlags []scriptFile

func (f *fileFlags) String() string {
	parts := make([]string, 0, len(*f))
	for _, sf := range *f {
		parts = append(parts, sf.Name+"="+sf.Path)
	}
	return strings.Join(parts, ",")
}

func (f *fileFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected Name=path, got %q", v)
	}
	*f = append(*f, scriptFile{Name: name, Path: path})
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var files fileFlags
	dir := flag.String("dir", ".", "directory relative paths are resolved against")
	flag.Var(&files, "file", "script to import as Name=path.txt (repeatable)")
	flag.Parse()

	if len(files) == 0 {
		files = defaultFiles
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()

	if !cfg.SupabaseEnabled() {
		return errors.New("SUPABASE_URL and SUPABASE_KEY are required")
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		return fmt.Errorf("create Supabase client: %w", err)
	}
	svc := script.NewService(supabase.NewScriptRepository(client), nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("seeding scripts from local .txt files", slog.Int("files", len(files)))
	res := seed(ctx, svc, *dir, files, logger)
	logger.Info("done",
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		return fmt.Errorf("%d scripts failed", res.Failed)
	}
	return nil
}

// result counts what seed did with each file.
type result struct {
	Created  int
	Existing int
	Skipped  int
	Failed   int
}

// seed creates one script per file. Missing or empty files and names that
// already exist are skipped.
func seed(ctx context.Context, svc *script.Service, dir string, files []scriptFile, logger *slog.Logger) result {
	var res result
	for _, f := range files {
		path := f.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		content, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("skipping missing file", slog.String("path", path))
			} else {
				logger.Warn("skipping unreadable file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
			res.Skipped++
			continue
		}

		lines := script.ParseLines(content)
		if len(lines) == 0 {
			logger.Warn("skipping file with no lines", slog.String("path", path))
			res.Skipped++
			continue
		}

		sc, err := svc.Create(ctx, f.Name, lines)
		switch {
		case errors.Is(err, script.ErrDuplicateName):
			logger.Info("script already exists", slog.String("name", f.Name))
			res.Existing++
		case err != nil:
			logger.Error("failed to create script",
				slog.String("name", f.Name),
				slog.String("error", err.Error()),
			)
			res.Failed++
		default:
			logger.Info("script created",
				slog.String("name", sc.Name),
				slog.Int64("id", sc.ID),
				slog.Int("lines", sc.LineCount()),
			)
			res.Created++
		}
	}
	return res
}
