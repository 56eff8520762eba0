package supabase

import (
	"context"
	"net/url"
	"strconv"

	"github.com/maauso/kuiper-api/internal/script"
)

// Compile-time check that ScriptRepository implements script.Repository.
var _ script.Repository = (*ScriptRepository)(nil)

// ScriptRepository stores scripts in the "scripts" table.
type ScriptRepository struct {
	client *Client
}

// NewScriptRepository creates a new ScriptRepository.
func NewScriptRepository(c *Client) *ScriptRepository {
	return &ScriptRepository{client: c}
}

func toScript(r scriptRow) *script.Script {
	lines := r.Lines
	if lines == nil {
		lines = []string{}
	}
	return &script.Script{
		ID:        r.ID,
		Name:      r.Name,
		Lines:     lines,
		CreatedAt: r.CreatedAt.Time,
	}
}

func fromScript(s *script.Script) scriptRow {
	return scriptRow{
		Name:      s.Name,
		Lines:     s.Lines,
		LineCount: s.LineCount(),
	}
}

// List returns all scripts ordered by name.
func (r *ScriptRepository) List(ctx context.Context) ([]*script.Script, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "name.asc")

	var rows []scriptRow
	if err := r.client.Select(ctx, tableScripts, q, &rows); err != nil {
		return nil, err
	}
	out := make([]*script.Script, 0, len(rows))
	for _, row := range rows {
		out = append(out, toScript(row))
	}
	return out, nil
}

// FindByID retrieves a script by its ID.
func (r *ScriptRepository) FindByID(ctx context.Context, id int64) (*script.Script, error) {
	return r.findOne(ctx, "id", strconv.FormatInt(id, 10))
}

// FindByName retrieves a script by its name.
func (r *ScriptRepository) FindByName(ctx context.Context, name string) (*script.Script, error) {
	return r.findOne(ctx, "name", name)
}

func (r *ScriptRepository) findOne(ctx context.Context, column, value string) (*script.Script, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set(column, eq(value))
	q.Set("limit", "1")

	var rows []scriptRow
	if err := r.client.Select(ctx, tableScripts, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, script.ErrScriptNotFound
	}
	return toScript(rows[0]), nil
}

// Create inserts a script and writes the assigned ID and creation time back.
func (r *ScriptRepository) Create(ctx context.Context, s *script.Script) error {
	var rows []scriptRow
	if err := r.client.Insert(ctx, tableScripts, fromScript(s), &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		s.ID = rows[0].ID
		if !rows[0].CreatedAt.IsZero() {
			s.CreatedAt = rows[0].CreatedAt.Time
		}
	}
	return nil
}

// Update replaces the name, lines and line count of a script.
func (r *ScriptRepository) Update(ctx context.Context, s *script.Script) error {
	q := url.Values{}
	q.Set("id", eq(s.ID))

	var rows []scriptRow
	if err := r.client.Update(ctx, tableScripts, q, fromScript(s), &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return script.ErrScriptNotFound
	}
	s.CreatedAt = rows[0].CreatedAt.Time
	return nil
}

// Delete removes a script row.
func (r *ScriptRepository) Delete(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("id", eq(id))

	var rows []scriptRow
	if err := r.client.Delete(ctx, tableScripts, q, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return script.ErrScriptNotFound
	}
	return nil
}
