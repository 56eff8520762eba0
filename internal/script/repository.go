package script

import "context"

// Repository defines the interface for script persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// List returns all scripts ordered by name.
	List(ctx context.Context) ([]*Script, error)

	// FindByID retrieves a script by its identifier.
	// Returns ErrScriptNotFound if the script does not exist.
	FindByID(ctx context.Context, id int64) (*Script, error)

	// FindByName retrieves a script by its exact name.
	// Returns ErrScriptNotFound if no script has that name.
	FindByName(ctx context.Context, name string) (*Script, error)

	// Create persists a new script and assigns its ID.
	Create(ctx context.Context, s *Script) error

	// Update replaces the name and lines of an existing script.
	// Returns ErrScriptNotFound if the script does not exist.
	Update(ctx context.Context, s *Script) error

	// Delete removes a script.
	// Returns ErrScriptNotFound if the script does not exist.
	Delete(ctx context.Context, id int64) error
}
