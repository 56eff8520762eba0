package recording

import "context"

// Repository defines the interface for recording metadata persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Upsert inserts rec, or updates the row with the same script ID, line
	// index and recorder name, keeping its ID. The stored ID and creation
	// time are written back to rec.
	Upsert(ctx context.Context, rec *Recording) error

	// FindByID retrieves a recording by its identifier.
	// Returns ErrRecordingNotFound if the recording does not exist.
	FindByID(ctx context.Context, id int64) (*Recording, error)

	// List returns recordings matching f ordered by script ID then line index.
	List(ctx context.Context, f Filter) ([]*Recording, error)

	// Count returns the number of recordings of scriptID by recorderName.
	Count(ctx context.Context, scriptID int64, recorderName string) (int, error)

	// Delete removes a recording.
	// Returns ErrRecordingNotFound if the recording does not exist.
	Delete(ctx context.Context, id int64) error

	// DeleteByScript removes every recording of scriptID.
	DeleteByScript(ctx context.Context, scriptID int64) error
}
