package pipeline

import "context"

// Repository defines the interface for run persistence.
type Repository interface {
	// Save persists a run. An existing run with the same ID is updated.
	Save(ctx context.Context, run *Run) error

	// FindByID retrieves a run by its unique identifier.
	// Returns ErrRunNotFound if the run does not exist.
	FindByID(ctx context.Context, id string) (*Run, error)

	// List returns all runs.
	List(ctx context.Context) ([]*Run, error)
}
