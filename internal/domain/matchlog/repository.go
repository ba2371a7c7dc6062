package matchlog

import "context"

// Repository defines the interface for match log storage.
// Implemented by the Postgres repository in the infrastructure layer.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Entry, error)
	List(ctx context.Context, filter ListFilter) ([]*Entry, error)
}
