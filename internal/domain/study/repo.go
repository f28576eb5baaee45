package study

import "context"

// Repository loads the frozen study snapshot from whatever backing storage
// holds it. Implementations: Postgres (repo_pg.go) and CSV files
// (internal/platform/dataset).
type Repository interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
