package telemetry

import (
	"context"

	"codeberg.org/mutker/airco2ctl/internal/monitor"
)

// Recorder persists completed snapshots.
type Recorder interface {
	Record(ctx context.Context, snapshot monitor.Snapshot) error
	Close() error
}

// Repository is the storage backend behind a Recorder.
type Repository interface {
	Store(ctx context.Context, snapshot monitor.Snapshot) error
	Close() error
}
