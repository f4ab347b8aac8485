// Package store persists run history: one row per enrichment run with its
// final status and statistics.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resort-geocoder/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

var (
	// ErrNotFound is returned when a run ID does not exist.
	ErrNotFound = errors.New("run not found")
	// ErrUnknownDriver is returned by New for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// NewRun describes a run about to start.
type NewRun struct {
	Provider   string
	InputPath  string
	OutputPath string
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, in NewRun) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store for driver and runs its migration.
func New(ctx context.Context, driver, url string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case DriverSQLite, "":
		s, err = NewSQLite(url)
	case DriverPostgres:
		s, err = NewPostgres(ctx, url, nil)
	case DriverNone:
		return Nop{}, nil
	default:
		return nil, eris.Wrapf(ErrUnknownDriver, "store: %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Nop discards run history.
type Nop struct{}

func (Nop) CreateRun(_ context.Context, in NewRun) (*model.Run, error) {
	now := time.Now().UTC()
	return &model.Run{
		Provider:   in.Provider,
		InputPath:  in.InputPath,
		OutputPath: in.OutputPath,
		Status:     model.RunStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (Nop) FinishRun(context.Context, string, model.RunStatus, *model.RunStats, error) error {
	return nil
}

func (Nop) GetRun(_ context.Context, runID string) (*model.Run, error) {
	return nil, eris.Wrapf(ErrNotFound, "store: %s", runID)
}

func (Nop) ListRuns(context.Context, RunFilter) ([]model.Run, error) { return nil, nil }
func (Nop) Migrate(context.Context) error                            { return nil }
func (Nop) Close() error                                              { return nil }

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
