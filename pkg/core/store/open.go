package store

import (
	"context"
	"fmt"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DataDir     string
	DatabaseURL string
	// Migrate applies the schema on Postgres before returning.
	Migrate bool
}

// Open returns the repositories of the configured backend.
func Open(ctx context.Context, o Options) (*Repositories, error) {
	switch o.Driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFileBacked(o.DataDir)
	case DriverPostgres:
		pool, err := Connect(ctx, o.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if o.Migrate {
			if err := Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", o.Driver)
	}
}
