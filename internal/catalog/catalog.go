// Package catalog defines the portal collaborator the harvester drives:
// record lookup by identity key, create/update/delete, and the
// post-processing hooks fired after a successful mutation.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opendatazurich/losd-harvester/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// ValidationError reports a record the catalog refused. It fails one
// harvest object, never the run.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Client is the catalog mutation surface. Mutations take the caller's
// transaction so the upsert controller can commit them together with the
// current-flag flip; lookups run outside any transaction.
type Client interface {
	// CreateTx stores a new record and returns its internal id.
	CreateTx(ctx context.Context, tx *sql.Tx, guid string, rec domain.Record) (string, error)
	// UpdateTx replaces the stored record with the given id.
	UpdateTx(ctx context.Context, tx *sql.Tx, rec domain.Record) error
	// DeleteTx removes the record with the given id.
	DeleteTx(ctx context.Context, tx *sql.Tx, id string) error
	// FindByIdentity locates a record by its harvest identity key.
	// Returns ErrNotFound when no record carries the key.
	FindByIdentity(ctx context.Context, guid string) (domain.Record, error)
	// FindByName is the fallback lookup for records whose identity key
	// was stripped by an out-of-band edit.
	FindByName(ctx context.Context, name string) (domain.Record, error)
}

// Hook is one post-processing step run after a successful create or
// update. Hook failures are surfaced as warnings and never undo the
// catalog mutation.
type Hook interface {
	Name() string
	AfterUpsert(ctx context.Context, rec domain.Record) error
}
