package backend

import (
	"context"

	"tally/internal/config"
	"tally/internal/ledger"
	"tally/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger store and optional cleanup function.
// SQLite is set only for the sqlite backend; the audit log lives there.
type BackendResult struct {
	Store   ledger.Store
	SQLite  *storage.Store
	Cleanup CleanupFunc
}

// Close runs Cleanup if present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates the ledger store selected by DATA_BACKEND.
type Factory interface {
	CreateBackend(ctx context.Context, cfg *config.Config) (*BackendResult, error)
}
