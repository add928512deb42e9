package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/coreproxy/edgeproxy/internal/dbpool"
)

// Store persists Entry values to the audit_log table. It implements
// Recorder.
type Store struct {
	pool *dbpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *dbpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordAudit inserts a single audit_log row.
func (s *Store) RecordAudit(ctx context.Context, kind, detail string, bytes int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (kind, detail, bytes, occurred_at)
		VALUES ($1, $2, $3, $4)`,
		kind, detail, bytes, at,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}
