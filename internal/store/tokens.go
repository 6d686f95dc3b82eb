package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/schoolstock/stockroom/internal/apperr"
)

// RevokeToken puts a token id on the revocation list until expiresAt. A token
// that has already expired is rejected by the parser, so it is not stored.
// Revoking the same id twice is not an error.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	if jti == "" {
		return apperr.Validation("jti", "is required")
	}

	ts := now()
	if expiresAt.After(ts) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`,
			jti, expiresAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("revoking token: %w", err)
		}
	}

	res, err := db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, ts)
	if err != nil {
		slog.Warn("purging expired token revocations", "error", err)
		return nil
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("purged expired token revocations", "count", n)
	}
	return nil
}

// IsTokenRevoked reports whether a token id is on the revocation list.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var revoked bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}
