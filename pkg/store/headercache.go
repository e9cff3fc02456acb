package store

import (
	"context"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/internal/util"

	"github.com/jackc/pgx/v5"
)

// Get returns the cache entry for the normalized header, or nil if absent.
func (s *PGStore) Get(ctx context.Context, header string) (*HeaderCacheEntry, error) {
	key := util.NormalizeHeader(header)

	row := s.conn.QueryRow(ctx, `
		SELECT header, category, header_attribute, column_attribute, sample, validated
		FROM header_cache
		WHERE header = $1
	`, key)

	entry := HeaderCacheEntry{}
	err := row.Scan(
		&entry.Header,
		&entry.Category,
		&entry.HeaderAttribute,
		&entry.ColumnAttribute,
		&entry.Sample,
		&entry.Validated,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header cache: %w", err)
	}
	return &entry, nil
}

// Upsert inserts or updates the entry under its normalized header. The
// update is a single statement so two concurrent classifications of the same
// header cannot interleave: once validated, populated fields win over any
// fresh model guess and only empty fields are filled.
func (s *PGStore) Upsert(ctx context.Context, entry HeaderCacheEntry) error {
	key := util.NormalizeHeader(entry.Header)
	if key == "" {
		return fmt.Errorf("refusing to cache empty header")
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO header_cache (header, category, header_attribute, column_attribute, sample, validated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (header) DO UPDATE SET
			category = CASE WHEN header_cache.validated AND header_cache.category <> ''
				THEN header_cache.category ELSE EXCLUDED.category END,
			header_attribute = CASE WHEN header_cache.validated AND header_cache.header_attribute <> ''
				THEN header_cache.header_attribute ELSE EXCLUDED.header_attribute END,
			column_attribute = CASE WHEN header_cache.validated AND header_cache.column_attribute <> ''
				THEN header_cache.column_attribute ELSE EXCLUDED.column_attribute END,
			sample = CASE WHEN header_cache.validated AND header_cache.sample <> ''
				THEN header_cache.sample ELSE EXCLUDED.sample END,
			validated = header_cache.validated OR EXCLUDED.validated
	`,
		key,
		string(entry.Category),
		entry.HeaderAttribute,
		entry.ColumnAttribute,
		util.SanitizePostgresText(entry.Sample),
		entry.Validated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert header cache entry: %w", err)
	}
	return nil
}

// Validate flips the validated flag from false to true in a single
// compare-and-set statement. Returns false when the flag was already set or
// the header is not cached.
func (s *PGStore) Validate(ctx context.Context, header string) (bool, error) {
	key := util.NormalizeHeader(header)

	tag, err := s.conn.Exec(ctx, `
		UPDATE header_cache SET validated = true
		WHERE header = $1 AND NOT validated
	`, key)
	if err != nil {
		return false, fmt.Errorf("failed to validate header cache entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
