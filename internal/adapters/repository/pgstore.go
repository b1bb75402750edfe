package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

// PostgresStore persists lists in PostgreSQL.
//
// Each mutation runs in one transaction that first takes a transaction-scoped
// advisory lock on the user, so writes to one user's partition are serialized
// while different users never contend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	ddl, err := schema("postgres.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// withUserTx runs fn in a transaction holding the user's advisory lock.
func (s *PostgresStore) withUserTx(ctx context.Context, op, userID string, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// InsertAt implements Store.InsertAt.
func (s *PostgresStore) InsertAt(ctx context.Context, userID, itemID string, pos int, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opInsertAt, start, err) }()

	err = s.withUserTx(ctx, opInsertAt, userID, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM ranked_items WHERE user_id = $1 AND item_id = $2)`, userID, itemID).Scan(&exists); err != nil {
			return unavailable(opInsertAt, err)
		}
		if exists {
			return alreadyRanked(userID, itemID)
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM ranked_items WHERE user_id = $1`, userID).Scan(&n); err != nil {
			return unavailable(opInsertAt, err)
		}
		if pos < 1 || pos > n+1 {
			return invalidPosition(pos, n)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ranked_items SET position = -(position + 1) WHERE user_id = $1 AND position >= $2`, userID, pos); err != nil {
			return unavailable(opInsertAt, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ranked_items SET position = -position WHERE user_id = $1 AND position < 0`, userID); err != nil {
			return unavailable(opInsertAt, err)
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO ranked_items (user_id, item_id, position, sentiment, affinity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+pgColumns,
			userID, itemID, pos, int16(meta.Sentiment), string(meta.Affinity))
		it, err := scanPgItem(row)
		if err != nil {
			return unavailable(opInsertAt, err)
		}
		out = it
		return nil
	})
	if err != nil {
		return model.RankedItem{}, err
	}
	metrics.RecordRankingInserted()
	return out, nil
}

// RemoveAt implements Store.RemoveAt.
func (s *PostgresStore) RemoveAt(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opRemoveAt, start, err) }()

	err = s.withUserTx(ctx, opRemoveAt, userID, func(tx pgx.Tx) error {
		it, err := scanPgItem(tx.QueryRow(ctx,
			`DELETE FROM ranked_items WHERE user_id = $1 AND item_id = $2 RETURNING `+pgColumns, userID, itemID))
		if errors.Is(err, pgx.ErrNoRows) {
			return notRanked(userID, itemID)
		}
		if err != nil {
			return unavailable(opRemoveAt, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ranked_items SET position = -(position - 1) WHERE user_id = $1 AND position > $2`, userID, it.Position); err != nil {
			return unavailable(opRemoveAt, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ranked_items SET position = -position WHERE user_id = $1 AND position < 0`, userID); err != nil {
			return unavailable(opRemoveAt, err)
		}
		out = it
		return nil
	})
	if err != nil {
		return model.RankedItem{}, err
	}
	metrics.RecordRankingRemoved()
	return out, nil
}

// SetMeta implements Store.SetMeta.
func (s *PostgresStore) SetMeta(ctx context.Context, userID, itemID string, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opSetMeta, start, err) }()

	out, err = scanPgItem(s.pool.QueryRow(ctx, `
		UPDATE ranked_items SET sentiment = $3, affinity = $4
		 WHERE user_id = $1 AND item_id = $2
		RETURNING `+pgColumns,
		userID, itemID, int16(meta.Sentiment), string(meta.Affinity)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	if err != nil {
		return model.RankedItem{}, unavailable(opSetMeta, err)
	}
	metrics.RecordMetadataUpdate()
	return out, nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context, userID string) (out []model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opList, start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM ranked_items WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, unavailable(opList, err)
	}
	defer rows.Close()

	out = []model.RankedItem{}
	for rows.Next() {
		it, err := scanPgItem(rows)
		if err != nil {
			return nil, unavailable(opList, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(opList, err)
	}
	return out, nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opGet, start, err) }()

	out, err = scanPgItem(s.pool.QueryRow(ctx,
		`SELECT `+pgColumns+` FROM ranked_items WHERE user_id = $1 AND item_id = $2`, userID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	if err != nil {
		return model.RankedItem{}, unavailable(opGet, err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context, userID string) (n int, err error) {
	start := time.Now()
	defer func() { observe(opCount, start, err) }()

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ranked_items WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, unavailable(opCount, err)
	}
	return n, nil
}

// Users implements Store.Users.
func (s *PostgresStore) Users(ctx context.Context) (out []string, err error) {
	start := time.Now()
	defer func() { observe(opUsers, start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM ranked_items ORDER BY user_id`)
	if err != nil {
		return nil, unavailable(opUsers, err)
	}
	out, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, unavailable(opUsers, err)
	}
	return out, nil
}

// Totals implements Store.Totals.
func (s *PostgresStore) Totals(ctx context.Context) (users, items int, err error) {
	start := time.Now()
	defer func() { observe(opTotals, start, err) }()

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*) FROM ranked_items`).Scan(&users, &items); err != nil {
		return 0, 0, unavailable(opTotals, err)
	}
	return users, items, nil
}

const pgColumns = `user_id, item_id, position, sentiment, affinity, ranked_at`

func scanPgItem(r pgx.Row) (model.RankedItem, error) {
	var (
		it        model.RankedItem
		sentiment int16
		aff       string
	)
	if err := r.Scan(&it.UserID, &it.ItemID, &it.Position, &sentiment, &aff, &it.RankedAt); err != nil {
		return model.RankedItem{}, err
	}
	it.Sentiment = model.Sentiment(sentiment)
	it.Affinity = model.Affinity(aff)
	it.RankedAt = it.RankedAt.UTC()
	return it, nil
}
