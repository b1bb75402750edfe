package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists lists in a single SQLite file.
//
// The pool holds one connection, so transactions are serialized process-wide
// and a reader never observes a half-shifted list.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if path != ":memory:" && !strings.Contains(path, "mode=memory") {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", p, err)
		}
	}

	ddl, err := schema("sqlite.sql")
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// InsertAt implements Store.InsertAt in one transaction.
func (s *SQLiteStore) InsertAt(ctx context.Context, userID, itemID string, pos int, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opInsertAt, start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranked_items WHERE user_id = ? AND item_id = ?`, userID, itemID).Scan(&exists); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	if exists > 0 {
		return model.RankedItem{}, alreadyRanked(userID, itemID)
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranked_items WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	if pos < 1 || pos > n+1 {
		return model.RankedItem{}, invalidPosition(pos, n)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ranked_items SET position = -(position + 1) WHERE user_id = ? AND position >= ?`, userID, pos); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ranked_items SET position = -position WHERE user_id = ? AND position < 0`, userID); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	rankedAt := s.now().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ranked_items (user_id, item_id, position, sentiment, affinity, ranked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, itemID, pos, int(meta.Sentiment), string(meta.Affinity), rankedAt.UnixMilli()); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}
	if err := tx.Commit(); err != nil {
		return model.RankedItem{}, unavailable(opInsertAt, err)
	}

	metrics.RecordRankingInserted()
	return model.RankedItem{
		UserID: userID, ItemID: itemID, Position: pos,
		Sentiment: meta.Sentiment, Affinity: meta.Affinity, RankedAt: rankedAt,
	}, nil
}

// RemoveAt implements Store.RemoveAt in one transaction.
func (s *SQLiteStore) RemoveAt(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opRemoveAt, start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := scanItem(tx.QueryRowContext(ctx, selectItem+` WHERE user_id = ? AND item_id = ?`, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	if err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ranked_items WHERE user_id = ? AND item_id = ?`, userID, itemID); err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ranked_items SET position = -(position - 1) WHERE user_id = ? AND position > ?`, userID, removed.Position); err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ranked_items SET position = -position WHERE user_id = ? AND position < 0`, userID); err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}
	if err := tx.Commit(); err != nil {
		return model.RankedItem{}, unavailable(opRemoveAt, err)
	}

	metrics.RecordRankingRemoved()
	return removed, nil
}

// SetMeta implements Store.SetMeta.
func (s *SQLiteStore) SetMeta(ctx context.Context, userID, itemID string, meta model.Meta) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opSetMeta, start, err) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ranked_items SET sentiment = ?, affinity = ? WHERE user_id = ? AND item_id = ?`,
		int(meta.Sentiment), string(meta.Affinity), userID, itemID)
	if err != nil {
		return model.RankedItem{}, unavailable(opSetMeta, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	metrics.RecordMetadataUpdate()
	return s.Get(ctx, userID, itemID)
}

// List implements Store.List.
func (s *SQLiteStore) List(ctx context.Context, userID string) (out []model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opList, start, err) }()

	rows, err := s.db.QueryContext(ctx, selectItem+` WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, unavailable(opList, err)
	}
	defer rows.Close()

	out = []model.RankedItem{}
	for rows.Next() {
		it, err := scanItem(rows)
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
func (s *SQLiteStore) Get(ctx context.Context, userID, itemID string) (out model.RankedItem, err error) {
	start := time.Now()
	defer func() { observe(opGet, start, err) }()

	out, err = scanItem(s.db.QueryRowContext(ctx, selectItem+` WHERE user_id = ? AND item_id = ?`, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RankedItem{}, notRanked(userID, itemID)
	}
	if err != nil {
		return model.RankedItem{}, unavailable(opGet, err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context, userID string) (n int, err error) {
	start := time.Now()
	defer func() { observe(opCount, start, err) }()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ranked_items WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, unavailable(opCount, err)
	}
	return n, nil
}

// Users implements Store.Users.
func (s *SQLiteStore) Users(ctx context.Context) (out []string, err error) {
	start := time.Now()
	defer func() { observe(opUsers, start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM ranked_items ORDER BY user_id`)
	if err != nil {
		return nil, unavailable(opUsers, err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, unavailable(opUsers, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(opUsers, err)
	}
	return out, nil
}

// Totals implements Store.Totals.
func (s *SQLiteStore) Totals(ctx context.Context) (users, items int, err error) {
	start := time.Now()
	defer func() { observe(opTotals, start, err) }()

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id), COUNT(*) FROM ranked_items`).Scan(&users, &items); err != nil {
		return 0, 0, unavailable(opTotals, err)
	}
	return users, items, nil
}

const selectItem = `SELECT user_id, item_id, position, sentiment, affinity, ranked_at FROM ranked_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.RankedItem, error) {
	var (
		it        model.RankedItem
		sentiment int
		aff       string
		rankedAt  int64
	)
	if err := r.Scan(&it.UserID, &it.ItemID, &it.Position, &sentiment, &aff, &rankedAt); err != nil {
		return model.RankedItem{}, err
	}
	it.Sentiment = model.Sentiment(sentiment)
	it.Affinity = model.Affinity(aff)
	it.RankedAt = time.UnixMilli(rankedAt).UTC()
	return it, nil
}
