package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
)

const itemColumns = `id, booklet_id, version_id, rank, created_at_unixms, updated_at_unixms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.Item, error) {
	var it model.Item
	var created, updated int64
	if err := r.Scan(&it.ID, &it.BookletID, &it.VersionID, &it.Rank, &created, &updated); err != nil {
		return model.Item{}, err
	}
	it.CreatedAt = fromMs(created)
	it.UpdatedAt = fromMs(updated)
	return it, nil
}

func (s *Store) requireBooklet(ctx context.Context, bookletID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM booklets WHERE id = ?`, bookletID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFoundError{Kind: "booklet", ID: bookletID}
	}
	return err
}

// ListItems returns the booklet's items in rank order.
func (s *Store) ListItems(ctx context.Context, bookletID int64) ([]model.Item, error) {
	if err := s.requireBooklet(ctx, bookletID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM booklet_items WHERE booklet_id = ? ORDER BY rank, id`, bookletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) getItem(ctx context.Context, bookletID, itemID int64) (model.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM booklet_items WHERE booklet_id = ? AND id = ?`, bookletID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, NotFoundError{Kind: "item", ID: itemID}
	}
	return it, err
}

func validRank(rank int) error {
	if rank < 1 {
		return fmt.Errorf("%w: rank must be >= 1 (got %d)", ErrInvalid, rank)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateItem inserts an item and bumps the booklet's updated_at in the same transaction.
func (s *Store) CreateItem(ctx context.Context, bookletID int64, spec model.ItemSpec) (model.Item, error) {
	if err := validRank(spec.Rank); err != nil {
		return model.Item{}, err
	}
	if err := s.requireBooklet(ctx, bookletID); err != nil {
		return model.Item{}, err
	}
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.nowMs()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO booklet_items(booklet_id, version_id, rank, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			bookletID, spec.VersionID, spec.Rank, now, now)
		if err != nil {
			return classify(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return s.touchBooklet(ctx, tx, bookletID)
	})
	if err != nil {
		return model.Item{}, err
	}
	return s.getItem(ctx, bookletID, id)
}

// UpdateItem rewrites an item's rank. The unique (booklet, rank) index rejects a rank held
// by another item with ErrConflict.
func (s *Store) UpdateItem(ctx context.Context, bookletID, itemID int64, patch model.ItemPatch) (model.Item, error) {
	if patch.Rank == nil {
		return s.getItem(ctx, bookletID, itemID)
	}
	if err := validRank(*patch.Rank); err != nil {
		return model.Item{}, err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE booklet_items SET rank = ?, updated_at_unixms = ? WHERE booklet_id = ? AND id = ?`,
			*patch.Rank, s.nowMs(), bookletID, itemID)
		if err != nil {
			return classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NotFoundError{Kind: "item", ID: itemID}
		}
		return s.touchBooklet(ctx, tx, bookletID)
	})
	if err != nil {
		return model.Item{}, err
	}
	return s.getItem(ctx, bookletID, itemID)
}

func (s *Store) DeleteItem(ctx context.Context, bookletID, itemID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM booklet_items WHERE booklet_id = ? AND id = ?`, bookletID, itemID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NotFoundError{Kind: "item", ID: itemID}
		}
		return s.touchBooklet(ctx, tx, bookletID)
	})
}

// ReplaceItems swaps the booklet's whole item list in one transaction.
func (s *Store) ReplaceItems(ctx context.Context, bookletID int64, specs []model.ItemSpec) ([]model.Item, error) {
	if !s.BulkReplace {
		return nil, fmt.Errorf("replace items: %w", reconcile.ErrUnsupported)
	}
	for _, sp := range specs {
		if err := validRank(sp.Rank); err != nil {
			return nil, err
		}
	}
	if err := s.requireBooklet(ctx, bookletID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM booklet_items WHERE booklet_id = ?`, bookletID); err != nil {
		return nil, err
	}
	now := s.nowMs()
	for _, sp := range specs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booklet_items(booklet_id, version_id, rank, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			bookletID, sp.VersionID, sp.Rank, now, now); err != nil {
			return nil, classify(err)
		}
	}
	if err := s.touchBooklet(ctx, tx, bookletID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.ListItems(ctx, bookletID)
}
