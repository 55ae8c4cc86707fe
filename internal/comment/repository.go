package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wilberttgr/folio/internal/realtime"
)

// timestampFormat matches the column default so explicit and generated
// timestamps sort together.
const timestampFormat = "2006-01-02 15:04:05.000"

const selectColumns = "SELECT id, user_name, content, profile_image, is_pinned, created_at FROM portfolio_comments"

// Publisher receives a change for every committed write.
type Publisher interface {
	Publish(ctx context.Context, c realtime.Change) error
}

// Repository provides data access for comments.
type Repository struct {
	db  *sql.DB
	pub Publisher
}

// NewRepository creates a comment repository. pub may be nil, in which case
// writes are not announced.
func NewRepository(db *sql.DB, pub Publisher) *Repository {
	return &Repository{db: db, pub: pub}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(s rowScanner) (*Comment, error) {
	var c Comment
	var image sql.NullString
	if err := s.Scan(&c.ID, &c.UserName, &c.Content, &image, &c.IsPinned, &c.CreatedAt); err != nil {
		return nil, err
	}
	if image.Valid {
		c.ProfileImage = &image.String
	}
	return &c, nil
}

// Pinned returns the pinned comment. If several are pinned the newest wins.
func (r *Repository) Pinned(ctx context.Context) (*Comment, error) {
	row := r.db.QueryRowContext(ctx,
		selectColumns+" WHERE is_pinned = 1 ORDER BY created_at DESC, id DESC LIMIT 1")
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting pinned comment: %w", err)
	}
	return c, nil
}

// List returns comments with the given pinned flag, newest first.
func (r *Repository) List(ctx context.Context, pinned bool) (comments []*Comment, err error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+" WHERE is_pinned = ? ORDER BY created_at DESC, id DESC", pinned)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	comments = []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}

	return comments, nil
}

// Get returns a comment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Comment, error) {
	return r.get(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *Repository) get(ctx context.Context, q querier, id int64) (*Comment, error) {
	c, err := scanComment(q.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting comment %d: %w", id, err)
	}
	return c, nil
}

// Add validates and stores a visitor's comment. New comments are never pinned.
func (r *Repository) Add(ctx context.Context, d Draft) (*Comment, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO portfolio_comments (user_name, content, profile_image, is_pinned) VALUES (?, ?, ?, 0)",
		d.UserName, d.Content, d.ProfileImage,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}

	return r.readBackInsert(ctx, result)
}

// Import stores a comment with its own timestamp and pinned flag, as when
// restoring an export or seeding content.
func (r *Repository) Import(ctx context.Context, c Comment) (*Comment, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO portfolio_comments (user_name, content, profile_image, is_pinned, created_at) VALUES (?, ?, ?, ?, ?)",
		c.UserName, c.Content, c.ProfileImage, c.IsPinned, c.CreatedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("importing comment: %w", err)
	}

	return r.readBackInsert(ctx, result)
}

func (r *Repository) readBackInsert(ctx context.Context, result sql.Result) (*Comment, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading back comment: %w", err)
	}

	r.publish(ctx, realtime.EventInsert, c, nil)
	return c, nil
}

// Pin marks a comment as pinned and unpins any other pinned comment.
func (r *Repository) Pin(ctx context.Context, id int64) (*Comment, error) {
	return r.setPinned(ctx, id, true)
}

// Unpin clears a comment's pinned flag.
func (r *Repository) Unpin(ctx context.Context, id int64) (*Comment, error) {
	return r.setPinned(ctx, id, false)
}

type pinChange struct {
	old, new *Comment
}

func (r *Repository) setPinned(ctx context.Context, id int64, pinned bool) (*Comment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("rolling back pin", "id", id, "err", rbErr)
		}
	}()

	target, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	var changes []pinChange

	if pinned {
		others, err := pinnedExcept(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		for _, old := range others {
			if _, err := tx.ExecContext(ctx, "UPDATE portfolio_comments SET is_pinned = 0 WHERE id = ?", old.ID); err != nil {
				return nil, fmt.Errorf("unpinning comment %d: %w", old.ID, err)
			}
			updated := *old
			updated.IsPinned = false
			changes = append(changes, pinChange{old: old, new: &updated})
		}
	}

	if target.IsPinned != pinned {
		if _, err := tx.ExecContext(ctx, "UPDATE portfolio_comments SET is_pinned = ? WHERE id = ?", pinned, id); err != nil {
			return nil, fmt.Errorf("updating comment %d: %w", id, err)
		}
		updated := *target
		updated.IsPinned = pinned
		changes = append(changes, pinChange{old: target, new: &updated})
		target = &updated
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pin: %w", err)
	}

	for _, ch := range changes {
		r.publish(ctx, realtime.EventUpdate, ch.new, ch.old)
	}
	return target, nil
}

func pinnedExcept(ctx context.Context, tx *sql.Tx, id int64) (comments []*Comment, err error) {
	rows, err := tx.QueryContext(ctx, selectColumns+" WHERE is_pinned = 1 AND id != ?", id)
	if err != nil {
		return nil, fmt.Errorf("listing pinned comments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pinned comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	old, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM portfolio_comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	r.publish(ctx, realtime.EventDelete, nil, old)
	return nil
}

// publish announces a committed write. Failures are logged; the write stands.
func (r *Repository) publish(ctx context.Context, typ realtime.EventType, newRow, oldRow *Comment) {
	if r.pub == nil {
		return
	}

	var n, o interface{}
	if newRow != nil {
		n = newRow
	}
	if oldRow != nil {
		o = oldRow
	}

	c, err := realtime.NewChange(typ, Table, n, o)
	if err != nil {
		slog.Error("building comment change", "type", typ, "err", err)
		return
	}
	if err := r.pub.Publish(ctx, c); err != nil {
		slog.Error("publishing comment change", "type", typ, "err", err)
	}
}
