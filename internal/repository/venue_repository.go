package repository // repository defines data access for venues and their layouts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/live-event-booking/internal/model"
)

// VenueRepo provides methods to work with venues and their section
// layouts in the database.  Seats of the template layout are not stored;
// they are regenerated from rows × columns on read.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the given DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// DB exposes the underlying sql.DB so other repositories can share it.
func (r *VenueRepo) DB() *sql.DB { return r.db }

// CreateVenue inserts a venue and its sections in one transaction.  On
// success the venue's ID is populated.
func (r *VenueRepo) CreateVenue(ctx context.Context, v *model.Venue) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO venues (manager_id, name) VALUES (?, ?)`, v.ManagerID, v.Name)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		v.ID = uint64(id)
		if err := insertSectionsTx(ctx, tx, "venue_sections", "venue_id", v.ID, v.Sections); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM venues WHERE id = ?`, v.ID).
			Scan(&v.CreatedAt, &v.UpdatedAt)
	})
}

// GetVenue loads a venue with its layout template.  It returns
// ErrVenueNotFound when there is no matching row.
func (r *VenueRepo) GetVenue(ctx context.Context, id uint64) (*model.Venue, error) {
	const q = `SELECT id, manager_id, name, created_at, updated_at FROM venues WHERE id = ?`
	var v model.Venue
	err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.ManagerID, &v.Name, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	sections, err := loadSections(ctx, r.db, "venue_sections", "venue_id", id)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		v.Sections = append(v.Sections, model.NewSection(s.Name, s.Rows, s.Columns, s.Priority))
	}
	return &v, nil
}

// ReplaceLayout deletes every section of the venue and inserts the new
// ones.  Events already created keep the seat map they were created with.
func (r *VenueRepo) ReplaceLayout(ctx context.Context, venueID uint64, sections []model.Section) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var id uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM venues WHERE id = ? FOR UPDATE`, venueID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVenueNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM venue_sections WHERE venue_id = ?`, venueID); err != nil {
			return err
		}
		if err := insertSectionsTx(ctx, tx, "venue_sections", "venue_id", venueID, sections); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE venues SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, venueID)
		return err
	})
}

// insertSectionsTx writes section geometry into venue_sections or
// event_sections, keyed by ownerCol.
func insertSectionsTx(ctx context.Context, tx *sql.Tx, table, ownerCol string, ownerID uint64, sections []model.Section) error {
	if len(sections) == 0 {
		return nil
	}
	query := `INSERT INTO ` + table + ` (` + ownerCol + `, name, seat_rows, seat_cols, priority) VALUES `
	args := make([]interface{}, 0, len(sections)*5)
	for i, s := range sections {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, ownerID, s.Name, s.Rows, s.Columns, s.Priority)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// loadSections reads section geometry ordered by priority then name.
// Seats are left empty.
func loadSections(ctx context.Context, q queryer, table, ownerCol string, ownerID uint64) ([]model.Section, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, seat_rows, seat_cols, priority FROM `+table+` WHERE `+ownerCol+` = ? ORDER BY priority, name`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.Name, &s.Rows, &s.Columns, &s.Priority); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
