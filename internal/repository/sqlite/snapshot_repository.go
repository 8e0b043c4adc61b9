package sqlite

import (
	"database/sql"
	"fmt"

	"camouflage/internal/dto"
	"camouflage/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `id, filename, kind, timestamp, filepath, filesize, thumbnail`

func scanSnapshot(row interface{ Scan(...interface{}) error }) (model.Snapshot, error) {
	var s model.Snapshot
	err := row.Scan(&s.ID, &s.Filename, &s.Kind, &s.Timestamp, &s.FilePath, &s.FileSize, &s.Thumbnail)
	return s, err
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(s *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (filename, kind, timestamp, filepath, filesize, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Filename, s.Kind, s.Timestamp, s.FilePath, s.FileSize, s.Thumbnail)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds snapshots in a single transaction, skipping filenames that
// are already indexed. It returns how many rows were added.
func (r *SnapshotRepository) InsertBatch(snapshots []model.Snapshot) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO snapshots (filename, kind, timestamp, filepath, filesize, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare snapshot statement: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, s := range snapshots {
		result, err := stmt.Exec(s.Filename, s.Kind, s.Timestamp, s.FilePath, s.FileSize, s.Thumbnail)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot %s: %w", s.Filename, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return added, nil
}

// GetByFilename retrieves a snapshot by its filename. A missing row yields nil, nil.
func (r *SnapshotRepository) GetByFilename(filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSnapshot(r.db.Conn().QueryRow(`
		SELECT `+snapshotColumns+`
		FROM snapshots WHERE filename = ?
	`, filename))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// filterClause renders the WHERE conditions shared by list and count queries.
func filterClause(filter *dto.SnapshotFilters) (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return clause, args
	}

	if filter.Kind != "" {
		clause += " AND kind = ?"
		args = append(args, filter.Kind)
	}

	if !filter.DateAfter.IsZero() {
		clause += " AND DATE(timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		clause += " AND DATE(timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return clause, args
}

// GetAll retrieves snapshots matching the filter, newest first.
func (r *SnapshotRepository) GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	clause, args := filterClause(filter)
	query := `SELECT ` + snapshotColumns + ` FROM snapshots` + clause + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// GetTotalCount returns the number of snapshots matching the filter, ignoring paging.
func (r *SnapshotRepository) GetTotalCount(filter *dto.SnapshotFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	clause, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`+clause, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	return count, nil
}

// GetTotalSize returns the summed file size of every indexed snapshot.
func (r *SnapshotRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum snapshot sizes: %w", err)
	}
	return size, nil
}

// DeleteByFilename removes a snapshot by its filename.
func (r *SnapshotRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteAll removes every snapshot record.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	return nil
}
