// Package store persists runs and harvest objects. The current flag marks
// the latest object per GUID; a unique partial index keeps it single even
// under concurrent reconciliations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/opendatazurich/losd-harvester/internal/domain"
)

type Store struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (s Store) InsertRun(ctx context.Context, r domain.Run) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO runs(id,source_url,status,started_at) VALUES (?,?,?,?)`,
		r.ID, r.SourceURL, r.Status, r.StartedAt)
	return err
}

func (s Store) FinishRun(ctx context.Context, r domain.Run) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, created=?, updated=?, deleted=?, unchanged=?, failed=?, skipped=? WHERE id=?`,
		r.Status, r.FinishedAt, r.Created, r.Updated, r.Deleted, r.Unchanged, r.Failed, r.Skipped, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var r domain.Run
	var finished sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT id,source_url,status,started_at,finished_at,created,updated,deleted,unchanged,failed,skipped FROM runs WHERE id=?`, id).
		Scan(&r.ID, &r.SourceURL, &r.Status, &r.StartedAt, &finished, &r.Created, &r.Updated, &r.Deleted, &r.Unchanged, &r.Failed, &r.Skipped)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if finished.Valid {
		r.FinishedAt = finished.String
	}
	return r, err
}

func (s Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT id,source_url,status,started_at,finished_at,created,updated,deleted,unchanged,failed,skipped FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Run
	for rows.Next() {
		var r domain.Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceURL, &r.Status, &r.StartedAt, &finished, &r.Created, &r.Updated, &r.Deleted, &r.Unchanged, &r.Failed, &r.Skipped); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.String
		}
		res = append(res, r)
	}
	return res, nil
}

func scanObject(scan func(dest ...any) error) (domain.HarvestObject, error) {
	var o domain.HarvestObject
	var content, recordID, outcome, errMsg sql.NullString
	var current int
	err := scan(&o.ID, &o.RunID, &o.GUID, &o.Source, &content, &o.Status, &current, &recordID, &outcome, &errMsg, &o.Created)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.Current = current == 1
	if content.Valid {
		o.Content = content.String
	}
	if recordID.Valid {
		o.RecordID = recordID.String
	}
	if outcome.Valid {
		o.Outcome = outcome.String
	}
	if errMsg.Valid {
		o.Error = errMsg.String
	}
	return o, nil
}

const objectCols = `id,run_id,guid,source,content,status,current,record_id,outcome,error,created_at`

// CurrentByGUID returns the current object for an identity key, the diff
// base for this run.
func (s Store) CurrentByGUID(ctx context.Context, guid string) (domain.HarvestObject, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+objectCols+` FROM harvest_objects WHERE guid=? AND current=1`, guid)
	return scanObject(row.Scan)
}

// CurrentGUIDs returns every identity key that has a current object for
// the given source, excluding delete tombstones.
func (s Store) CurrentGUIDs(ctx context.Context, source string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT guid FROM harvest_objects WHERE source=? AND current=1 AND status != 'delete' ORDER BY guid`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var guids []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		guids = append(guids, g)
	}
	return guids, nil
}

// InsertObjectTx writes an object inside the caller's transaction. The
// unique index on (guid, current=1) makes a double flip fail rather than
// leave two current objects.
func (s Store) InsertObjectTx(ctx context.Context, tx *sql.Tx, o domain.HarvestObject) error {
	current := 0
	if o.Current {
		current = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO harvest_objects(`+objectCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.RunID, o.GUID, o.Source, nullable(o.Content), o.Status, current, nullable(o.RecordID), nullable(o.Outcome), nullable(o.Error), o.Created)
	return err
}

// ClearCurrentTx flips the previous current object for a GUID to
// non-current and reports whether one existed.
func (s Store) ClearCurrentTx(ctx context.Context, tx *sql.Tx, guid string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE harvest_objects SET current=0 WHERE guid=? AND current=1`, guid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetOutcomeTx records the reconciliation outcome on an object.
func (s Store) SetOutcomeTx(ctx context.Context, tx *sql.Tx, id, outcome, recordID, errMsg string) error {
	_, err := tx.ExecContext(ctx, `UPDATE harvest_objects SET outcome=?, record_id=?, error=? WHERE id=?`,
		outcome, nullable(recordID), nullable(errMsg), id)
	return err
}

type ObjectFilters struct {
	RunID   string
	GUID    string
	Current bool
	Limit   int
}

func (s Store) ListObjects(ctx context.Context, f ObjectFilters) ([]domain.HarvestObject, error) {
	var clauses []string
	var args []any
	if f.RunID != "" {
		clauses = append(clauses, "run_id=?")
		args = append(args, f.RunID)
	}
	if f.GUID != "" {
		clauses = append(clauses, "guid=?")
		args = append(args, f.GUID)
	}
	if f.Current {
		clauses = append(clauses, "current=1")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + objectCols + ` FROM harvest_objects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HarvestObject
	for rows.Next() {
		o, err := scanObject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
