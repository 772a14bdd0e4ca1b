package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/opendatazurich/losd-harvester/internal/domain"
)

// SQLite is the local catalog implementation backing the CLI and tests.
type SQLite struct {
	DB  *sql.DB
	Now func() time.Time
}

var _ Client = (*SQLite)(nil)

func (c *SQLite) now() string {
	if c.Now != nil {
		return c.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func validate(rec domain.Record) error {
	if rec.Name == "" {
		return ValidationError{Field: "name", Message: "missing"}
	}
	if rec.Title == "" {
		return ValidationError{Field: "title", Message: "missing"}
	}
	return nil
}

// CreateTx stores a record inside the caller's transaction. Resource ids
// are assigned before the payload is marshalled so the stored payload and
// the resource rows agree.
func (c *SQLite) CreateTx(ctx context.Context, tx *sql.Tx, guid string, rec domain.Record) (string, error) {
	if err := validate(rec); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ensureResourceIDs(&rec)
	now := c.now()
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO records(id,guid,name,title,payload_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		rec.ID, nullable(guid), rec.Name, rec.Title, string(payload), now, now); err != nil {
		return "", err
	}
	if err := c.writeResources(ctx, tx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (c *SQLite) UpdateTx(ctx context.Context, tx *sql.Tx, rec domain.Record) error {
	if rec.ID == "" {
		return ValidationError{Field: "id", Message: "missing"}
	}
	if err := validate(rec); err != nil {
		return err
	}
	ensureResourceIDs(&rec)
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE records SET name=?, title=?, payload_json=?, updated_at=? WHERE id=?`,
		rec.Name, rec.Title, string(payload), c.now(), rec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_resources WHERE record_id=?`, rec.ID); err != nil {
		return err
	}
	return c.writeResources(ctx, tx, rec)
}

func (c *SQLite) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Create wraps CreateTx in its own transaction.
func (c *SQLite) Create(ctx context.Context, guid string, rec domain.Record) (string, error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	id, err := c.CreateTx(ctx, tx, guid, rec)
	if err != nil {
		return "", err
	}
	return id, tx.Commit()
}

// Update wraps UpdateTx in its own transaction.
func (c *SQLite) Update(ctx context.Context, rec domain.Record) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := c.UpdateTx(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete wraps DeleteTx in its own transaction.
func (c *SQLite) Delete(ctx context.Context, id string) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := c.DeleteTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureResourceIDs(rec *domain.Record) {
	for i := range rec.Resources {
		if rec.Resources[i].ID == "" {
			rec.Resources[i].ID = uuid.NewString()
		}
	}
}

func (c *SQLite) writeResources(ctx context.Context, tx *sql.Tx, rec domain.Record) error {
	for i := range rec.Resources {
		payload, err := json.Marshal(rec.Resources[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO record_resources(id,record_id,uri,payload_json) VALUES (?,?,?,?)`,
			rec.Resources[i].ID, rec.ID, rec.Resources[i].URI, string(payload)); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLite) FindByIdentity(ctx context.Context, guid string) (domain.Record, error) {
	return c.findOne(ctx, `SELECT payload_json FROM records WHERE guid=?`, guid)
}

func (c *SQLite) FindByName(ctx context.Context, name string) (domain.Record, error) {
	return c.findOne(ctx, `SELECT payload_json FROM records WHERE name=?`, name)
}

func (c *SQLite) findOne(ctx context.Context, query string, arg any) (domain.Record, error) {
	var payload string
	err := c.DB.QueryRowContext(ctx, query, arg).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// List returns every stored record ordered by name.
func (c *SQLite) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT payload_json FROM records ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
