package events

import (
	"context"
	"database/sql"

	"github.com/opendatazurich/losd-harvester/internal/domain"
)

// ListByRun returns the events recorded for one run in append order.
func ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT id,ts,type,run_id,guid,payload_json FROM events WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var rid, guid sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &rid, &guid, &e.Payload); err != nil {
			return nil, err
		}
		if rid.Valid {
			e.RunID = rid.String
		}
		if guid.Valid {
			e.GUID = guid.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
