package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neurocanvas/neurocanvas/pkg/model"
)

// InsertObservation appends an observation, assigning the next per-user
// sequence number within the same transaction. The assigned id is returned
// and written back into obs.Seq.
func (d *Database) InsertObservation(ctx context.Context, obs *model.Observation) (int64, error) {
	if obs.UserID == "" || obs.Kind == "" {
		return 0, model.WrapOp("insert observation", fmt.Errorf("%w: user id and kind are required", model.ErrInvalidObservation))
	}
	vec, err := json.Marshal(obs.Vector)
	if err != nil {
		return 0, model.WrapOp("insert observation", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var seq int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM observations WHERE user_id = ? AND kind = ?;`,
		obs.UserID, obs.Kind)
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO observations(user_id, kind, seq, timestamp, label, confidence, vector)
        VALUES(?, ?, ?, ?, ?, ?, ?);
    `, obs.UserID, obs.Kind, seq, obs.Timestamp, obs.Label, obs.Confidence, string(vec)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	obs.Seq = seq
	return seq, nil
}

// ListObservations returns a user's observations most-recent-first.
// A non-positive limit means no limit.
func (d *Database) ListObservations(ctx context.Context, userID string, kind model.Kind, limit, offset int) ([]model.Observation, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := d.db.QueryContext(ctx, `
        SELECT user_id, kind, seq, timestamp, label, confidence, vector
        FROM observations
        WHERE user_id = ? AND kind = ?
        ORDER BY seq DESC
        LIMIT ? OFFSET ?;
    `, userID, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// GetObservation fetches a single observation by id.
func (d *Database) GetObservation(ctx context.Context, userID string, kind model.Kind, seq int64) (model.Observation, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT user_id, kind, seq, timestamp, label, confidence, vector
        FROM observations
        WHERE user_id = ? AND kind = ? AND seq = ?;
    `, userID, kind, seq)

	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Observation{}, model.WrapOp("get observation", fmt.Errorf("%w: observation %d", model.ErrNotFound, seq))
	}
	return obs, err
}

// CountObservations returns the size of a user's window.
func (d *Database) CountObservations(ctx context.Context, userID string, kind model.Kind) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE user_id = ? AND kind = ?;`,
		userID, kind).Scan(&n)
	return n, err
}

// EvictOverCapacity removes the oldest observations beyond capacity and
// returns their ids, oldest first. Returns nil when the window fits.
func (d *Database) EvictOverCapacity(ctx context.Context, userID string, kind model.Kind, capacity int) ([]int64, error) {
	if capacity <= 0 {
		return nil, model.WrapOp("evict", errors.New("capacity must be positive"))
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE user_id = ? AND kind = ?;`,
		userID, kind).Scan(&count); err != nil {
		return nil, err
	}
	if count <= capacity {
		return nil, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, `
        SELECT seq FROM observations
        WHERE user_id = ? AND kind = ?
        ORDER BY seq ASC
        LIMIT ?;
    `, userID, kind, count-capacity)
	if err != nil {
		return nil, err
	}
	var evicted []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return nil, err
		}
		evicted = append(evicted, seq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	args := make([]any, 0, len(evicted)+2)
	args = append(args, userID, kind)
	for _, seq := range evicted {
		args = append(args, seq)
	}
	query := `DELETE FROM observations WHERE user_id = ? AND kind = ? AND seq IN (` + placeholders(len(evicted)) + `);`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d.log.Debug().Str("user", userID).Str("kind", string(kind)).Int("evicted", len(evicted)).Msg("observation window trimmed")
	return evicted, nil
}

// DeleteObservation removes a single observation. Used by the rollback path
// when an ingest could not be applied consistently.
func (d *Database) DeleteObservation(ctx context.Context, userID string, kind model.Kind, seq int64) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM observations WHERE user_id = ? AND kind = ? AND seq = ?;`,
		userID, kind, seq)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (model.Observation, error) {
	var obs model.Observation
	var vec string
	if err := row.Scan(&obs.UserID, &obs.Kind, &obs.Seq, &obs.Timestamp, &obs.Label, &obs.Confidence, &vec); err != nil {
		return model.Observation{}, err
	}
	if err := json.Unmarshal([]byte(vec), &obs.Vector); err != nil {
		return model.Observation{}, err
	}
	return obs, nil
}
