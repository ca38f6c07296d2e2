package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/neurocanvas/neurocanvas/pkg/model"
)

// CreateUser inserts a new user row and returns it.
func (d *Database) CreateUser(ctx context.Context, username, email string) (model.User, error) {
	if username == "" || email == "" {
		return model.User{}, errors.New("username and email are required")
	}
	id := uuid.NewString()
	if _, err := d.db.ExecContext(ctx, `
        INSERT INTO users(id, username, email) VALUES(?, ?, ?);
    `, id, username, email); err != nil {
		return model.User{}, err
	}
	return d.GetUser(ctx, id)
}

// GetUser fetches a user by id.
func (d *Database) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := d.db.QueryRowContext(ctx, `
        SELECT id, username, email, created_at FROM users WHERE id = ?;
    `, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.WrapOp("get user", fmt.Errorf("%w: user %s", model.ErrNotFound, id))
	}
	return u, err
}

// CreateArtwork inserts an artwork row, assigning its id and returning the
// stored record.
func (d *Database) CreateArtwork(ctx context.Context, art model.Artwork) (model.Artwork, error) {
	if art.UserID == "" {
		return model.Artwork{}, errors.New("artwork user id is required")
	}
	art.ID = uuid.NewString()
	palette, err := json.Marshal(art.Palette)
	if err != nil {
		return model.Artwork{}, err
	}
	if _, err := d.db.ExecContext(ctx, `
        INSERT INTO artworks(id, user_id, title, description, emotion_label, style_label, palette, narrative)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?);
    `, art.ID, art.UserID, art.Title, art.Description, art.EmotionLabel, art.StyleLabel, string(palette), art.Narrative); err != nil {
		return model.Artwork{}, err
	}
	return d.GetArtwork(ctx, art.ID)
}

// GetArtwork fetches an artwork by id.
func (d *Database) GetArtwork(ctx context.Context, id string) (model.Artwork, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT id, user_id, title, description, emotion_label, style_label, palette, narrative, created_at
        FROM artworks WHERE id = ?;
    `, id)
	art, err := scanArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Artwork{}, model.WrapOp("get artwork", fmt.Errorf("%w: artwork %s", model.ErrNotFound, id))
	}
	return art, err
}

// ListArtworks returns a user's gallery, most recent first.
func (d *Database) ListArtworks(ctx context.Context, userID string, limit, offset int) ([]model.Artwork, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, user_id, title, description, emotion_label, style_label, palette, narrative, created_at
        FROM artworks
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?;
    `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Artwork
	for rows.Next() {
		art, err := scanArtwork(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
	}
	return out, rows.Err()
}

// SetArtworkNarrative attaches generated narrative text to an artwork.
func (d *Database) SetArtworkNarrative(ctx context.Context, id, narrative string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE artworks SET narrative = ? WHERE id = ?;`, narrative, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.WrapOp("set narrative", fmt.Errorf("%w: artwork %s", model.ErrNotFound, id))
	}
	return nil
}

func scanArtwork(row rowScanner) (model.Artwork, error) {
	var art model.Artwork
	var palette, narrative sql.NullString
	if err := row.Scan(&art.ID, &art.UserID, &art.Title, &art.Description,
		&art.EmotionLabel, &art.StyleLabel, &palette, &narrative, &art.CreatedAt); err != nil {
		return model.Artwork{}, err
	}
	if palette.Valid && palette.String != "" {
		_ = json.Unmarshal([]byte(palette.String), &art.Palette)
	}
	if narrative.Valid {
		art.Narrative = narrative.String
	}
	return art, nil
}
