// Package db provides the persistence layer for K-Tunes. It wraps a SQLite
// database and exposes helper methods for the track catalog, playlists,
// favorites, users and play events. Callers are expected to open a single DB
// instance using New and reuse it for all operations. Playlist ordering is
// maintained through an explicit position column; reordering runs in a single
// transaction so a crash can never leave a playlist with duplicate or gapped
// positions.
package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"K-Tunes/pkg/track"
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
}

// New opens the SQLite database located at path, creating the file and the
// schema when missing. The returned DB value wraps the sql.DB connection for
// use by the rest of the application.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, username TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL, is_admin INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS tracks (id TEXT PRIMARY KEY, title TEXT NOT NULL, artist TEXT NOT NULL, album TEXT, url TEXT NOT NULL, duration REAL, cover_url TEXT, created_at TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS playlists (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, name TEXT NOT NULL, created_at TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS playlist_tracks (playlist_id TEXT NOT NULL, track_id TEXT NOT NULL, position INTEGER NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pt_playlist_track ON playlist_tracks(playlist_id, track_id)`,
		`CREATE TABLE IF NOT EXISTS favorites (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id TEXT, track_id TEXT)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_fav_user_track ON favorites(user_id, track_id)`,
		`CREATE TABLE IF NOT EXISTS plays (id INTEGER PRIMARY KEY AUTOINCREMENT, track_id TEXT NOT NULL, user_id TEXT, played_at TIMESTAMP)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{d}, nil
}

// randomString returns a URL-safe base64 string with n bytes of entropy. It is
// used for generating non-guessable IDs.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// User is an account row. PasswordHash is a bcrypt hash, never the password
// itself.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Admin        bool
}

// CreateUser inserts an account and returns its generated ID. The username
// must be unique; violations surface as SQLite constraint errors.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, admin bool) (string, error) {
	id, err := randomString(9)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO users(id, username, password_hash, is_admin) VALUES(?,?,?,?)`, id, username, passwordHash, admin)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetUserByUsername looks up an account. sql.ErrNoRows is returned for an
// unknown username so callers can reject the login without revealing which
// part of the credential was wrong.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := db.QueryRowContext(ctx, `SELECT id, username, password_hash, is_admin FROM users WHERE username=?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Admin)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateTrack inserts a catalog entry. When t.ID is empty a random ID is
// generated; the stored ID is returned either way.
func (db *DB) CreateTrack(ctx context.Context, t track.Track) (string, error) {
	id := t.ID
	if id == "" {
		var err error
		if id, err = randomString(9); err != nil {
			return "", err
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO tracks(id, title, artist, album, url, duration, cover_url, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		id, t.Title, t.Artist, t.Album, t.URL, t.Duration, t.CoverURL, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteTrack removes a catalog entry along with its playlist and favorite
// references. sql.ErrNoRows is returned when the track does not exist.
func (db *DB) DeleteTrack(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	for _, q := range []string{
		`DELETE FROM playlist_tracks WHERE track_id=?`,
		`DELETE FROM favorites WHERE track_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTrack returns a single catalog entry. sql.ErrNoRows is returned for an
// unknown ID.
func (db *DB) GetTrack(ctx context.Context, id string) (track.Track, error) {
	var t track.Track
	var album, cover sql.NullString
	var duration sql.NullFloat64
	err := db.QueryRowContext(ctx, `SELECT id, title, artist, album, url, duration, cover_url FROM tracks WHERE id=?`, id).
		Scan(&t.ID, &t.Title, &t.Artist, &album, &t.URL, &duration, &cover)
	if err != nil {
		return track.Track{}, err
	}
	t.Album = album.String
	t.Duration = duration.Float64
	t.CoverURL = cover.String
	return t, nil
}

// ListTracks returns catalog entries ordered by artist then title. When
// search is non-empty only tracks whose title or artist contains the term are
// returned.
func (db *DB) ListTracks(ctx context.Context, search string) ([]track.Track, error) {
	query := `SELECT id, title, artist, album, url, duration, cover_url FROM tracks`
	args := []any{}
	if search != "" {
		query += ` WHERE title LIKE ? OR artist LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY artist, title`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// scanTracks collects rows produced by the catalog column list.
func scanTracks(rows *sql.Rows) ([]track.Track, error) {
	var ts []track.Track
	for rows.Next() {
		var t track.Track
		var album, cover sql.NullString
		var duration sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &album, &t.URL, &duration, &cover); err != nil {
			return nil, err
		}
		t.Album = album.String
		t.Duration = duration.Float64
		t.CoverURL = cover.String
		ts = append(ts, t)
	}
	// rows.Err returns the first error encountered while iterating.
	return ts, rows.Err()
}

// Playlist describes a user-owned playlist.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"-"`
}

// CreatePlaylist inserts a playlist owned by userID and returns its generated
// ID.
func (db *DB) CreatePlaylist(ctx context.Context, userID, name string) (string, error) {
	id, err := randomString(9)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO playlists(id, user_id, name, created_at) VALUES(?,?,?,?)`, id, userID, name, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPlaylists returns the playlists owned by userID, newest first.
func (db *DB) ListPlaylists(ctx context.Context, userID string) ([]Playlist, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, user_id FROM playlists WHERE user_id=? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ps []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.UserID); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// GetPlaylist returns one playlist row. sql.ErrNoRows means it does not
// exist; callers check UserID for ownership.
func (db *DB) GetPlaylist(ctx context.Context, id string) (Playlist, error) {
	var p Playlist
	err := db.QueryRowContext(ctx, `SELECT id, name, user_id FROM playlists WHERE id=?`, id).Scan(&p.ID, &p.Name, &p.UserID)
	if err != nil {
		return Playlist{}, err
	}
	return p, nil
}

// DeletePlaylist removes a playlist and its track entries.
func (db *DB) DeletePlaylist(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// PlaylistTracks returns a playlist's tracks in their stored order.
func (db *DB) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT t.id, t.title, t.artist, t.album, t.url, t.duration, t.cover_url
		 FROM playlist_tracks pt JOIN tracks t ON t.id = pt.track_id
		 WHERE pt.playlist_id=? ORDER BY pt.position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// AddTrackToPlaylist appends a track at the end of a playlist. Adding a track
// that is already present is ignored so the operation stays idempotent.
func (db *DB) AddTrackToPlaylist(ctx context.Context, playlistID, trackID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_tracks(playlist_id, track_id, position)
		 VALUES(?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id=?))`,
		playlistID, trackID, playlistID)
	return err
}

// RemovePlaylistTrack deletes one entry and closes the position gap it
// leaves, all within a transaction. sql.ErrNoRows is returned when the track
// is not in the playlist.
func (db *DB) RemovePlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var pos int
	err = tx.QueryRowContext(ctx, `SELECT position FROM playlist_tracks WHERE playlist_id=? AND track_id=?`, playlistID, trackID).Scan(&pos)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id=? AND track_id=?`, playlistID, trackID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id=? AND position > ?`, playlistID, pos); err != nil {
		return err
	}
	return tx.Commit()
}

// MovePlaylistTrack moves the entry at position from to position to, shifting
// everything between them by one. Both indexes are zero based. The whole
// reorder happens in a single transaction so concurrent readers never observe
// duplicate positions.
func (db *DB) MovePlaylistTrack(ctx context.Context, playlistID string, from, to int) error {
	if from == to {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id=?`, playlistID).Scan(&count); err != nil {
		return err
	}
	if from < 0 || from >= count || to < 0 || to >= count {
		return fmt.Errorf("move %d to %d: position out of range (playlist has %d tracks)", from, to, count)
	}

	var trackID string
	if err := tx.QueryRowContext(ctx, `SELECT track_id FROM playlist_tracks WHERE playlist_id=? AND position=?`, playlistID, from).Scan(&trackID); err != nil {
		return err
	}
	if from < to {
		_, err = tx.ExecContext(ctx, `UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id=? AND position > ? AND position <= ?`, playlistID, from, to)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE playlist_tracks SET position = position + 1 WHERE playlist_id=? AND position >= ? AND position < ?`, playlistID, to, from)
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE playlist_tracks SET position=? WHERE playlist_id=? AND track_id=?`, to, playlistID, trackID); err != nil {
		return err
	}
	return tx.Commit()
}

// AddFavorite marks a track as a favorite for userID. Duplicate entries for
// the same user and track are ignored so favorites remain unique.
func (db *DB) AddFavorite(ctx context.Context, userID, trackID string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO favorites(user_id, track_id) VALUES(?, ?)`, userID, trackID)
	return err
}

// DeleteFavorite removes a track from the user's favorites list. sql.ErrNoRows
// is returned when the specified favorite does not exist which allows callers
// to respond with a 404.
func (db *DB) DeleteFavorite(ctx context.Context, userID, trackID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id=? AND track_id=?`, userID, trackID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListFavorites returns the user's favorite tracks in reverse insertion order
// so the most recently saved tracks appear first.
func (db *DB) ListFavorites(ctx context.Context, userID string) ([]track.Track, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT t.id, t.title, t.artist, t.album, t.url, t.duration, t.cover_url
		 FROM favorites f JOIN tracks t ON t.id = f.track_id
		 WHERE f.user_id=? ORDER BY f.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// RecordPlay inserts a play event. userID may be empty for anonymous
// listeners.
func (db *DB) RecordPlay(ctx context.Context, trackID, userID string, playedAt time.Time) error {
	_, err := db.ExecContext(ctx, `INSERT INTO plays(track_id, user_id, played_at) VALUES(?,?,?)`, trackID, userID, playedAt)
	return err
}

// PlayCount returns the total number of recorded plays for a track.
func (db *DB) PlayCount(ctx context.Context, trackID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays WHERE track_id=?`, trackID).Scan(&n)
	return n, err
}

// TrackCount represents how many times a specific track was played.
type TrackCount struct {
	TrackID string `json:"track_id"`
	Count   int    `json:"count"`
}

// TopTracksSince returns the most played tracks since the provided time,
// limited to at most limit rows.
func (db *DB) TopTracksSince(ctx context.Context, since time.Time, limit int) ([]TrackCount, error) {
	rows, err := db.QueryContext(ctx, `SELECT track_id, COUNT(*) c FROM plays WHERE played_at>=? GROUP BY track_id ORDER BY c DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TrackCount
	for rows.Next() {
		var tc TrackCount
		if err := rows.Scan(&tc.TrackID, &tc.Count); err != nil {
			return nil, err
		}
		res = append(res, tc)
	}
	return res, rows.Err()
}
