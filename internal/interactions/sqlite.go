package interactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is a Log backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenDB opens the database at path and creates the schema when missing.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY between them.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL,
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_interactions_pair ON interactions(user_id, target_id, ts);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Append inserts all items in one transaction.
func (db *DB) Append(ctx context.Context, items ...Interaction) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO interactions (user_id, target_id, type, ts) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.UserID, item.TargetID, string(item.Type), item.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
	}

	return tx.Commit()
}

func (db *DB) ListByUser(ctx context.Context, userID string) ([]Interaction, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT user_id, target_id, type, ts
	FROM interactions
	WHERE user_id = ?
	ORDER BY ts DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var result []Interaction
	for rows.Next() {
		var (
			item Interaction
			kind string
			ts   int64
		)
		if err := rows.Scan(&item.UserID, &item.TargetID, &kind, &ts); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		item.Type = Type(kind)
		item.Timestamp = time.UnixMilli(ts).UTC()
		result = append(result, item)
	}

	return result, rows.Err()
}

func (db *DB) LatestDecision(ctx context.Context, userID, targetID string) (Type, bool, error) {
	var kind string
	err := db.conn.QueryRowContext(ctx, `
	SELECT type FROM interactions
	WHERE user_id = ? AND target_id = ? AND type != ?
	ORDER BY ts DESC, id DESC
	LIMIT 1
	`, userID, targetID, string(Match)).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query latest decision: %w", err)
	}
	return Type(kind), true, nil
}

func (db *DB) HasMatch(ctx context.Context, userID, targetID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM interactions
		WHERE user_id = ? AND target_id = ? AND type = ?
	)
	`, userID, targetID, string(Match)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query match: %w", err)
	}
	return exists, nil
}
