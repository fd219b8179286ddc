package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertBoard creates or replaces a board row.
func (db *DB) UpsertBoard(board Board) error {
	_, err := db.conn.Exec(`
		INSERT INTO boards (id, member_id, cloud_id, name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET member_id = excluded.member_id,
			cloud_id = excluded.cloud_id, name = excluded.name`,
		board.ID, board.MemberID, board.CloudID, board.Name,
	)
	if err != nil {
		return fmt.Errorf("upserting board: %w", err)
	}
	return nil
}

func (db *DB) GetBoard(id string) (Board, error) {
	var b Board
	err := db.conn.QueryRow(`
		SELECT id, member_id, cloud_id, name FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.MemberID, &b.CloudID, &b.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Board{}, fmt.Errorf("board %s: %w", id, ErrNotFound)
		}
		return Board{}, fmt.Errorf("getting board: %w", err)
	}
	return b, nil
}
