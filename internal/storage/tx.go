package storage

import (
	"database/sql"
)

// Tx exposes the queries available inside a transaction. Missing rows are
// reported as sql.ErrNoRows.
type Tx struct {
	tx *sql.Tx
}

const roomColumns = `id, code, host_id, status, mode, required_players, max_players,
	colors_json, entry_fee, created_at, started_at, ended_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*RoomRow, error) {
	var r RoomRow
	err := row.Scan(&r.ID, &r.Code, &r.HostID, &r.Status, &r.Mode, &r.RequiredPlayers,
		&r.MaxPlayers, &r.ColorsJSON, &r.EntryFee, &r.CreatedAt, &r.StartedAt, &r.EndedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRoom adds a new room. A live room already holding the code is a
// constraint error.
func (t *Tx) InsertRoom(r RoomRow) error {
	_, err := t.tx.Exec(`INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Code, r.HostID, r.Status, r.Mode, r.RequiredPlayers, r.MaxPlayers,
		r.ColorsJSON, r.EntryFee, r.CreatedAt, r.StartedAt, r.EndedAt,
	)
	return err
}

// UpdateRoom writes the mutable room fields.
func (t *Tx) UpdateRoom(r RoomRow) error {
	_, err := t.tx.Exec(`UPDATE rooms SET status = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		r.Status, r.StartedAt, r.EndedAt, r.ID)
	return err
}

// CodeInUse reports whether a waiting or playing room holds code.
func (t *Tx) CodeInUse(code string) (bool, error) {
	var n int
	err := t.tx.QueryRow(
		"SELECT COUNT(*) FROM rooms WHERE code = ? AND status IN ('waiting', 'playing')", code,
	).Scan(&n)
	return n > 0, err
}

// RoomByCode returns the live room with code, or the most recently created
// retired one when none is live.
func (t *Tx) RoomByCode(code string) (*RoomRow, error) {
	return scanRoom(t.tx.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE code = ?
		ORDER BY status IN ('waiting', 'playing') DESC, created_at DESC LIMIT 1`, code))
}

// RoomByID retrieves a room by id.
func (t *Tx) RoomByID(id string) (*RoomRow, error) {
	return scanRoom(t.tx.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

// ListRooms returns all rooms with the given status (or all if status is empty).
func (t *Tx) ListRooms(status string) ([]RoomRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = t.tx.Query(`SELECT ` + roomColumns + ` FROM rooms ORDER BY created_at DESC`)
	} else {
		rows, err = t.tx.Query(`SELECT `+roomColumns+` FROM rooms WHERE status = ? ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RoomRow
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// InsertMembership seats a user in a room.
func (t *Tx) InsertMembership(m MembershipRow) error {
	_, err := t.tx.Exec(
		"INSERT INTO memberships (room_id, user_id, name, joined_at) VALUES (?, ?, ?, ?)",
		m.RoomID, m.UserID, m.Name, m.JoinedAt,
	)
	return err
}

// Membership returns a single user's membership in a room.
func (t *Tx) Membership(roomID, userID string) (*MembershipRow, error) {
	var m MembershipRow
	err := t.tx.QueryRow(
		"SELECT room_id, user_id, name, joined_at FROM memberships WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	).Scan(&m.RoomID, &m.UserID, &m.Name, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Memberships lists a room's members in join order.
func (t *Tx) Memberships(roomID string) ([]MembershipRow, error) {
	return t.queryMemberships(
		"SELECT room_id, user_id, name, joined_at FROM memberships WHERE room_id = ? ORDER BY joined_at, rowid",
		roomID,
	)
}

// MembershipsByUser lists a user's memberships, newest first.
func (t *Tx) MembershipsByUser(userID string) ([]MembershipRow, error) {
	return t.queryMemberships(
		"SELECT room_id, user_id, name, joined_at FROM memberships WHERE user_id = ? ORDER BY joined_at DESC, rowid DESC",
		userID,
	)
}

func (t *Tx) queryMemberships(query string, arg string) ([]MembershipRow, error) {
	rows, err := t.tx.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []MembershipRow
	for rows.Next() {
		var m MembershipRow
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Name, &m.JoinedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CountMemberships returns how many users are seated in a room.
func (t *Tx) CountMemberships(roomID string) (int, error) {
	var n int
	err := t.tx.QueryRow("SELECT COUNT(*) FROM memberships WHERE room_id = ?", roomID).Scan(&n)
	return n, err
}

// DeleteMemberships removes every membership of a room.
func (t *Tx) DeleteMemberships(roomID string) error {
	_, err := t.tx.Exec("DELETE FROM memberships WHERE room_id = ?", roomID)
	return err
}

// SaveMatchState upserts match state JSON.
func (t *Tx) SaveMatchState(roomID, stateJSON string, updatedAt int64) error {
	_, err := t.tx.Exec(`
		INSERT INTO match_state (room_id, state_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, roomID, stateJSON, updatedAt)
	return err
}

// MatchState retrieves match state JSON.
func (t *Tx) MatchState(roomID string) (string, error) {
	var stateJSON string
	err := t.tx.QueryRow("SELECT state_json FROM match_state WHERE room_id = ?", roomID).Scan(&stateJSON)
	return stateJSON, err
}

// DeleteRoom removes a room with its memberships and match state.
func (t *Tx) DeleteRoom(id string) error {
	if _, err := t.tx.Exec("DELETE FROM match_state WHERE room_id = ?", id); err != nil {
		return err
	}
	if _, err := t.tx.Exec("DELETE FROM memberships WHERE room_id = ?", id); err != nil {
		return err
	}
	_, err := t.tx.Exec("DELETE FROM rooms WHERE id = ?", id)
	return err
}
