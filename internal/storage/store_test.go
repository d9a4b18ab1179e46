package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRoom(id, code string, createdAt int64) RoomRow {
	return RoomRow{
		ID:              id,
		Code:            code,
		HostID:          "alice",
		Status:          "waiting",
		Mode:            "classic",
		RequiredPlayers: 2,
		MaxPlayers:      4,
		ColorsJSON:      `["red","yellow"]`,
		CreatedAt:       createdAt,
	}
}

func mustUpdate(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestInsertAndGetRoom(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertRoom(testRoom("r1", "123456", 10)) })

	err := s.View(context.Background(), func(tx *Tx) error {
		row, err := tx.RoomByCode("123456")
		if err != nil {
			return err
		}
		if row.ID != "r1" || row.HostID != "alice" || row.Status != "waiting" {
			t.Fatalf("unexpected row %+v", row)
		}
		if row.ColorsJSON != `["red","yellow"]` || row.CreatedAt != 10 {
			t.Fatalf("unexpected row %+v", row)
		}
		byID, err := tx.RoomByID("r1")
		if err != nil {
			return err
		}
		if byID.Code != "123456" {
			t.Fatalf("expected code 123456, got %s", byID.Code)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRoomNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.View(context.Background(), func(tx *Tx) error {
		_, err := tx.RoomByCode("000000")
		return err
	})
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestLiveCodeIsUnique(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertRoom(testRoom("r1", "123456", 10)) })

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.InsertRoom(testRoom("r2", "123456", 20))
	})
	if err == nil {
		t.Fatal("expected error on duplicate live code")
	}

	// Retiring the first room frees the code.
	mustUpdate(t, s, func(tx *Tx) error {
		row := testRoom("r1", "123456", 10)
		row.Status = "ended"
		row.EndedAt = 15
		return tx.UpdateRoom(row)
	})
	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertRoom(testRoom("r2", "123456", 20)) })

	s.View(context.Background(), func(tx *Tx) error {
		inUse, err := tx.CodeInUse("123456")
		if err != nil || !inUse {
			t.Fatalf("expected code in use, got %v %v", inUse, err)
		}
		row, err := tx.RoomByCode("123456")
		if err != nil {
			t.Fatalf("room by code: %v", err)
		}
		if row.ID != "r2" {
			t.Fatalf("expected live room r2, got %s", row.ID)
		}
		return nil
	})
}

func TestRoomByCodePrefersLiveRoom(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error {
		if err := tx.InsertRoom(testRoom("old", "222222", 50)); err != nil {
			return err
		}
		row := testRoom("old", "222222", 50)
		row.Status = "abandoned"
		if err := tx.UpdateRoom(row); err != nil {
			return err
		}
		return tx.InsertRoom(testRoom("live", "222222", 10))
	})
	s.View(context.Background(), func(tx *Tx) error {
		row, err := tx.RoomByCode("222222")
		if err != nil {
			t.Fatalf("room by code: %v", err)
		}
		if row.ID != "live" {
			t.Fatalf("expected live room, got %s", row.ID)
		}
		return nil
	})
}

func TestListRoomsFiltered(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error {
		tx.InsertRoom(testRoom("a", "111111", 1))
		tx.InsertRoom(testRoom("b", "222222", 2))
		row := testRoom("b", "222222", 2)
		row.Status = "playing"
		return tx.UpdateRoom(row)
	})
	s.View(context.Background(), func(tx *Tx) error {
		all, err := tx.ListRooms("")
		if err != nil || len(all) != 2 {
			t.Fatalf("expected 2 rooms, got %d %v", len(all), err)
		}
		waiting, err := tx.ListRooms("waiting")
		if err != nil || len(waiting) != 1 || waiting[0].ID != "a" {
			t.Fatalf("expected [a], got %v %v", waiting, err)
		}
		return nil
	})
}

func TestMemberships(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error {
		tx.InsertRoom(testRoom("r1", "111111", 1))
		tx.InsertRoom(testRoom("r2", "222222", 2))
		tx.InsertMembership(MembershipRow{RoomID: "r1", UserID: "alice", Name: "Alice", JoinedAt: 1})
		tx.InsertMembership(MembershipRow{RoomID: "r1", UserID: "bob", Name: "Bob", JoinedAt: 3})
		return tx.InsertMembership(MembershipRow{RoomID: "r2", UserID: "alice", Name: "Alice", JoinedAt: 5})
	})

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.InsertMembership(MembershipRow{RoomID: "r1", UserID: "bob", Name: "Bob", JoinedAt: 9})
	})
	if err == nil {
		t.Fatal("expected error on duplicate membership")
	}

	s.View(context.Background(), func(tx *Tx) error {
		members, err := tx.Memberships("r1")
		if err != nil || len(members) != 2 {
			t.Fatalf("expected 2 members, got %v %v", members, err)
		}
		if members[0].UserID != "alice" || members[1].UserID != "bob" {
			t.Fatalf("expected join order, got %v", members)
		}
		mine, err := tx.MembershipsByUser("alice")
		if err != nil || len(mine) != 2 || mine[0].RoomID != "r2" {
			t.Fatalf("expected newest first, got %v %v", mine, err)
		}
		n, err := tx.CountMemberships("r1")
		if err != nil || n != 2 {
			t.Fatalf("expected count 2, got %d %v", n, err)
		}
		m, err := tx.Membership("r1", "bob")
		if err != nil || m.Name != "Bob" {
			t.Fatalf("expected bob, got %v %v", m, err)
		}
		if _, err := tx.Membership("r2", "bob"); err != sql.ErrNoRows {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
		return nil
	})

	mustUpdate(t, s, func(tx *Tx) error { return tx.DeleteMemberships("r1") })
	s.View(context.Background(), func(tx *Tx) error {
		n, _ := tx.CountMemberships("r1")
		if n != 0 {
			t.Fatalf("expected no members, got %d", n)
		}
		return nil
	})
}

func TestSaveMatchStateUpsert(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error {
		tx.InsertRoom(testRoom("r1", "111111", 1))
		tx.SaveMatchState("r1", `{"v":1}`, 1)
		return tx.SaveMatchState("r1", `{"v":2}`, 2)
	})
	s.View(context.Background(), func(tx *Tx) error {
		got, err := tx.MatchState("r1")
		if err != nil {
			t.Fatalf("get match state: %v", err)
		}
		if got != `{"v":2}` {
			t.Fatalf("expected upserted value, got %s", got)
		}
		if _, err := tx.MatchState("missing"); err != sql.ErrNoRows {
			t.Fatalf("expected sql.ErrNoRows, got %v", err)
		}
		return nil
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx *Tx) error {
		if err := tx.InsertRoom(testRoom("r1", "111111", 1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	s.View(context.Background(), func(tx *Tx) error {
		if _, err := tx.RoomByID("r1"); err != sql.ErrNoRows {
			t.Fatalf("expected rollback, got %v", err)
		}
		return nil
	})
}

func TestDeleteRoom(t *testing.T) {
	s := newTestStore(t)
	mustUpdate(t, s, func(tx *Tx) error {
		tx.InsertRoom(testRoom("r1", "111111", 1))
		tx.InsertMembership(MembershipRow{RoomID: "r1", UserID: "alice", Name: "Alice", JoinedAt: 1})
		return tx.SaveMatchState("r1", `{"v":1}`, 1)
	})
	mustUpdate(t, s, func(tx *Tx) error { return tx.DeleteRoom("r1") })
	s.View(context.Background(), func(tx *Tx) error {
		if _, err := tx.RoomByID("r1"); err != sql.ErrNoRows {
			t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
		}
		if _, err := tx.MatchState("r1"); err != sql.ErrNoRows {
			t.Fatalf("expected sql.ErrNoRows for match state after delete, got %v", err)
		}
		return nil
	})
}
