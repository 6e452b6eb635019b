package store

import (
	"errors"
	"os"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndLookupUser(t *testing.T) {
	s := openTestStore(t)

	u := &User{Email: "sam@example.com", Name: "Sam", PasswordHash: "x"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	byEmail, err := s.UserByEmail("sam@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.Name != "Sam" {
		t.Errorf("unexpected user: %+v", byEmail)
	}

	if _, err := s.UserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byID, err := s.UserByID(u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if byID.Email != "sam@example.com" {
		t.Errorf("unexpected user: %+v", byID)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser(&User{Email: "dup@example.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := s.CreateUser(&User{Email: "dup@example.com"}); err == nil {
		t.Error("expected unique constraint error")
	}
}

func TestUpsertGoogleUser(t *testing.T) {
	s := openTestStore(t)

	u1, err := s.UpsertGoogleUser("g-123", "g@example.com", "Gee", "http://a/1.png")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	u2, err := s.UpsertGoogleUser("g-123", "g@example.com", "Gee Renamed", "http://a/2.png")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("upsert created a second user: %d vs %d", u1.ID, u2.ID)
	}
	if u2.Name != "Gee Renamed" || u2.AvatarURL != "http://a/2.png" {
		t.Errorf("profile not refreshed: %+v", u2)
	}
}

func TestUpsertGoogleUserLinksExistingEmail(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser(&User{Email: "link@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.UpsertGoogleUser("g-999", "link@example.com", "Linked", "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.GoogleID != "g-999" {
		t.Errorf("google id not linked: %+v", u)
	}
	if u.PasswordHash != "x" {
		t.Errorf("password hash lost on link: %+v", u)
	}
}

func TestUpdateSettings(t *testing.T) {
	s := openTestStore(t)

	u := &User{Email: "set@example.com"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := s.UpdateSettings(u.ID, `{"voice":"en-GB-SoniaNeural"}`); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, _ := s.UserByID(u.ID)
	if got.Settings != `{"voice":"en-GB-SoniaNeural"}` {
		t.Errorf("settings not saved: %q", got.Settings)
	}

	if err := s.UpdateSettings(9999, "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestFaceLifecycle(t *testing.T) {
	s := openTestStore(t)

	u := &User{Email: "face@example.com"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	face, err := s.AddFace(u.ID, "Alex", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("AddFace: %v", err)
	}
	if _, err := os.Stat(face.FilePath); err != nil {
		t.Fatalf("face image not written: %v", err)
	}

	faces, err := s.Faces(u.ID)
	if err != nil {
		t.Fatalf("Faces: %v", err)
	}
	if len(faces) != 1 || faces[0].Name != "Alex" {
		t.Fatalf("unexpected faces: %+v", faces)
	}

	refs, err := s.ListFaces(u.ID)
	if err != nil {
		t.Fatalf("ListFaces: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "Alex" || refs[0].Path != face.FilePath {
		t.Errorf("unexpected face refs: %+v", refs)
	}

	if err := s.DeleteFace(u.ID, face.ID); err != nil {
		t.Fatalf("DeleteFace: %v", err)
	}
	if _, err := os.Stat(face.FilePath); !os.IsNotExist(err) {
		t.Error("face image not removed")
	}
	if err := s.DeleteFace(u.ID, face.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteFaceOwnershipGuard(t *testing.T) {
	s := openTestStore(t)

	owner := &User{Email: "owner@example.com"}
	other := &User{Email: "other@example.com"}
	s.CreateUser(owner)
	s.CreateUser(other)

	face, err := s.AddFace(owner.ID, "Kim", []byte("img"))
	if err != nil {
		t.Fatalf("AddFace: %v", err)
	}

	if err := s.DeleteFace(other.ID, face.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user delete should be ErrNotFound, got %v", err)
	}
	faces, _ := s.Faces(owner.ID)
	if len(faces) != 1 {
		t.Error("face deleted by non-owner")
	}
}
