package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

// upsertTestUser creates a user and fails the test if it errors.
func upsertTestUser(t *testing.T, db *DB, googleID, email string) *model.User {
	t.Helper()
	user := &model.User{
		GoogleID:  googleID,
		Email:     email,
		Name:      "Test " + googleID,
		AvatarURL: "https://lh3.googleusercontent.com/a/" + googleID,
	}
	if err := db.UpsertUser(context.Background(), user); err != nil {
		t.Fatalf("failed to upsert test user: %v", err)
	}
	return user
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUpsertUser_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := upsertTestUser(t, db, "g-100", "New@Example.com")

	if user.ID == "" {
		t.Error("UpsertUser() did not set user.ID")
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want default %q", user.Role, model.RoleUser)
	}
	if user.Email != "new@example.com" {
		t.Errorf("Email = %q, want lowercased", user.Email)
	}
	if user.CreatedAt.IsZero() || user.LastLogin.IsZero() {
		t.Error("UpsertUser() did not set timestamps")
	}
}

func TestUpsertUser_TwiceKeepsOneRowAndRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := upsertTestUser(t, db, "g-200", "admin@example.com")
	if err := db.SetUserRole(ctx, "admin@example.com", model.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}

	later := time.Now().Add(time.Hour).UTC()
	second := &model.User{
		GoogleID:  "g-200",
		Email:     "admin@example.com",
		Name:      "Renamed",
		AvatarURL: "https://example.com/new.png",
		Role:      model.RoleViewer, // ignored on conflict
		LastLogin: later,
	}
	if err := db.UpsertUser(ctx, second); err != nil {
		t.Fatalf("second UpsertUser() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID changed: %q -> %q", first.ID, second.ID)
	}
	if second.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want preserved %q", second.Role, model.RoleAdmin)
	}
	if second.Name != "Renamed" {
		t.Errorf("Name = %q, want refreshed", second.Name)
	}
	if !second.LastLogin.After(first.LastLogin) {
		t.Errorf("LastLogin = %v, want after %v", second.LastLogin, first.LastLogin)
	}

	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM users WHERE google_id = 'g-200'`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestUpsertUser_RequiresGoogleID(t *testing.T) {
	db := newTestDB(t)

	err := db.UpsertUser(context.Background(), &model.User{Email: "x@example.com"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpsertUser() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	created := upsertTestUser(t, db, "g-300", "get@example.com")

	found, err := db.GetUser(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if found.GoogleID != "g-300" {
		t.Errorf("GoogleID = %q, want g-300", found.GoogleID)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUser(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestSetUserRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	upsertTestUser(t, db, "g-400", "role@example.com")

	if err := db.SetUserRole(ctx, "ROLE@example.com", model.RoleViewer); err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}
	u, err := db.GetUserByGoogleID(ctx, "g-400")
	if err != nil {
		t.Fatalf("GetUserByGoogleID() error = %v", err)
	}
	if u.Role != model.RoleViewer {
		t.Errorf("Role = %q, want viewer", u.Role)
	}

	if err := db.SetUserRole(ctx, "nobody@example.com", model.RoleAdmin); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetUserRole(unknown) error = %v, want ErrNotFound", err)
	}
	if err := db.SetUserRole(ctx, "role@example.com", model.Role("root")); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("SetUserRole(bad role) error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// ALLOW-LIST TESTS
// =========================================================================

func TestAllowedEmails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := &model.AllowedEmail{Email: " A@X.com ", InvitedBy: "admin@x.com"}
	if err := db.AddAllowedEmail(ctx, entry); err != nil {
		t.Fatalf("AddAllowedEmail() error = %v", err)
	}
	if entry.Email != "a@x.com" {
		t.Errorf("Email = %q, want normalized", entry.Email)
	}

	// Lookup is case-insensitive.
	if _, err := db.GetAllowedEmail(ctx, "a@X.COM"); err != nil {
		t.Errorf("GetAllowedEmail() error = %v", err)
	}
	if _, err := db.GetAllowedEmail(ctx, "b@x.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetAllowedEmail(missing) error = %v, want ErrNotFound", err)
	}

	if err := db.AddAllowedEmail(ctx, &model.AllowedEmail{Email: "a@x.com"}); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate AddAllowedEmail() error = %v, want ErrConflict", err)
	}

	list, err := db.ListAllowedEmails(ctx)
	if err != nil {
		t.Fatalf("ListAllowedEmails() error = %v", err)
	}
	if len(list) != 1 || list[0].InvitedBy != "admin@x.com" {
		t.Errorf("ListAllowedEmails() = %+v", list)
	}

	if err := db.RemoveAllowedEmail(ctx, "A@x.com"); err != nil {
		t.Fatalf("RemoveAllowedEmail() error = %v", err)
	}
	if err := db.RemoveAllowedEmail(ctx, "a@x.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second RemoveAllowedEmail() error = %v, want ErrNotFound", err)
	}
}

func TestListAllowedEmails_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)

	list, err := db.ListAllowedEmails(context.Background())
	if err != nil {
		t.Fatalf("ListAllowedEmails() error = %v", err)
	}
	if list == nil {
		t.Error("ListAllowedEmails() returned nil, want empty slice")
	}
}
