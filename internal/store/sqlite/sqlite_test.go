package sqlite

import (
	"context"
	"database/sql"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)

	ctx := context.Background()

	// Seed users
	users := []string{"alice", "alex", "alan", "bob", "charlie"}
	for _, u := range users {
		t.Logf("Creating user %s", u)
		_, err := s.CreateUser(ctx, u, "hash")
		if err != nil {
			t.Fatalf("failed to create user %s: %v", u, err)
		}
	}

	// Create a guest user (should be excluded)
	if _, err := s.CreateGuestUser(ctx, "session1"); err != nil {
		t.Fatalf("failed to create guest user: %v", err)
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "search 'al'",
			query:    "al",
			expected: []string{"alan", "alex", "alice"},
		},
		{
			name:     "search 'li'",
			query:    "li",
			expected: []string{"alice", "charlie"},
		},
		{
			name:     "search non-existent",
			query:    "z",
			expected: []string{},
		},
		{
			name:     "search case insensitive (SQLite LIKE ignores ASCII case by default)",
			query:    "Bob",
			expected: []string{"bob"}, // Assuming default collation is case-insensitive for LIKE
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.SearchUsers(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}

			// Extract usernames
			var names []string
			for _, u := range results {
				names = append(names, u.Username)
			}

			// Check the count first, then each name in order.
			// SQLite LIKE is case-insensitive for ASCII characters by default.
			if len(results) != len(tt.expected) {
				t.Errorf("expected %d results, got %d: %v", len(tt.expected), len(results), names)
				return
			}

			for i, name := range names {
				// Exact match: every seeded username is lowercase, and results
				// come back in ascending username order.
				if name != tt.expected[i] {
					t.Errorf("expected %s at index %d, got %s", tt.expected[i], i, name)
				}
			}
		})
	}
}

func TestGuestUserRoundTripBySessionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	guest, err := s.CreateGuestUser(ctx, "sess-12345678")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !guest.IsGuest {
		t.Fatal("expected IsGuest to be true")
	}

	got, err := s.GetUserBySessionID(ctx, "sess-12345678")
	if err != nil {
		t.Fatalf("get by session id: %v", err)
	}
	if got.ID != guest.ID {
		t.Fatalf("expected id %d, got %d", guest.ID, got.ID)
	}

	if _, err := s.GetUserByUsername(ctx, guest.Username); err == nil {
		t.Fatal("expected guest users excluded from GetUserByUsername")
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "dupe", "hash1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateUser(ctx, "dupe", "hash2"); err == nil {
		t.Fatal("expected unique constraint violation on duplicate username")
	}
}
