package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"
)

func stores(t *testing.T) map[string]Database {
	t.Helper()
	sqliteDB, err := NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteDB.Close() })

	return map[string]Database{
		"memory": NewMemoryDB(),
		"sqlite": sqliteDB,
	}
}

func seedUser(t *testing.T, db Database, id, name string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

func TestUserRepository(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedUser(t, db, "u1", "alice")
			seedUser(t, db, "u2", "bob")
			seedUser(t, db, "u3", "alina")

			dup := &models.User{ID: "u4", Username: "other", Email: "ALICE@example.com"}
			if err := db.CreateUser(ctx, dup); !apperrors.Is(err, apperrors.ErrConflict) {
				t.Errorf("Expected conflict on duplicate e-mail, got %v", err)
			}

			got, err := db.GetUserByEmail(ctx, "Bob@Example.com")
			if err != nil || got.ID != "u2" {
				t.Errorf("GetUserByEmail: got %v, %v", got, err)
			}

			if _, err := db.GetUserByID(ctx, "missing"); !apperrors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("Expected not found, got %v", err)
			}

			found, err := db.SearchUsers(ctx, "ALI", "u1", 10)
			if err != nil {
				t.Fatalf("SearchUsers: %v", err)
			}
			if len(found) != 1 || found[0].ID != "u3" {
				t.Errorf("Expected only alina (caller excluded), got %v", found)
			}

			renamed, err := db.UpdateUsername(ctx, "u2", "robert")
			if err != nil || renamed.Username != "robert" {
				t.Errorf("UpdateUsername: got %v, %v", renamed, err)
			}

			users, err := db.GetUsersByIDs(ctx, []string{"u2", "u1", "nobody"})
			if err != nil || len(users) != 2 {
				t.Errorf("GetUsersByIDs: got %d users, err %v", len(users), err)
			}
		})
	}
}

func TestChannelMembership(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedUser(t, db, "admin", "admin")
			seedUser(t, db, "u1", "one")

			ch := &models.Channel{ID: "c1", Name: "general", AdminID: "admin", Members: []string{"admin"}}
			if err := db.CreateChannel(ctx, ch); err != nil {
				t.Fatalf("CreateChannel: %v", err)
			}

			for i := 0; i < 3; i++ {
				if err := db.AddMember(ctx, "c1", "u1"); err != nil {
					t.Fatalf("AddMember: %v", err)
				}
			}
			got, _ := db.GetChannelByID(ctx, "c1")
			if len(got.Members) != 2 {
				t.Errorf("Expected 2 members after repeated joins, got %v", got.Members)
			}

			list, _ := db.ListChannelsForMember(ctx, "u1")
			if len(list) != 1 || list[0].ID != "c1" {
				t.Errorf("ListChannelsForMember: got %v", list)
			}

			if err := db.RemoveMember(ctx, "c1", "u1"); err != nil {
				t.Fatalf("RemoveMember: %v", err)
			}
			if err := db.RemoveMember(ctx, "c1", "u1"); err != nil {
				t.Errorf("Second RemoveMember should be a no-op, got %v", err)
			}
			if err := db.AddMember(ctx, "nope", "u1"); !apperrors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("Expected not found for missing channel, got %v", err)
			}

			if err := db.MarkChannelDeleted(ctx, "c1"); err != nil {
				t.Fatalf("MarkChannelDeleted: %v", err)
			}
			if err := db.MarkChannelDeleted(ctx, "c1"); err != nil {
				t.Errorf("MarkChannelDeleted should be idempotent, got %v", err)
			}
			got, _ = db.GetChannelByID(ctx, "c1")
			if !got.IsDeleted {
				t.Errorf("Expected channel to be marked deleted")
			}
		})
	}
}

func TestMessageRepository(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedUser(t, db, "u1", "alice")
			seedUser(t, db, "u2", "bob")
			if err := db.CreateChannel(ctx, &models.Channel{ID: "c1", Name: "general", AdminID: "u1", Members: []string{"u1", "u2"}}); err != nil {
				t.Fatalf("CreateChannel: %v", err)
			}

			for i := 0; i < 5; i++ {
				m := &models.Message{ID: fmt.Sprintf("m%d", i), SenderID: "u1", ChannelID: "c1", Content: fmt.Sprintf("msg %d 50%%", i)}
				if err := db.CreateMessage(ctx, m); err != nil {
					t.Fatalf("CreateMessage: %v", err)
				}
				if m.Sender.Username != "alice" {
					t.Errorf("Expected sender populated, got %+v", m.Sender)
				}
			}

			page, err := db.ListChannelMessages(ctx, "c1", "u2", 0, 2)
			if err != nil {
				t.Fatalf("ListChannelMessages: %v", err)
			}
			if len(page) != 2 || page[0].ID != "m4" || page[1].ID != "m3" {
				t.Errorf("Expected newest first [m4 m3], got %v", ids(page))
			}
			page, _ = db.ListChannelMessages(ctx, "c1", "u2", 4, 2)
			if len(page) != 1 || page[0].ID != "m0" {
				t.Errorf("Expected last page [m0], got %v", ids(page))
			}

			if err := db.AddDeletedFor(ctx, "m4", "u2"); err != nil {
				t.Fatalf("AddDeletedFor: %v", err)
			}
			if err := db.AddDeletedFor(ctx, "m4", "u2"); err != nil {
				t.Fatalf("AddDeletedFor twice: %v", err)
			}
			page, _ = db.ListChannelMessages(ctx, "c1", "u2", 0, 1)
			if page[0].ID != "m3" {
				t.Errorf("Hidden message still visible to u2: %v", ids(page))
			}
			page, _ = db.ListChannelMessages(ctx, "c1", "u1", 0, 1)
			if page[0].ID != "m4" {
				t.Errorf("Hidden message should stay visible to u1: %v", ids(page))
			}

			edited, err := db.UpdateMessageContent(ctx, "m3", "hello world")
			if err != nil || edited.Content != "hello world" || edited.EditedAt == nil {
				t.Errorf("UpdateMessageContent: got %+v, %v", edited, err)
			}

			deleted, err := db.MarkDeletedForAll(ctx, "m2", models.DeletedMessageNotice)
			if err != nil || !deleted.IsDeletedForAll || deleted.Content != models.DeletedMessageNotice {
				t.Errorf("MarkDeletedForAll: got %+v, %v", deleted, err)
			}

			hits, err := db.SearchMessages(ctx, []string{"c1"}, "u2", "50%", 50)
			if err != nil {
				t.Fatalf("SearchMessages: %v", err)
			}
			// m4 hidden for u2, m3 edited away, m2 deleted for all.
			if got := ids(hits); len(got) != 2 || got[0] != "m1" || got[1] != "m0" {
				t.Errorf("Expected [m1 m0], got %v", got)
			}
			// "_" must match literally, not as a wildcard.
			if hits, _ := db.SearchMessages(ctx, []string{"c1"}, "u2", "msg_1", 50); len(hits) != 0 {
				t.Errorf("Expected no literal match for msg_1, got %v", ids(hits))
			}
			hits, _ = db.SearchMessages(ctx, []string{"c1"}, "u2", "HELLO", 50)
			if len(hits) != 1 || hits[0].ID != "m3" {
				t.Errorf("Expected case-insensitive hit on m3, got %v", ids(hits))
			}

			if _, err := db.GetMessageByID(ctx, "missing"); !apperrors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("Expected not found, got %v", err)
			}
		})
	}
}

func TestConcurrentJoinAddsOnce(t *testing.T) {
	for name, db := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := db.CreateChannel(ctx, &models.Channel{ID: "c1", AdminID: "admin", Members: []string{"admin"}}); err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := db.AddMember(ctx, "c1", fmt.Sprintf("u%d", i%10)); err != nil {
						t.Errorf("AddMember(u%d): %v", i%10, err)
					}
				}(i)
			}
			wg.Wait()

			ch, err := db.GetChannelByID(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if len(ch.Members) != 11 {
				t.Errorf("Expected 11 distinct members, got %d: %v", len(ch.Members), ch.Members)
			}
		})
	}
}

func ids(messages []*models.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}
