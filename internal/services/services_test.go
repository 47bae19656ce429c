package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"chatflow/internal/database"
	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"
)

type fixture struct {
	db       *database.MemoryDB
	channels *ChannelService
	messages *MessageService
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	db := database.NewMemoryDB()
	for _, id := range users {
		u := &models.User{ID: id, Username: id, Email: id + "@example.com"}
		if err := db.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("CreateUser(%s): %v", id, err)
		}
	}
	return &fixture{
		db:       db,
		channels: NewChannelService(db, logger.NewNop()),
		messages: NewMessageService(db, logger.NewNop()),
	}
}

func (f *fixture) channel(t *testing.T, admin, name string, members ...string) *models.Channel {
	t.Helper()
	ch, err := f.channels.CreateChannel(context.Background(), admin, &models.CreateChannelRequest{Name: name})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	for _, m := range members {
		if _, err := f.channels.JoinChannel(context.Background(), m, &models.JoinChannelRequest{ChannelID: ch.ID}); err != nil {
			t.Fatalf("JoinChannel(%s): %v", m, err)
		}
	}
	return ch
}

func (f *fixture) send(t *testing.T, userID, channelID, content string) *models.Message {
	t.Helper()
	msg, err := f.messages.SendMessage(context.Background(), userID, &models.SendMessageRequest{ChannelID: channelID, Content: content})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return msg
}

func TestCreateChannelValidation(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	if _, err := f.channels.CreateChannel(ctx, "a", &models.CreateChannelRequest{Name: "  "}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for blank name, got %v", err)
	}
	if _, err := f.channels.CreateChannel(ctx, "a", &models.CreateChannelRequest{Name: "ops", IsPrivate: true}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for private channel without password, got %v", err)
	}

	ch, err := f.channels.CreateChannel(ctx, "a", &models.CreateChannelRequest{Name: "general"})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if ch.Description != models.DefaultChannelDescription {
		t.Errorf("Expected default description, got %q", ch.Description)
	}
	if ch.AdminID != "a" || len(ch.Members) != 1 || ch.Members[0] != "a" {
		t.Errorf("Expected creator as admin and sole member, got %+v", ch)
	}
}

func TestPrivateChannelJoin(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()

	ops, err := f.channels.CreateChannel(ctx, "A", &models.CreateChannelRequest{Name: "ops", IsPrivate: true, Password: "x1"})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if ops.PasswordHash == "x1" || ops.PasswordHash == "" {
		t.Errorf("Expected hashed channel password")
	}

	_, err = f.channels.JoinChannel(ctx, "B", &models.JoinChannelRequest{ChannelID: ops.ID, Password: "wrong"})
	if !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for wrong password, got %v", err)
	}
	ch, _ := f.db.GetChannelByID(ctx, ops.ID)
	if len(ch.Members) != 1 {
		t.Errorf("Membership changed after failed join: %v", ch.Members)
	}

	joined, err := f.channels.JoinChannel(ctx, "B", &models.JoinChannelRequest{ChannelID: ops.ID, Password: "x1"})
	if err != nil {
		t.Fatalf("JoinChannel: %v", err)
	}
	if len(joined.Members) != 2 || !joined.HasMember("A") || !joined.HasMember("B") {
		t.Errorf("Expected members {A,B}, got %v", joined.Members)
	}
}

func TestConcurrentJoinAddsOnce(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ops, _ := f.channels.CreateChannel(ctx, "A", &models.CreateChannelRequest{Name: "ops", IsPrivate: true, Password: "x1"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.channels.JoinChannel(ctx, "B", &models.JoinChannelRequest{ChannelID: ops.ID, Password: "x1"}); err != nil {
				t.Errorf("JoinChannel: %v", err)
			}
		}()
	}
	wg.Wait()

	ch, _ := f.db.GetChannelByID(ctx, ops.ID)
	if len(ch.Members) != 2 {
		t.Errorf("Expected B added exactly once, got %v", ch.Members)
	}
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()

	if _, err := f.channels.JoinChannel(ctx, "B", &models.JoinChannelRequest{ChannelID: "missing"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	ch := f.channel(t, "A", "general")
	if _, err := f.channels.DeleteChannel(ctx, "A", ch.ID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if _, err := f.channels.JoinChannel(ctx, "B", &models.JoinChannelRequest{ChannelID: ch.ID}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Expected invalid state for deleted channel, got %v", err)
	}
}

func TestLeaveChannel(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ch := f.channel(t, "A", "general", "B")

	if _, err := f.channels.LeaveChannel(ctx, "A", &models.LeaveChannelRequest{ChannelID: ch.ID}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Expected admin leave to be refused while members remain, got %v", err)
	}

	for i := 0; i < 2; i++ {
		left, err := f.channels.LeaveChannel(ctx, "B", &models.LeaveChannelRequest{ChannelID: ch.ID})
		if err != nil {
			t.Fatalf("LeaveChannel attempt %d: %v", i, err)
		}
		if left.HasMember("B") {
			t.Errorf("B still a member after leaving")
		}
	}

	if _, err := f.channels.LeaveChannel(ctx, "A", &models.LeaveChannelRequest{ChannelID: ch.ID}); err != nil {
		t.Errorf("Admin as last member should be able to leave, got %v", err)
	}
	got, _ := f.db.GetChannelByID(ctx, ch.ID)
	if got.AdminID != "A" {
		t.Errorf("Admin must not be reassigned, got %s", got.AdminID)
	}
}

func TestDeleteChannel(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ch := f.channel(t, "A", "general", "B")
	f.send(t, "B", ch.ID, "before")

	if _, err := f.channels.DeleteChannel(ctx, "B", ch.ID); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected non-admin delete to fail, got %v", err)
	}

	for i := 0; i < 2; i++ {
		deleted, err := f.channels.DeleteChannel(ctx, "A", ch.ID)
		if err != nil {
			t.Fatalf("DeleteChannel attempt %d: %v", i, err)
		}
		if !deleted.IsDeleted {
			t.Errorf("Expected channel marked deleted")
		}
	}

	_, err := f.messages.SendMessage(ctx, "B", &models.SendMessageRequest{ChannelID: ch.ID, Content: "after"})
	if !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Expected invalid state when sending to deleted channel, got %v", err)
	}

	page, err := f.messages.FetchMessages(ctx, "B", ch.ID, 1)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if !page.IsDeleted || len(page.Messages) != 1 {
		t.Errorf("Expected readable history flagged deleted, got %+v", page)
	}
}

func TestSendMessageRules(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ch := f.channel(t, "A", "general")

	if _, err := f.messages.SendMessage(ctx, "A", &models.SendMessageRequest{ChannelID: ch.ID, Content: "   "}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for empty content, got %v", err)
	}
	if _, err := f.messages.SendMessage(ctx, "B", &models.SendMessageRequest{ChannelID: ch.ID, Content: "hi"}); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected non-member send to fail, got %v", err)
	}

	msg := f.send(t, "A", ch.ID, "hello")
	if msg.Sender.ID != "A" || msg.Sender.Username != "A" {
		t.Errorf("Expected populated sender, got %+v", msg.Sender)
	}
}

func TestEditThenDeleteForEveryone(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ch := f.channel(t, "A", "general", "B")
	msg := f.send(t, "A", ch.ID, "hello")

	if _, err := f.messages.EditMessage(ctx, "B", &models.EditMessageRequest{MessageID: msg.ID, Content: "hijack"}); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected non-sender edit to fail, got %v", err)
	}

	edited, err := f.messages.EditMessage(ctx, "A", &models.EditMessageRequest{MessageID: msg.ID, Content: "hello world"})
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	page, _ := f.messages.FetchMessages(ctx, "B", ch.ID, 1)
	got := page.Messages[0]
	if got.Content != "hello world" || got.Sender.ID != "A" || !got.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("Unexpected message after edit: %+v", got)
	}
	if edited.EditedAt == nil {
		t.Errorf("Expected editedAt to be set")
	}

	for i := 0; i < 2; i++ {
		if _, err := f.messages.DeleteMessage(ctx, "A", msg.ID, models.DeleteForEveryone); err != nil {
			t.Fatalf("DeleteMessage attempt %d: %v", i, err)
		}
	}
	page, _ = f.messages.FetchMessages(ctx, "B", ch.ID, 1)
	got = page.Messages[0]
	if got.Content != models.DeletedMessageNotice || !got.IsDeletedForAll {
		t.Errorf("Expected deletion notice, got %+v", got)
	}

	if _, err := f.messages.EditMessage(ctx, "A", &models.EditMessageRequest{MessageID: msg.ID, Content: "revive"}); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Expected invalid state editing deleted message, got %v", err)
	}
}

func TestDeleteForMe(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ch := f.channel(t, "A", "general", "B")
	msg := f.send(t, "A", ch.ID, "secret plan")

	if _, err := f.messages.DeleteMessage(ctx, "B", msg.ID, models.DeleteForMe); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected non-sender delete to fail, got %v", err)
	}
	if _, err := f.messages.DeleteMessage(ctx, "A", msg.ID, "sideways"); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for unknown mode, got %v", err)
	}
	if _, err := f.messages.DeleteMessage(ctx, "A", msg.ID, models.DeleteForMe); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	pageA, _ := f.messages.FetchMessages(ctx, "A", ch.ID, 1)
	if len(pageA.Messages) != 0 {
		t.Errorf("Sender still sees message deleted for them")
	}
	hits, _ := f.messages.SearchMessages(ctx, "A", "secret")
	if len(hits) != 0 {
		t.Errorf("Search still returns message deleted for caller")
	}

	pageB, _ := f.messages.FetchMessages(ctx, "B", ch.ID, 1)
	if len(pageB.Messages) != 1 || pageB.Messages[0].Content != "secret plan" {
		t.Errorf("Other member should see original content, got %+v", pageB.Messages)
	}
}

func TestPagination(t *testing.T) {
	f := newFixture(t, "A")
	ctx := context.Background()
	ch := f.channel(t, "A", "general")
	for i := 0; i < 45; i++ {
		f.send(t, "A", ch.ID, fmt.Sprintf("m%02d", i))
	}

	if _, err := f.messages.FetchMessages(ctx, "A", ch.ID, 0); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for page 0, got %v", err)
	}

	var all []string
	for page := 3; page >= 1; page-- {
		p, err := f.messages.FetchMessages(ctx, "A", ch.ID, page)
		if err != nil {
			t.Fatalf("FetchMessages(%d): %v", page, err)
		}
		if len(p.Messages) > models.MessagePageSize {
			t.Errorf("Page %d too large: %d", page, len(p.Messages))
		}
		if page == 3 && (len(p.Messages) != 5 || p.HasMore) {
			t.Errorf("Expected short final page of 5, got %d (hasMore=%v)", len(p.Messages), p.HasMore)
		}
		for _, m := range p.Messages {
			all = append(all, m.Content)
		}
	}

	if len(all) != 45 {
		t.Fatalf("Expected 45 messages across pages, got %d", len(all))
	}
	for i, content := range all {
		if want := fmt.Sprintf("m%02d", i); content != want {
			t.Fatalf("Windows not contiguous: position %d has %s, want %s", i, content, want)
		}
	}
}

func TestFetchPrivateRequiresMembership(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	ops, _ := f.channels.CreateChannel(ctx, "A", &models.CreateChannelRequest{Name: "ops", IsPrivate: true, Password: "x1"})

	if _, err := f.messages.FetchMessages(ctx, "B", ops.ID, 1); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized, got %v", err)
	}
	if _, err := f.channels.ChannelMembers(ctx, "B", ops.ID); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized members listing, got %v", err)
	}
	members, err := f.channels.ChannelMembers(ctx, "A", ops.ID)
	if err != nil || len(members) != 1 || members[0].ID != "A" {
		t.Errorf("ChannelMembers: got %v, %v", members, err)
	}
}

func TestSearchMessages(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()
	mine := f.channel(t, "A", "mine", "B")
	other := f.channel(t, "B", "other")

	f.send(t, "A", mine.ID, "Deploy at noon")
	gone := f.send(t, "A", mine.ID, "deploy rollback")
	f.send(t, "B", other.ID, "deploy elsewhere")
	if _, err := f.messages.DeleteMessage(ctx, "A", gone.ID, models.DeleteForEveryone); err != nil {
		t.Fatal(err)
	}

	if _, err := f.messages.SearchMessages(ctx, "A", " "); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error for blank keyword, got %v", err)
	}

	hits, err := f.messages.SearchMessages(ctx, "A", "DEPLOY")
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "Deploy at noon" {
		t.Errorf("Expected only the live message in A's channels, got %d hits", len(hits))
	}

	hits, _ = f.messages.SearchMessages(ctx, "B", "deploy")
	if len(hits) != 2 || hits[0].Content != "deploy elsewhere" {
		t.Errorf("Expected newest-first hits across B's channels, got %d", len(hits))
	}
}
