package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/db"
	"github.com/chatvault/chatvault/internal/db/migrations"
	"github.com/chatvault/chatvault/internal/dbpool"
	"github.com/chatvault/chatvault/internal/models"
	"github.com/chatvault/chatvault/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

func newChatStore(t *testing.T) *store.ChatStore {
	t.Helper()

	env := getTestEnv(t)

	return store.NewChatStore(store.Base{Pool: env.pool, Log: env.log})
}

func testChat(externalID string) (models.StoredChat, []models.StoredMessage) {
	now := time.Now().UTC().Truncate(time.Second)

	chat := models.StoredChat{
		ExternalID:  externalID,
		Title:       "Test Chat",
		CreateTime:  &now,
		Model:       "gpt-4o",
		SourceFile:  "conversations.json",
		Hash:        "hash-" + externalID,
		ContentText: "user: hello\nassistant: hi",
		RawJSON:     []byte(`{"id":"` + externalID + `"}`),
	}

	msgs := []models.StoredMessage{
		{Index: 0, Role: "user", CreatedAt: &now, Content: "hello"},
		{Index: 1, Role: "assistant", Content: "hi"},
	}

	return chat, msgs
}

func TestInsertAndFindChat(t *testing.T) {
	s := newChatStore(t)
	ctx := context.Background()

	externalID := uuid.NewString()
	chat, msgs := testChat(externalID)

	chatID, err := s.InsertChat(ctx, chat, msgs)
	if err != nil {
		t.Fatalf("inserting chat: %v", err)
	}

	if chatID == 0 {
		t.Fatal("expected a non-zero chat ID")
	}

	found, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		t.Fatalf("finding chat: %v", err)
	}

	if found.ID != chatID || found.Hash != chat.Hash || found.Title != chat.Title {
		t.Errorf("unexpected chat: %+v", found)
	}
}

func TestFindByExternalID_NotFound(t *testing.T) {
	s := newChatStore(t)

	_, err := s.FindByExternalID(context.Background(), uuid.NewString())
	if !errors.Is(err, models.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestInsertChat_DuplicateExternalID(t *testing.T) {
	s := newChatStore(t)
	ctx := context.Background()

	externalID := uuid.NewString()
	chat, msgs := testChat(externalID)

	if _, err := s.InsertChat(ctx, chat, msgs); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := s.InsertChat(ctx, chat, msgs)
	if !errors.Is(err, models.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestReplaceChat(t *testing.T) {
	s := newChatStore(t)
	ctx := context.Background()

	externalID := uuid.NewString()
	chat, msgs := testChat(externalID)

	chatID, err := s.InsertChat(ctx, chat, msgs)
	if err != nil {
		t.Fatalf("inserting chat: %v", err)
	}

	chat.Title = "Revised"
	chat.Hash = "hash-revised"

	newMsgs := []models.StoredMessage{
		{Index: 0, Role: "user", Content: "hello"},
		{Index: 1, Role: "assistant", Content: "hi, revised"},
		{Index: 2, Role: "user", Content: "thanks"},
	}

	if err := s.ReplaceChat(ctx, chatID, chat, newMsgs); err != nil {
		t.Fatalf("replacing chat: %v", err)
	}

	found, foundMsgs, err := s.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("getting chat: %v", err)
	}

	if found.Title != "Revised" || found.Hash != "hash-revised" {
		t.Errorf("unexpected chat after replace: %+v", found)
	}

	if len(foundMsgs) != 3 {
		t.Fatalf("expected 3 messages after replace, got %d", len(foundMsgs))
	}

	for i, m := range foundMsgs {
		if m.Index != i {
			t.Errorf("message %d: expected index %d, got %d", i, i, m.Index)
		}
	}
}

func TestReplaceChat_NotFound(t *testing.T) {
	s := newChatStore(t)

	chat, msgs := testChat(uuid.NewString())

	err := s.ReplaceChat(context.Background(), -1, chat, msgs)
	if !errors.Is(err, models.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestSearchChats(t *testing.T) {
	s := newChatStore(t)
	ctx := context.Background()

	needle := uuid.NewString()
	chat, msgs := testChat(uuid.NewString())
	chat.ContentText = fmt.Sprintf("user: the needle is %s", needle)

	if _, err := s.InsertChat(ctx, chat, msgs); err != nil {
		t.Fatalf("inserting chat: %v", err)
	}

	results, err := s.SearchChats(ctx, needle, 10)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}

	if len(results) != 1 || results[0].ExternalID != chat.ExternalID {
		t.Fatalf("expected the inserted chat, got %+v", results)
	}
}

func TestStats(t *testing.T) {
	s := newChatStore(t)
	ctx := context.Background()

	chat, msgs := testChat(uuid.NewString())
	if _, err := s.InsertChat(ctx, chat, msgs); err != nil {
		t.Fatalf("inserting chat: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("reading stats: %v", err)
	}

	if stats.Chats < 1 || stats.Messages < 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if stats.LastIngestedAt == nil {
		t.Error("expected a last ingested timestamp")
	}
}
