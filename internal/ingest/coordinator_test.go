package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/ingest"
	"github.com/chatvault/chatvault/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// memStore is an in-memory ChatWriter, safe for concurrent use.
type memStore struct {
	mu     sync.Mutex
	chats  map[string]*models.StoredChat
	msgs   map[int64][]models.StoredMessage
	nextID int64

	findErr    error
	insertErr  error
	replaceErr error

	inserts  int
	replaces int
}

func newMemStore() *memStore {
	return &memStore{
		chats: make(map[string]*models.StoredChat),
		msgs:  make(map[int64][]models.StoredMessage),
	}
}

func (m *memStore) FindByExternalID(_ context.Context, externalID string) (*models.StoredChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	chat, ok := m.chats[externalID]
	if !ok {
		return nil, models.ErrChatNotFound
	}

	copied := *chat

	return &copied, nil
}

func (m *memStore) InsertChat(_ context.Context, chat models.StoredChat, msgs []models.StoredMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++

	if m.insertErr != nil {
		return 0, m.insertErr
	}

	if _, ok := m.chats[chat.ExternalID]; ok {
		return 0, models.ErrDuplicateKey
	}

	m.nextID++
	chat.ID = m.nextID
	m.chats[chat.ExternalID] = &chat
	m.msgs[chat.ID] = msgs

	return chat.ID, nil
}

func (m *memStore) ReplaceChat(_ context.Context, chatID int64, chat models.StoredChat, msgs []models.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replaces++

	if m.replaceErr != nil {
		return m.replaceErr
	}

	chat.ID = chatID
	m.chats[chat.ExternalID] = &chat
	m.msgs[chatID] = msgs

	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.chats)
}

func (m *memStore) get(externalID string) *models.StoredChat {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.chats[externalID]
}

// conversationJSON renders one graph-form record whose single user message
// carries the given content.
func conversationJSON(id, title, content string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"title": %q,
		"current_node": "n1",
		"mapping": {
			"root": {"id": "root", "parent": null, "children": ["n1"]},
			"n1": {"id": "n1", "parent": "root", "children": [],
				"message": {"author": {"role": "user"}, "content": {"parts": [%q]}}}
		}
	}`, id, title, content)
}

// writeContainer writes a directory container with one conversations.json.
func writeContainer(t *testing.T, records ...string) string {
	t.Helper()

	dir := t.TempDir()
	doc := "[" + strings.Join(records, ",") + "]"

	if err := os.WriteFile(filepath.Join(dir, "conversations.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("writing container: %v", err)
	}

	return dir
}

func newCoordinator(store ingest.ChatWriter, workers int) *ingest.Coordinator {
	return ingest.New(store, ingest.Config{Workers: workers}, testLogger())
}

func TestRun_NewConversations(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	container := writeContainer(t,
		conversationJSON("c1", "First", "hello"),
		conversationJSON("c2", "Second", "world"),
	)

	summary, err := newCoordinator(store, 1).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 2 || summary.Updated != 0 || summary.Unchanged != 0 || summary.Rejected != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if store.count() != 2 {
		t.Errorf("expected 2 stored chats, got %d", store.count())
	}

	if store.get("c1").Hash == "" {
		t.Error("expected stored chat to carry a content hash")
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	container := writeContainer(t, conversationJSON("c1", "First", "hello"))

	c := newCoordinator(store, 1)

	if _, err := c.Run(context.Background(), container); err != nil {
		t.Fatalf("first run: %v", err)
	}

	summary, err := c.Run(context.Background(), container)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if summary.Unchanged != 1 || summary.New != 0 {
		t.Fatalf("expected the re-run to be a no-op, got %+v", summary)
	}

	if store.replaces != 0 {
		t.Errorf("expected no writes on unchanged re-ingest, got %d replaces", store.replaces)
	}
}

func TestRun_UpdatedConversation(t *testing.T) {
	t.Parallel()

	store := newMemStore()

	first := writeContainer(t, conversationJSON("c1", "First", "hello"))
	if _, err := newCoordinator(store, 1).Run(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	originalID := store.get("c1").ID

	second := writeContainer(t, conversationJSON("c1", "First", "hello, edited"))

	summary, err := newCoordinator(store, 1).Run(context.Background(), second)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if summary.Updated != 1 || summary.New != 0 {
		t.Fatalf("expected one update, got %+v", summary)
	}

	chat := store.get("c1")
	if chat.ID != originalID {
		t.Errorf("expected the internal ID to be stable across updates, got %d vs %d", chat.ID, originalID)
	}
}

func TestRun_MalformedRecordIsIsolated(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	container := writeContainer(t,
		conversationJSON("c1", "Good", "hello"),
		`{"title": "no identity"}`,
		conversationJSON("c2", "Also good", "world"),
	)

	summary, err := newCoordinator(store, 1).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 2 || summary.Rejected != 1 {
		t.Fatalf("expected 2 new and 1 rejected, got %+v", summary)
	}

	if len(summary.Rejections) != 1 {
		t.Fatalf("expected 1 rejection entry, got %d", len(summary.Rejections))
	}

	if summary.Rejections[0].Reason == "" {
		t.Error("expected the rejection to carry a reason")
	}
}

func TestRun_CyclicConversationRejected(t *testing.T) {
	t.Parallel()

	cyclic := `{
		"id": "c-cycle",
		"title": "Cycle",
		"current_node": "a",
		"mapping": {
			"a": {"id": "a", "parent": "b", "children": ["b"]},
			"b": {"id": "b", "parent": "a", "children": ["a"]}
		}
	}`

	store := newMemStore()
	container := writeContainer(t, conversationJSON("c1", "Good", "hi"), cyclic)

	summary, err := newCoordinator(store, 1).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 1 || summary.Rejected != 1 {
		t.Fatalf("expected 1 new and 1 rejected, got %+v", summary)
	}

	if store.count() != 1 {
		t.Errorf("expected only the good conversation stored, got %d", store.count())
	}
}

func TestRun_PathRecoveryCounted(t *testing.T) {
	t.Parallel()

	dangling := `{
		"id": "c-dangling",
		"title": "Dangling",
		"current_node": "gone",
		"mapping": {
			"root": {"id": "root", "parent": null, "children": ["n1"]},
			"n1": {"id": "n1", "parent": "root", "children": [],
				"message": {"author": {"role": "user"}, "content": {"parts": ["hi"]}}}
		}
	}`

	store := newMemStore()
	container := writeContainer(t, dangling)

	summary, err := newCoordinator(store, 1).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 1 {
		t.Fatalf("expected the conversation to be ingested, got %+v", summary)
	}

	if summary.PathRecoveries != 1 {
		t.Errorf("expected 1 path recovery, got %d", summary.PathRecoveries)
	}
}

func TestRun_DuplicateKeyRetriedAsUpdate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	container := writeContainer(t, conversationJSON("c1", "First", "hello"))

	// Simulate losing an insert race: the lookup misses, the insert hits the
	// unique constraint, and the retry finds a chat with a different hash.
	raced := &racingStore{memStore: store}

	summary, err := newCoordinator(raced, 1).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Updated != 1 || summary.New != 0 || summary.Rejected != 0 {
		t.Fatalf("expected the race to resolve as an update, got %+v", summary)
	}

	if store.replaces != 1 {
		t.Errorf("expected exactly one replace, got %d", store.replaces)
	}
}

// racingStore makes the first lookup miss and the first insert collide, as
// if a concurrent writer created the chat in between.
type racingStore struct {
	*memStore
	mu     sync.Mutex
	lookup int
}

func (r *racingStore) FindByExternalID(ctx context.Context, externalID string) (*models.StoredChat, error) {
	r.mu.Lock()
	r.lookup++
	n := r.lookup
	r.mu.Unlock()

	if n == 1 {
		return nil, models.ErrChatNotFound
	}

	return &models.StoredChat{ID: 7, ExternalID: externalID, Hash: "someone-elses-hash"}, nil
}

func (r *racingStore) InsertChat(ctx context.Context, chat models.StoredChat, msgs []models.StoredMessage) (int64, error) {
	return 0, models.ErrDuplicateKey
}

func TestRun_StorageUnavailableIsFatal(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.findErr = models.ErrStorageUnavailable

	container := writeContainer(t,
		conversationJSON("c1", "First", "hello"),
		conversationJSON("c2", "Second", "world"),
	)

	summary, err := newCoordinator(store, 1).Run(context.Background(), container)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if summary == nil {
		t.Fatal("expected a summary even on fatal error")
	}

	if summary.Total() != 0 {
		t.Errorf("expected no dispositions after an immediate storage failure, got %+v", summary)
	}
}

func TestRun_StorageUnavailableIsFatalParallel(t *testing.T) {
	t.Parallel()

	// The worker's storage failure must surface as the run error, not as the
	// context cancellation it triggers in the feeder.
	store := newMemStore()
	store.findErr = models.ErrStorageUnavailable

	var records []string
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("c%03d", i)
		records = append(records, conversationJSON(id, "Title "+id, "content "+id))
	}

	container := writeContainer(t, records...)

	summary, err := newCoordinator(store, 4).Run(context.Background(), container)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if summary == nil {
		t.Fatal("expected a summary even on fatal error")
	}
}

func TestRun_MissingContainerIsFatal(t *testing.T) {
	t.Parallel()

	store := newMemStore()

	_, err := newCoordinator(store, 1).Run(context.Background(), filepath.Join(t.TempDir(), "missing.zip"))
	if !errors.Is(err, models.ErrMalformedContainer) {
		t.Fatalf("expected ErrMalformedContainer, got %v", err)
	}
}

func TestRun_ParallelWorkers(t *testing.T) {
	t.Parallel()

	store := newMemStore()

	var records []string
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("c%02d", i)
		records = append(records, conversationJSON(id, "Title "+id, "content "+id))
	}

	container := writeContainer(t, records...)

	summary, err := newCoordinator(store, 4).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 40 || summary.Rejected != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if store.count() != 40 {
		t.Errorf("expected 40 stored chats, got %d", store.count())
	}
}

func TestRun_DuplicateIDWithinContainer(t *testing.T) {
	t.Parallel()

	// The same external ID twice in one container: the later record wins,
	// and the two are never applied concurrently even with workers.
	store := newMemStore()
	container := writeContainer(t,
		conversationJSON("c1", "First", "hello"),
		conversationJSON("c1", "First", "hello, revised"),
	)

	summary, err := newCoordinator(store, 4).Run(context.Background(), container)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.New != 1 || summary.Updated != 1 {
		t.Fatalf("expected new then updated, got %+v", summary)
	}

	if store.count() != 1 {
		t.Errorf("expected a single stored chat, got %d", store.count())
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	container := writeContainer(t, conversationJSON("c1", "First", "hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newCoordinator(store, 1).Run(ctx, container)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
