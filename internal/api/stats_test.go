package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/chatvault/chatvault/internal/api"
	"github.com/chatvault/chatvault/internal/store"
)

func TestGetStats_OK(t *testing.T) {
	t.Parallel()

	repo := &mockChatRepo{
		statsFn: func(_ context.Context) (*store.ArchiveStats, error) {
			return &store.ArchiveStats{Chats: 12, Messages: 340}, nil
		},
	}

	r := gin.New()
	h := api.NewStatsHandler(repo, testLogger())
	r.GET("/stats", h.GetStats)

	w := doRequest(r, http.MethodGet, "/stats")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body store.ArchiveStats
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body.Chats != 12 || body.Messages != 340 {
		t.Errorf("unexpected stats: %+v", body)
	}
}
