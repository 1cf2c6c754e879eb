package models_test

import (
	"testing"

	"github.com/chatvault/chatvault/internal/models"
)

func TestDisposition_String(t *testing.T) {
	t.Parallel()

	cases := map[models.Disposition]string{
		models.DispositionNew:       "new",
		models.DispositionUnchanged: "unchanged",
		models.DispositionUpdated:   "updated",
		models.DispositionRejected:  "rejected",
	}

	for d, want := range cases {
		if got := d.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestRunSummary_Merge(t *testing.T) {
	t.Parallel()

	a := models.RunSummary{New: 2, Updated: 1, Rejections: []models.Rejection{{Reason: "x"}}}
	b := models.RunSummary{New: 1, Unchanged: 3, Rejected: 1, PathRecoveries: 2,
		Rejections: []models.Rejection{{Reason: "y"}}}

	a.Merge(&b)

	if a.New != 3 || a.Updated != 1 || a.Unchanged != 3 || a.Rejected != 1 {
		t.Errorf("unexpected counts after merge: %+v", a)
	}

	if a.PathRecoveries != 2 {
		t.Errorf("expected 2 path recoveries, got %d", a.PathRecoveries)
	}

	if len(a.Rejections) != 2 {
		t.Errorf("expected merged rejections, got %d", len(a.Rejections))
	}

	if a.Total() != 8 {
		t.Errorf("expected total 8, got %d", a.Total())
	}
}
