package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desireevl/quantum-catsweeper/sweeper"
	"github.com/desireevl/quantum-catsweeper/tile"
)

func TestObserveClick_CountsByCategoryAndOutcome(t *testing.T) {
	c := Reveals.WithLabelValues("group3", "positive_eval")
	before := testutil.ToFloat64(c)
	ObserveClick(sweeper.ClickResult{Category: tile.Group3, Outcome: tile.OutcomePositiveEval})
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	ObserveGameEnd(sweeper.PhaseWon)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"catsweeper_games_total", "catsweeper_active_sessions"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
