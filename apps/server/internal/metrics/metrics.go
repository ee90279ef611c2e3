package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desireevl/quantum-catsweeper/sweeper"
)

var (
	Reveals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catsweeper_reveals_total",
			Help: "Clicks resolved, by hidden category and outcome",
		},
		[]string{"category", "outcome"},
	)
	Games = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catsweeper_games_total",
			Help: "Finished games, by result",
		},
		[]string{"result"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catsweeper_active_sessions",
			Help: "Game sessions currently open",
		},
	)
)

func init() {
	prometheus.MustRegister(Reveals)
	prometheus.MustRegister(Games)
	prometheus.MustRegister(ActiveSessions)
}

func ObserveClick(res sweeper.ClickResult) {
	Reveals.WithLabelValues(res.Category.String(), res.Outcome.String()).Inc()
}

func ObserveGameEnd(phase sweeper.Phase) {
	Games.WithLabelValues(phase.String()).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
