package sweeper

import (
	"errors"
	"testing"

	"github.com/desireevl/quantum-catsweeper/tile"
)

// newFixtureGame builds a game whose board is given by glyph rows
// ('.' blank, '1'-'6' groups, '*' bomb, '$' prize).
func newFixtureGame(t *testing.T, coin BiasedCoin, rows ...string) *Game {
	t.Helper()

	g, err := NewGame(Config{Size: len(rows), BombCount: 0, Oracle: DefaultOracleConfig(), Seed: 1}, coin)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	b := newBoard(len(rows))
	for r, line := range rows {
		if len(line) != len(rows) {
			t.Fatalf("fixture row %d has %d cells, want %d", r, len(line), len(rows))
		}
		for c := 0; c < len(line); c++ {
			switch ch := line[c]; {
			case ch == '.':
				b.Cells[r][c] = tile.Blank
			case ch >= '1' && ch <= '6':
				b.Cells[r][c] = tile.Category(ch - '0')
			case ch == '*':
				b.Cells[r][c] = tile.BombUnexploded
			case ch == '$':
				b.Cells[r][c] = tile.Prize
			default:
				t.Fatalf("unknown fixture glyph %q", ch)
			}
		}
	}
	g.board = b
	return g
}

func mustClick(t *testing.T, g *Game, row, col int) ClickResult {
	t.Helper()
	res, err := g.Click(row, col)
	if err != nil {
		t.Fatalf("Click(%d,%d) err: %v", row, col, err)
	}
	return res
}

func TestClick_SingleClickGroupReveal(t *testing.T) {
	coin := FixedCoin(1)
	g := newFixtureGame(t, coin,
		"11..",
		"..1.",
		"33..",
		"...$",
	)

	res := mustClick(t, g, 0, 0)
	if res.Outcome != tile.OutcomeRevealGroup {
		t.Fatalf("expected reveal_group, got %s", res.Outcome)
	}
	if res.ClickCount != 1 {
		t.Fatalf("expected click count 1, got %d", res.ClickCount)
	}
	if len(res.Revealed) != 3 {
		t.Fatalf("expected 3 revealed cells, got %v", res.Revealed)
	}
	snap := g.Snapshot()
	for _, p := range []Position{{0, 0}, {0, 1}, {1, 2}} {
		cell := snap.Cells[p.Row][p.Col]
		if !cell.Revealed || cell.Category != tile.Group1 {
			t.Fatalf("expected %v to show group1, got %+v", p, cell)
		}
	}
	if snap.Cells[2][0].Revealed {
		t.Fatalf("group3 must stay hidden")
	}
	if _, err := g.Click(1, 2); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("expected ErrAlreadyRevealed, got %v", err)
	}
}

func TestClick_TwoClickGroupSharesCounter(t *testing.T) {
	coin := FixedCoin(1)
	g := newFixtureGame(t, coin,
		"33..",
		"....",
		"....",
		"...$",
	)

	first := mustClick(t, g, 0, 0)
	if first.Outcome != tile.OutcomePositiveEval {
		t.Fatalf("expected positive_eval, got %s", first.Outcome)
	}
	if len(first.Revealed) != 0 {
		t.Fatalf("evaluation must not reveal cells")
	}
	if mark := g.Snapshot().Cells[0][0].Mark; mark != MarkPositive {
		t.Fatalf("expected positive mark, got %s", mark)
	}

	second := mustClick(t, g, 0, 1)
	if second.ClickCount != 2 {
		t.Fatalf("expected shared counter 2, got %d", second.ClickCount)
	}
	if second.Outcome != tile.OutcomeRevealGroup {
		t.Fatalf("expected reveal_group, got %s", second.Outcome)
	}
	snap := g.Snapshot()
	if !snap.Cells[0][0].Revealed || snap.Cells[0][0].Mark != MarkNone {
		t.Fatalf("revealed cell should drop its mark: %+v", snap.Cells[0][0])
	}
}

func TestClick_NegativeEvalKeepsCellClickable(t *testing.T) {
	coin := NewScriptedCoin(1, 0)
	g := newFixtureGame(t, coin,
		"5...",
		"....",
		"....",
		"...$",
	)

	res := mustClick(t, g, 0, 0)
	if res.Outcome != tile.OutcomeNegativeEval {
		t.Fatalf("expected negative_eval, got %s", res.Outcome)
	}
	if mark := g.Snapshot().Cells[0][0].Mark; mark != MarkNegative {
		t.Fatalf("expected negative mark, got %s", mark)
	}
	res = mustClick(t, g, 0, 0)
	if res.ClickCount != 2 || res.Outcome != tile.OutcomePositiveEval {
		t.Fatalf("second click: expected positive_eval at count 2, got %s at %d", res.Outcome, res.ClickCount)
	}
	if mark := g.Snapshot().Cells[0][0].Mark; mark != MarkPositive {
		t.Fatalf("expected mark to flip to positive, got %s", mark)
	}
	res = mustClick(t, g, 0, 0)
	if res.ClickCount != 3 || res.Outcome != tile.OutcomeRevealGroup {
		t.Fatalf("third click: expected reveal_group at count 3, got %s at %d", res.Outcome, res.ClickCount)
	}
	if g.ClickCount(tile.Group5) != 3 {
		t.Fatalf("expected counter 3, got %d", g.ClickCount(tile.Group5))
	}
}

func TestClick_BombExplodesEndsGame(t *testing.T) {
	g := newFixtureGame(t, FixedCoin(1),
		"*...",
		"....",
		"....",
		"...$",
	)

	res := mustClick(t, g, 0, 0)
	if res.Outcome != tile.OutcomeBombExploded {
		t.Fatalf("expected bomb_exploded, got %s", res.Outcome)
	}
	if res.Phase != PhaseLost || g.Phase() != PhaseLost {
		t.Fatalf("expected lost phase, got %s", g.Phase())
	}
	if g.Board().Cells[0][0] != tile.BombExploded {
		t.Fatalf("cell should mutate to bomb_exploded")
	}
	if _, err := g.Click(3, 3); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestClick_BombDefused(t *testing.T) {
	g := newFixtureGame(t, FixedCoin(0),
		"**..",
		"....",
		"....",
		"...$",
	)

	for col := 0; col < 2; col++ {
		res := mustClick(t, g, 0, col)
		if res.Outcome != tile.OutcomeBombDefused {
			t.Fatalf("expected bomb_defused, got %s", res.Outcome)
		}
	}
	snap := g.Snapshot()
	if snap.Defused != 2 {
		t.Fatalf("expected 2 defused bombs, got %d", snap.Defused)
	}
	if snap.Cells[0][0].Category != tile.BombDefused {
		t.Fatalf("expected defused bomb to be visible, got %+v", snap.Cells[0][0])
	}
	if snap.Phase != PhasePlaying {
		t.Fatalf("defusing must not end the game")
	}
}

func TestClick_BlankAndPrizeSkipOracle(t *testing.T) {
	coin := FixedCoin(1)
	g := newFixtureGame(t, coin,
		"....",
		"....",
		"....",
		"...$",
	)

	res := mustClick(t, g, 0, 0)
	if res.Outcome != tile.OutcomeNone || res.ClickCount != 0 {
		t.Fatalf("unexpected blank result %+v", res)
	}
	if len(res.Revealed) != 1 {
		t.Fatalf("blank click should reveal its own cell")
	}
	res = mustClick(t, g, 3, 3)
	if res.Outcome != tile.OutcomeWin || res.Phase != PhaseWon {
		t.Fatalf("unexpected prize result %+v", res)
	}
	if coin.Calls() != 0 {
		t.Fatalf("expected no coin draws, got %d", coin.Calls())
	}
	if _, err := g.Click(1, 1); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver after win, got %v", err)
	}
}

func TestClick_OutOfBounds(t *testing.T) {
	g := newFixtureGame(t, FixedCoin(1),
		"....",
		"....",
		"....",
		"...$",
	)
	for _, p := range []Position{{-1, 0}, {0, 4}, {4, 4}} {
		if _, err := g.Click(p.Row, p.Col); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("%v: expected ErrOutOfBounds, got %v", p, err)
		}
	}
	if g.Snapshot().Moves != 0 {
		t.Fatalf("rejected clicks must not count as moves")
	}
}

func TestNewRound_ResetsClickState(t *testing.T) {
	g, err := NewGame(Config{Size: 12, BombCount: 20, Oracle: DefaultOracleConfig(), Seed: 11}, FixedCoin(0))
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	if g.Round() != 1 {
		t.Fatalf("expected first round dealt, got %d", g.Round())
	}

	board := g.Board()
	group := board.Positions(tile.Group3)
	if len(group) == 0 {
		t.Skip("seed produced an empty group3")
	}
	mustClick(t, g, group[0].Row, group[0].Col)
	if g.ClickCount(tile.Group3) != 1 {
		t.Fatalf("expected counter 1 before reset")
	}

	if err := g.NewRound(); err != nil {
		t.Fatalf("NewRound err: %v", err)
	}
	snap := g.Snapshot()
	if snap.Round != 2 || snap.Phase != PhasePlaying || snap.Moves != 0 {
		t.Fatalf("unexpected snapshot after reset: round=%d phase=%s moves=%d", snap.Round, snap.Phase, snap.Moves)
	}
	if len(snap.Clicks) != 0 {
		t.Fatalf("expected empty click counters, got %v", snap.Clicks)
	}
	if snap.RevealedCount() != 0 {
		t.Fatalf("expected fresh board to be hidden")
	}
}

func TestNewGame_SameSeedSameBoard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 2024
	a, err := NewGame(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewGame(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Board().String() != b.Board().String() {
		t.Fatalf("expected identical boards for identical seeds")
	}

	cfg.SampleWorkers = 4
	c, err := NewGame(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.coin.(*ParallelCoin); !ok {
		t.Fatalf("expected ParallelCoin with SampleWorkers=4, got %T", c.coin)
	}
}

func TestNewGame_WorkerCountDoesNotChangeDraws(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		draws := make(map[int][]int)
		for _, workers := range []int{0, 1, 4} {
			cfg := DefaultConfig()
			cfg.Seed = seed
			cfg.SampleWorkers = workers
			g, err := NewGame(cfg, nil)
			if err != nil {
				t.Fatalf("seed %d workers %d: %v", seed, workers, err)
			}
			for i := 0; i < 8; i++ {
				draws[workers] = append(draws[workers], g.coin.Sample(0.5, cfg.Oracle.Trials))
			}
		}
		for _, workers := range []int{1, 4} {
			for i := range draws[0] {
				if draws[workers][i] != draws[0][i] {
					t.Fatalf("seed %d: draw %d differs between 0 and %d workers", seed, i, workers)
				}
			}
		}
	}
}

func TestNewGame_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BombCount = 100
	if _, err := NewGame(cfg, nil); err == nil {
		t.Fatalf("expected too-many-bombs error")
	}
	cfg = DefaultConfig()
	cfg.Oracle.Trials = 0
	var cfgErr InvalidConfigError
	if _, err := NewGame(cfg, nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected InvalidConfigError, got %v", err)
	}
}
