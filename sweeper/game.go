package sweeper

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/desireevl/quantum-catsweeper/tile"
)

// Game owns one board plus the click bookkeeping around it.
type Game struct {
	cfg    Config
	rng    *rand.Rand
	coin   BiasedCoin
	oracle *Oracle

	mu sync.Mutex

	round    uint32
	phase    Phase
	board    *Board
	revealed [][]bool
	marks    [][]Mark
	clicks   map[tile.Category]int

	moves   int
	defused int
}

// NewGame validates cfg and deals the first board. A nil coin is replaced by
// a ParallelCoin seeded from cfg.Seed with cfg.SampleWorkers workers.
func NewGame(cfg Config, coin BiasedCoin) (*Game, error) {
	if cfg.Oracle.Schedule == "" {
		cfg.Oracle.Schedule = ScheduleFixed
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	oracle, err := NewOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seedOrNow(cfg.Seed)))
	if coin == nil {
		// always chunked, so SampleWorkers only changes speed, never outcomes
		coin = NewParallelCoin(rng.Int63()|1, max(1, cfg.SampleWorkers))
	}
	g := &Game{
		cfg:    cfg,
		rng:    rng,
		coin:   coin,
		oracle: oracle,
	}
	if err := g.NewRound(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) Config() Config { return g.cfg }

// NewRound deals a new board and clears every per-round counter.
func (g *Game) NewRound() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	board, err := GenerateBoard(g.cfg.Size, g.cfg.BombCount, g.rng)
	if err != nil {
		return err
	}
	g.board = board
	g.revealed = make([][]bool, board.Size)
	g.marks = make([][]Mark, board.Size)
	for r := 0; r < board.Size; r++ {
		g.revealed[r] = make([]bool, board.Size)
		g.marks[r] = make([]Mark, board.Size)
	}
	g.clicks = make(map[tile.Category]int, tile.GroupCount+1)
	g.moves = 0
	g.defused = 0
	g.phase = PhasePlaying
	g.round++
	return nil
}

// Click resolves one click on (row, col).
func (g *Game) Click(row, col int) (ClickResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return ClickResult{}, ErrGameOver
	}
	pos := Position{Row: row, Col: col}
	if !g.board.InBounds(pos) {
		return ClickResult{}, fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, row, col, g.board.Size, g.board.Size)
	}
	if g.revealed[row][col] {
		return ClickResult{}, ErrAlreadyRevealed
	}

	cat := g.board.At(pos)
	res := ClickResult{Row: row, Col: col, Category: cat}

	switch cat {
	case tile.Blank, tile.Prize:
		outcome, err := g.oracle.Reveal(cat, 1, nil)
		if err != nil {
			return ClickResult{}, err
		}
		res.Outcome = outcome
		g.revealLocked(pos, &res)
	default:
		g.clicks[cat]++
		res.ClickCount = g.clicks[cat]
		outcome, err := g.oracle.Reveal(cat, res.ClickCount, g.coin)
		if err != nil {
			g.clicks[cat]--
			return ClickResult{}, err
		}
		res.Outcome = outcome
		g.applyLocked(pos, &res)
	}

	g.moves++
	if res.Outcome == tile.OutcomeWin {
		g.phase = PhaseWon
	}
	res.Phase = g.phase
	return res, nil
}

func (g *Game) applyLocked(pos Position, res *ClickResult) {
	switch res.Outcome {
	case tile.OutcomeBombExploded:
		g.board.Cells[pos.Row][pos.Col] = tile.BombExploded
		g.revealLocked(pos, res)
		g.phase = PhaseLost
	case tile.OutcomeBombDefused:
		g.board.Cells[pos.Row][pos.Col] = tile.BombDefused
		g.revealLocked(pos, res)
		g.defused++
	case tile.OutcomeRevealGroup:
		for _, p := range g.board.Positions(res.Category) {
			if !g.revealed[p.Row][p.Col] {
				g.revealLocked(p, res)
			}
		}
	case tile.OutcomePositiveEval:
		g.marks[pos.Row][pos.Col] = MarkPositive
	case tile.OutcomeNegativeEval:
		g.marks[pos.Row][pos.Col] = MarkNegative
	}
}

func (g *Game) revealLocked(pos Position, res *ClickResult) {
	g.revealed[pos.Row][pos.Col] = true
	g.marks[pos.Row][pos.Col] = MarkNone
	res.Revealed = append(res.Revealed, pos)
}

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) Round() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// ClickCount returns the shared counter of a category in the current round.
func (g *Game) ClickCount(c tile.Category) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clicks[c]
}

// Board returns a copy of the full, unmasked board.
func (g *Game) Board() *Board {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Clone()
}
