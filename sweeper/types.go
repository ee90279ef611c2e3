package sweeper

import "github.com/desireevl/quantum-catsweeper/tile"

// Phase 对局阶段
type Phase byte

const (
	PhasePlaying Phase = 1
	PhaseWon     Phase = 2
	PhaseLost    Phase = 3
)

var PhaseDictionary = map[Phase]string{
	PhasePlaying: "playing",
	PhaseWon:     "won",
	PhaseLost:    "lost",
}

func (p Phase) String() string { return PhaseDictionary[p] }

// Mark is the marker left on a hidden cell by an evaluation outcome.
type Mark byte

const (
	MarkNone     Mark = 0
	MarkPositive Mark = 1
	MarkNegative Mark = 2
)

var MarkDictionary = map[Mark]string{
	MarkNone:     "none",
	MarkPositive: "positive",
	MarkNegative: "negative",
}

func (m Mark) String() string { return MarkDictionary[m] }

// ClickResult describes what one click did to the session.
type ClickResult struct {
	Row int
	Col int

	// Category the cell held before the click resolved.
	Category tile.Category
	// ClickCount is the category counter passed to the oracle, 0 when the
	// oracle was not consulted.
	ClickCount int
	Outcome    tile.Outcome

	// Revealed lists every cell made visible by this click.
	Revealed []Position
	Phase    Phase
}
