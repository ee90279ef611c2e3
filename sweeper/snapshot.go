package sweeper

import "github.com/desireevl/quantum-catsweeper/tile"

type CellSnapshot struct {
	Revealed bool
	// Category is only meaningful when Revealed is set.
	Category tile.Category
	Mark     Mark
}

// Snapshot is a viewer-safe copy of a game: hidden cells never expose their
// category.
type Snapshot struct {
	Round     uint32
	Phase     Phase
	Size      int
	BombCount int

	Moves   int
	Defused int
	Clicks  map[tile.Category]int

	Cells [][]CellSnapshot
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Round:     g.round,
		Phase:     g.phase,
		Size:      g.board.Size,
		BombCount: g.cfg.BombCount,
		Moves:     g.moves,
		Defused:   g.defused,
		Clicks:    make(map[tile.Category]int, len(g.clicks)),
		Cells:     make([][]CellSnapshot, g.board.Size),
	}
	for c, n := range g.clicks {
		s.Clicks[c] = n
	}
	for r := 0; r < g.board.Size; r++ {
		row := make([]CellSnapshot, g.board.Size)
		for c := 0; c < g.board.Size; c++ {
			row[c] = CellSnapshot{
				Revealed: g.revealed[r][c],
				Mark:     g.marks[r][c],
			}
			if g.revealed[r][c] {
				row[c].Category = g.board.Cells[r][c]
			}
		}
		s.Cells[r] = row
	}
	return s
}

// RevealedCount returns how many cells are visible.
func (s Snapshot) RevealedCount() int {
	n := 0
	for _, row := range s.Cells {
		for _, cell := range row {
			if cell.Revealed {
				n++
			}
		}
	}
	return n
}
