package sweeper

import (
	"math/rand"
	"strings"

	"github.com/desireevl/quantum-catsweeper/tile"
)

// Group membership is painted block by block. Boards whose size is not a
// multiple of both dimensions get clipped blocks on the right and bottom edges,
// and the shuffled group order wraps around when there are more than six blocks.
const (
	blockRows = 4
	blockCols = 6
)

type Position struct {
	Row int
	Col int
}

// Board is a square grid of hidden categories, indexed Cells[row][col].
type Board struct {
	Size  int
	Cells [][]tile.Category
}

// GenerateBoard builds a fresh board. Bomb draws are independent, so duplicate
// coordinates collapse and the board may hold fewer than bombCount bombs. The
// prize is placed last and may overwrite a bomb.
func GenerateBoard(size, bombCount int, rng *rand.Rand) (*Board, error) {
	if err := validateBoardParams(size, bombCount); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(seedOrNow(0)))
	}

	b := newBoard(size)

	groups := append([]tile.Category(nil), tile.Groups...)
	rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

	k := 0
	for top := 0; top < size; top += blockRows {
		for left := 0; left < size; left += blockCols {
			tag := groups[k%len(groups)]
			for r := top; r < top+blockRows && r < size; r++ {
				for c := left; c < left+blockCols && c < size; c++ {
					if rng.Intn(2) == 1 {
						b.Cells[r][c] = tag
					}
				}
			}
			k++
		}
	}

	for i := 0; i < bombCount; i++ {
		x := rng.Intn(size)
		y := rng.Intn(size)
		b.Cells[y][x] = tile.BombUnexploded
	}

	x := rng.Intn(size)
	y := rng.Intn(size)
	b.Cells[y][x] = tile.Prize

	return b, nil
}

func newBoard(size int) *Board {
	cells := make([][]tile.Category, size)
	for r := range cells {
		cells[r] = make([]tile.Category, size)
	}
	return &Board{Size: size, Cells: cells}
}

func (b *Board) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < b.Size && p.Col >= 0 && p.Col < b.Size
}

func (b *Board) At(p Position) tile.Category {
	return b.Cells[p.Row][p.Col]
}

func (b *Board) Count(c tile.Category) int {
	n := 0
	for _, row := range b.Cells {
		for _, cell := range row {
			if cell == c {
				n++
			}
		}
	}
	return n
}

// Counts tallies every category present on the board.
func (b *Board) Counts() map[tile.Category]int {
	out := make(map[tile.Category]int)
	for _, row := range b.Cells {
		for _, cell := range row {
			out[cell]++
		}
	}
	return out
}

// Positions lists the cells holding c in row-major order.
func (b *Board) Positions(c tile.Category) []Position {
	var out []Position
	for r, row := range b.Cells {
		for col, cell := range row {
			if cell == c {
				out = append(out, Position{Row: r, Col: col})
			}
		}
	}
	return out
}

func (b *Board) Clone() *Board {
	out := newBoard(b.Size)
	for r := range b.Cells {
		copy(out.Cells[r], b.Cells[r])
	}
	return out
}

// String renders the board one glyph per cell, one row per line.
func (b *Board) String() string {
	var sb strings.Builder
	for _, row := range b.Cells {
		for _, cell := range row {
			sb.WriteByte(cell.Glyph())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
