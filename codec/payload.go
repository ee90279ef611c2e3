package codec

import (
	"github.com/desireevl/quantum-catsweeper/sweeper"
	"github.com/desireevl/quantum-catsweeper/tile"
)

// Hidden cells are rendered as '#', or '+' / '-' when they carry a mark.
const (
	glyphHidden   = '#'
	glyphPositive = '+'
	glyphNegative = '-'
)

// SnapshotPayload converts a viewer-safe snapshot into a payload map. Rows
// are glyph strings so a 12x12 board stays compact on the wire.
func SnapshotPayload(snap sweeper.Snapshot) map[string]any {
	rows := make([]any, 0, len(snap.Cells))
	for _, row := range snap.Cells {
		line := make([]byte, len(row))
		for c, cell := range row {
			line[c] = cellGlyph(cell)
		}
		rows = append(rows, string(line))
	}
	return map[string]any{
		"round":      int64(snap.Round),
		"phase":      snap.Phase.String(),
		"size":       snap.Size,
		"bomb_count": snap.BombCount,
		"moves":      snap.Moves,
		"defused":    snap.Defused,
		"clicks":     clicksPayload(snap.Clicks),
		"rows":       rows,
	}
}

func cellGlyph(cell sweeper.CellSnapshot) byte {
	if cell.Revealed {
		return cell.Category.Glyph()
	}
	switch cell.Mark {
	case sweeper.MarkPositive:
		return glyphPositive
	case sweeper.MarkNegative:
		return glyphNegative
	default:
		return glyphHidden
	}
}

func clicksPayload(clicks map[tile.Category]int) map[string]any {
	out := make(map[string]any, len(clicks))
	for c, n := range clicks {
		out[c.String()] = n
	}
	return out
}

// ClickPayload converts a click result. Categories are only disclosed for
// cells the click revealed.
func ClickPayload(res sweeper.ClickResult) map[string]any {
	shown := RevealedCategory(res)
	revealed := make([]any, 0, len(res.Revealed))
	for _, p := range res.Revealed {
		revealed = append(revealed, map[string]any{
			"row":      p.Row,
			"col":      p.Col,
			"category": shown.String(),
		})
	}
	return map[string]any{
		"row":         res.Row,
		"col":         res.Col,
		"outcome":     res.Outcome.String(),
		"click_count": res.ClickCount,
		"phase":       res.Phase.String(),
		"revealed":    revealed,
	}
}

// RevealedCategory is the category a revealed cell shows after the click.
func RevealedCategory(res sweeper.ClickResult) tile.Category {
	switch res.Outcome {
	case tile.OutcomeBombDefused:
		return tile.BombDefused
	case tile.OutcomeBombExploded:
		return tile.BombExploded
	default:
		return res.Category
	}
}

func ErrorPayload(code int32, msg string) map[string]any {
	return map[string]any{
		"code":    code,
		"message": msg,
	}
}

// GameEndPayload summarises a finished game. board is the full board, now
// safe to disclose.
func GameEndPayload(snap sweeper.Snapshot, board *sweeper.Board) map[string]any {
	return map[string]any{
		"round":   int64(snap.Round),
		"phase":   snap.Phase.String(),
		"moves":   snap.Moves,
		"defused": snap.Defused,
		"board":   board.String(),
	}
}

func WelcomePayload(userID uint64, token string, guest bool) map[string]any {
	return map[string]any{
		"user_id": userID,
		"token":   token,
		"guest":   guest,
	}
}
