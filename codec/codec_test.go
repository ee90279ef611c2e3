package codec

import (
	"bytes"
	"testing"

	"github.com/desireevl/quantum-catsweeper/sweeper"
	"github.com/desireevl/quantum-catsweeper/tile"
)

func TestServerEnvelope_RoundTrip(t *testing.T) {
	env := ServerEnvelope{
		Type:       TypeClick,
		SessionID:  "game_7",
		ServerSeq:  12,
		ServerTsMs: 1700000000000,
		Payload:    map[string]any{"outcome": "reveal_group", "click_count": 2},
	}
	data, err := MarshalServer(env)
	if err != nil {
		t.Fatalf("MarshalServer err: %v", err)
	}
	got, err := UnmarshalServer(data)
	if err != nil {
		t.Fatalf("UnmarshalServer err: %v", err)
	}
	if got.Type != env.Type || got.SessionID != env.SessionID || got.ServerSeq != env.ServerSeq || got.ServerTsMs != env.ServerTsMs {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.Payload["outcome"] != "reveal_group" || got.Payload["click_count"] != float64(2) {
		t.Fatalf("payload mismatch: %v", got.Payload)
	}
}

func TestMarshalServer_IsDeterministic(t *testing.T) {
	env := ServerEnvelope{Type: TypeSnapshot, ServerSeq: 1, Payload: map[string]any{
		"a": 1, "b": 2, "c": 3, "d": map[string]any{"x": "y", "z": true},
	}}
	first, err := MarshalServer(env)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := MarshalServer(env)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs", i)
		}
	}
}

func TestClientEnvelope_RoundTrip(t *testing.T) {
	data, err := MarshalClient(ClientEnvelope{Type: TypeClickCell, Row: 3, Col: 11})
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalClient(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeClickCell || got.Row != 3 || got.Col != 11 {
		t.Fatalf("unexpected client envelope %+v", got)
	}
	if _, err := UnmarshalClient([]byte{0xff, 0x01}); err == nil {
		t.Fatalf("expected garbage to fail decoding")
	}
	empty, _ := MarshalClient(ClientEnvelope{})
	if _, err := UnmarshalClient(empty); err == nil {
		t.Fatalf("expected missing type to fail")
	}
}

func TestSnapshotPayload_MasksHiddenCells(t *testing.T) {
	snap := sweeper.Snapshot{
		Round: 1,
		Phase: sweeper.PhasePlaying,
		Size:  2,
		Clicks: map[tile.Category]int{
			tile.Group3: 2,
		},
		Cells: [][]sweeper.CellSnapshot{
			{{Revealed: true, Category: tile.Group3}, {Category: tile.BombUnexploded}},
			{{Mark: sweeper.MarkPositive}, {Mark: sweeper.MarkNegative}},
		},
	}
	p := SnapshotPayload(snap)
	rows := p["rows"].([]any)
	if rows[0] != "3#" || rows[1] != "+-" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if p["clicks"].(map[string]any)["group3"] != 2 {
		t.Fatalf("unexpected clicks %v", p["clicks"])
	}
	if _, err := MarshalServer(ServerEnvelope{Type: TypeSnapshot, Payload: p}); err != nil {
		t.Fatalf("snapshot payload must be encodable: %v", err)
	}
}

func TestClickPayload_ShowsResolvedBomb(t *testing.T) {
	res := sweeper.ClickResult{
		Row:        1,
		Col:        2,
		Category:   tile.BombUnexploded,
		ClickCount: 1,
		Outcome:    tile.OutcomeBombDefused,
		Revealed:   []sweeper.Position{{Row: 1, Col: 2}},
		Phase:      sweeper.PhasePlaying,
	}
	p := ClickPayload(res)
	revealed := p["revealed"].([]any)
	if len(revealed) != 1 {
		t.Fatalf("expected one revealed cell, got %v", revealed)
	}
	if cat := revealed[0].(map[string]any)["category"]; cat != "bomb_defused" {
		t.Fatalf("expected bomb_defused, got %v", cat)
	}
	if p["outcome"] != "bomb_defused" || p["phase"] != "playing" {
		t.Fatalf("unexpected payload %v", p)
	}
	if _, err := MarshalServer(ServerEnvelope{Type: TypeClick, Payload: p}); err != nil {
		t.Fatalf("click payload must be encodable: %v", err)
	}
}
