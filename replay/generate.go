package replay

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/desireevl/quantum-catsweeper/codec"
	"github.com/desireevl/quantum-catsweeper/sweeper"
)

const tapeVersion = 1

// GenerateTape plays spec from scratch. The same spec always yields the same
// tape.
func GenerateTape(spec GameSpec) (*Tape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	game, err := sweeper.NewGame(ns.cfg, sweeper.NewRandCoin(ns.coinSeed))
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}

	builder := newTapeBuilder(fmt.Sprintf("replay_%d", spec.Seed))
	if err := builder.push(codec.TypeSnapshot, codec.SnapshotPayload(game.Snapshot())); err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "encode_failed", Message: err.Error()}
	}

	for stepIdx, pos := range ns.clicks {
		res, err := game.Click(pos.Row, pos.Col)
		if err != nil {
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    clickFailureReason(err),
				Message:   err.Error(),
			}
		}
		if err := builder.push(codec.TypeClick, codec.ClickPayload(res)); err != nil {
			return nil, &ReplayError{StepIndex: int32(stepIdx), Reason: "encode_failed", Message: err.Error()}
		}
	}

	if game.Phase() != sweeper.PhasePlaying {
		end := codec.GameEndPayload(game.Snapshot(), game.Board())
		if err := builder.push(codec.TypeGameEnd, end); err != nil {
			return nil, &ReplayError{StepIndex: -1, Reason: "encode_failed", Message: err.Error()}
		}
	}

	return builder.tape(), nil
}

func clickFailureReason(err error) string {
	switch {
	case errors.Is(err, sweeper.ErrGameOver):
		return "game_over"
	case errors.Is(err, sweeper.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, sweeper.ErrAlreadyRevealed):
		return "already_revealed"
	default:
		return "click_failed"
	}
}

type tapeBuilder struct {
	gameID string
	seq    uint64
	events []Event
}

func newTapeBuilder(gameID string) *tapeBuilder {
	return &tapeBuilder{gameID: gameID}
}

func (b *tapeBuilder) push(kind string, payload map[string]any) error {
	b.seq++
	// Sequence numbers stand in for timestamps so tapes stay reproducible.
	env := codec.ServerEnvelope{
		Type:       kind,
		SessionID:  b.gameID,
		ServerSeq:  b.seq,
		ServerTsMs: int64(b.seq),
		Payload:    payload,
	}
	bin, err := codec.MarshalServer(env)
	if err != nil {
		return err
	}
	b.events = append(b.events, Event{
		Type:        kind,
		Seq:         b.seq,
		Value:       payload,
		EnvelopeB64: base64.StdEncoding.EncodeToString(bin),
	})
	return nil
}

func (b *tapeBuilder) tape() *Tape {
	return &Tape{
		TapeVersion: tapeVersion,
		GameID:      b.gameID,
		Events:      b.events,
	}
}
