package replay

import (
	"fmt"

	"github.com/desireevl/quantum-catsweeper/sweeper"
)

type normalizedSpec struct {
	cfg      sweeper.Config
	coinSeed int64
	clicks   []sweeper.Position
}

func normalizeSpec(spec GameSpec) (normalizedSpec, error) {
	var out normalizedSpec
	if spec.Seed == 0 {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_seed", Message: "seed must be non-zero for a reproducible tape"}
	}

	cfg := sweeper.DefaultConfig()
	cfg.Seed = spec.Seed
	if spec.Size != 0 {
		cfg.Size = spec.Size
	}
	if spec.BombCount != 0 {
		cfg.BombCount = spec.BombCount
	}
	if o := spec.Oracle; o != nil {
		if o.Trials != 0 {
			cfg.Oracle.Trials = o.Trials
		}
		if o.ExplodeBias != nil {
			cfg.Oracle.ExplodeBias = *o.ExplodeBias
		}
		if o.GroupBias != nil {
			cfg.Oracle.GroupBias = *o.GroupBias
		}
		schedule, err := sweeper.ParseSchedule(o.Schedule)
		if err != nil {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_oracle", Message: err.Error()}
		}
		cfg.Oracle.Schedule = schedule
	}
	out.cfg = cfg

	out.coinSeed = spec.CoinSeed
	if out.coinSeed == 0 {
		out.coinSeed = spec.Seed
	}

	out.clicks = make([]sweeper.Position, 0, len(spec.Clicks))
	for i, c := range spec.Clicks {
		if c.Row < 0 || c.Col < 0 || c.Row >= cfg.Size || c.Col >= cfg.Size {
			return out, &ReplayError{
				StepIndex: int32(i),
				Reason:    "out_of_bounds",
				Message:   fmt.Sprintf("click (%d,%d) outside %dx%d board", c.Row, c.Col, cfg.Size, cfg.Size),
			}
		}
		out.clicks = append(out.clicks, sweeper.Position{Row: c.Row, Col: c.Col})
	}
	return out, nil
}
