package sweeper

import (
	"fmt"
	"math"

	"github.com/desireevl/quantum-catsweeper/tile"
)

// Oracle resolves clicks into reveal outcomes. It holds configuration only;
// every call is independent and all randomness comes from the coin passed in.
type Oracle struct {
	cfg OracleConfig
}

func NewOracle(cfg OracleConfig) (*Oracle, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = ScheduleFixed
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Oracle{cfg: cfg}, nil
}

var defaultOracle = &Oracle{cfg: DefaultOracleConfig()}

// Reveal resolves a click with the default oracle configuration.
func Reveal(category tile.Category, clickCount int, coin BiasedCoin) (tile.Outcome, error) {
	return defaultOracle.Reveal(category, clickCount, coin)
}

func (o *Oracle) Config() OracleConfig { return o.cfg }

// Reveal maps a category and its 1-indexed click count to an outcome. Blank
// and prize cells resolve without touching the coin. Cells that were already
// resolved (defused or exploded bombs) must not be resubmitted.
func (o *Oracle) Reveal(category tile.Category, clickCount int, coin BiasedCoin) (tile.Outcome, error) {
	switch category {
	case tile.Blank:
		return tile.OutcomeNone, nil
	case tile.Prize:
		return tile.OutcomeWin, nil
	}
	if clickCount <= 0 {
		return tile.OutcomeNone, ErrInvalidState(fmt.Sprintf("click count must be > 0, got %d", clickCount))
	}
	if coin == nil {
		return tile.OutcomeNone, ErrInvalidState("no biased coin")
	}

	switch {
	case category == tile.BombUnexploded:
		if coin.Sample(o.cfg.ExplodeBias, o.cfg.Trials) == 1 {
			return tile.OutcomeBombExploded, nil
		}
		return tile.OutcomeBombDefused, nil

	case category.IsGroup():
		need := category.ClicksToReveal()
		if coin.Sample(o.groupBias(clickCount, need), o.cfg.Trials) == 0 {
			return tile.OutcomeNegativeEval, nil
		}
		if clickCount >= need {
			return tile.OutcomeRevealGroup, nil
		}
		return tile.OutcomePositiveEval, nil

	default:
		return tile.OutcomeNone, ErrInvalidState(fmt.Sprintf("category %s cannot be revealed", category))
	}
}

func (o *Oracle) groupBias(clickCount, need int) float64 {
	if o.cfg.Schedule != ScheduleRotation {
		return o.cfg.GroupBias
	}
	k := clickCount
	if k > need {
		k = need
	}
	s := math.Sin(float64(k) * math.Pi / float64(2*need))
	return s * s
}
