package sweeper

import (
	"fmt"
	"strings"
)

const (
	DefaultBoardSize   = 12
	DefaultBombCount   = 20
	DefaultTrials      = 1024
	DefaultExplodeBias = 0.5
	DefaultGroupBias   = 0.5
)

// BiasSchedule selects how the group bias evolves across clicks.
type BiasSchedule string

const (
	// ScheduleFixed draws every click at OracleConfig.GroupBias.
	ScheduleFixed BiasSchedule = "fixed"
	// ScheduleRotation draws the k-th of n clicks at sin²(k·π/2n), so the
	// final click is certain to favour a reveal.
	ScheduleRotation BiasSchedule = "rotation"
)

// OracleConfig tunes the reveal oracle.
type OracleConfig struct {
	Trials      int
	ExplodeBias float64
	GroupBias   float64
	Schedule    BiasSchedule
}

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		Trials:      DefaultTrials,
		ExplodeBias: DefaultExplodeBias,
		GroupBias:   DefaultGroupBias,
		Schedule:    ScheduleFixed,
	}
}

func (c OracleConfig) validate() error {
	if c.Trials <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("trials must be > 0, got %d", c.Trials))
	}
	if c.ExplodeBias < 0 || c.ExplodeBias > 1 {
		return ErrInvalidConfig(fmt.Sprintf("explode bias out of range: %v", c.ExplodeBias))
	}
	if c.GroupBias < 0 || c.GroupBias > 1 {
		return ErrInvalidConfig(fmt.Sprintf("group bias out of range: %v", c.GroupBias))
	}
	switch c.Schedule {
	case "", ScheduleFixed, ScheduleRotation:
	default:
		return ErrInvalidConfig(fmt.Sprintf("unknown bias schedule %q", c.Schedule))
	}
	return nil
}

// ParseSchedule accepts the textual schedule names used in configuration.
func ParseSchedule(raw string) (BiasSchedule, error) {
	switch s := BiasSchedule(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", ScheduleFixed:
		return ScheduleFixed, nil
	case ScheduleRotation:
		return s, nil
	default:
		return "", ErrInvalidConfig(fmt.Sprintf("unknown bias schedule %q", raw))
	}
}

// Config describes one game session.
type Config struct {
	Size      int
	BombCount int
	Oracle    OracleConfig

	// Workers > 1 selects a ParallelCoin when NewGame builds its own coin.
	SampleWorkers int

	// RNG seed (0 => time-based)
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Size:      DefaultBoardSize,
		BombCount: DefaultBombCount,
		Oracle:    DefaultOracleConfig(),
	}
}

// Validate reports the first problem with c as an InvalidConfigError.
func (c Config) Validate() error { return c.validate() }

func (c Config) validate() error {
	if err := validateBoardParams(c.Size, c.BombCount); err != nil {
		return err
	}
	if c.SampleWorkers < 0 {
		return ErrInvalidConfig("sample workers must be >= 0")
	}
	return c.Oracle.validate()
}

func validateBoardParams(size, bombCount int) error {
	if size <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("size must be > 0, got %d", size))
	}
	if bombCount < 0 {
		return ErrInvalidConfig(fmt.Sprintf("bomb count must be >= 0, got %d", bombCount))
	}
	if bombCount*2 > size*size {
		return ErrInvalidConfig(fmt.Sprintf("too many bombs: %d on a %dx%d board", bombCount, size, size))
	}
	return nil
}
