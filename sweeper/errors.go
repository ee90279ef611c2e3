package sweeper

import "errors"

var (
	ErrGameOver        = errors.New("game already over")
	ErrOutOfBounds     = errors.New("cell out of bounds")
	ErrAlreadyRevealed = errors.New("cell already revealed")
)

type InvalidConfigError string

func (e InvalidConfigError) Error() string { return "invalid config: " + string(e) }

func ErrInvalidConfig(msg string) error { return InvalidConfigError(msg) }

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
