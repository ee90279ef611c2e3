package tile

import "fmt"

// Outcome is the visible result of resolving one click.
type Outcome byte

const (
	OutcomeNone         Outcome = 0
	OutcomePositiveEval Outcome = 1 // progress toward a group reveal
	OutcomeNegativeEval Outcome = 2 // setback, rendered with a marker
	OutcomeRevealGroup  Outcome = 3
	OutcomeBombDefused  Outcome = 4
	OutcomeBombExploded Outcome = 5
	OutcomeWin          Outcome = 6 // prize found
)

var OutcomeDictionary = map[Outcome]string{
	OutcomeNone:         "none",
	OutcomePositiveEval: "positive_eval",
	OutcomeNegativeEval: "negative_eval",
	OutcomeRevealGroup:  "reveal_group",
	OutcomeBombDefused:  "bomb_defused",
	OutcomeBombExploded: "bomb_exploded",
	OutcomeWin:          "win",
}

func (o Outcome) String() string {
	if name, ok := OutcomeDictionary[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", byte(o))
}

// Ends reports whether the outcome finishes the game.
func (o Outcome) Ends() bool {
	return o == OutcomeBombExploded || o == OutcomeWin
}
