package tile

import "fmt"

// Category is the hidden classification of a board cell.
//
// Values:
// - 0: blank
// - 1..6: group tags
// - 7..9: bomb states
// - 10: prize
type Category byte

const (
	Blank  Category = 0
	Group1 Category = 1
	Group2 Category = 2
	Group3 Category = 3
	Group4 Category = 4
	Group5 Category = 5
	Group6 Category = 6

	BombUnexploded Category = 7
	BombDefused    Category = 8
	BombExploded   Category = 9

	Prize Category = 10
)

// GroupCount is the number of named groups a board is partitioned into.
const GroupCount = 6

// Groups lists the group tags in declaration order.
var Groups = []Category{Group1, Group2, Group3, Group4, Group5, Group6}

var CategoryDictionary = map[Category]string{
	Blank:          "blank",
	Group1:         "group1",
	Group2:         "group2",
	Group3:         "group3",
	Group4:         "group4",
	Group5:         "group5",
	Group6:         "group6",
	BombUnexploded: "bomb",
	BombDefused:    "bomb_defused",
	BombExploded:   "bomb_exploded",
	Prize:          "prize",
}

func (c Category) String() string {
	if name, ok := CategoryDictionary[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", byte(c))
}

func (c Category) Valid() bool {
	_, ok := CategoryDictionary[c]
	return ok
}

func (c Category) IsGroup() bool {
	return c >= Group1 && c <= Group6
}

func (c Category) IsBomb() bool {
	return c == BombUnexploded || c == BombDefused || c == BombExploded
}

// ClicksToReveal returns how many clicks of this category are needed before
// the oracle may reveal it. Categories that never reach the oracle return 0.
func (c Category) ClicksToReveal() int {
	switch c {
	case BombUnexploded, Group1, Group2:
		return 1
	case Group3, Group4:
		return 2
	case Group5, Group6:
		return 3
	default:
		return 0
	}
}

// Glyph is the one-character board rendering of a category: '.' blank,
// '1'-'6' groups, '*' bomb, 'd' defused, 'x' exploded, '$' prize.
func (c Category) Glyph() byte {
	switch {
	case c == Blank:
		return '.'
	case c.IsGroup():
		return '0' + byte(c)
	case c == BombUnexploded:
		return '*'
	case c == BombDefused:
		return 'd'
	case c == BombExploded:
		return 'x'
	case c == Prize:
		return '$'
	default:
		return '?'
	}
}

// ParseCategory resolves a name produced by String.
func ParseCategory(name string) (Category, bool) {
	for c, n := range CategoryDictionary {
		if n == name {
			return c, true
		}
	}
	return Blank, false
}
