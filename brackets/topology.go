package brackets

import (
	"fmt"
	"math"
)

// Pure topology helpers. Everything here is a function of the entrant count
// and carries no state; the generator and the services build on these.

// NumRounds returns ceil(log2(n)) for n >= 1.
func NumRounds(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// BracketSize returns the slot count of the full bracket: 2^NumRounds(n).
func BracketSize(n int) int {
	return 1 << uint(NumRounds(n))
}

// NumByes returns how many entrants advance without a played first-round game.
func NumByes(n int) int {
	return BracketSize(n) - n
}

// SetsInRound returns the number of sets at the given round (1-based) of a
// bracket with totalRounds rounds. The count halves each round.
func SetsInRound(round, totalRounds int) int {
	return 1 << uint(totalRounds-round)
}

// RoundName maps a round to its display label by distance from the final:
// the last round is "Grand Finals", then "Finals", "Semi-Finals",
// "Quarter-Finals", and "Round k" before that. The off-by-one flavour of
// having both "Grand Finals" and "Finals" in a single-elimination tree is
// kept as-is; downstream consumers display these labels verbatim.
func RoundName(round, totalRounds int) string {
	switch totalRounds - round + 1 {
	case 1:
		return "Grand Finals"
	case 2:
		return "Finals"
	case 3:
		return "Semi-Finals"
	case 4:
		return "Quarter-Finals"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}
