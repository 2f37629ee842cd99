package brackets_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dosada05/bracket-engine/brackets"
)

func TestTopologyLaws(t *testing.T) {
	for n := 2; n <= 64; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			rounds := brackets.NumRounds(n)
			size := brackets.BracketSize(n)
			byes := brackets.NumByes(n)

			assert.Equal(t, size, 1<<uint(rounds), "bracket size must be 2^rounds")
			assert.GreaterOrEqual(t, size, n, "bracket must fit every entrant")
			assert.Less(t, size/2, n, "bracket must be the smallest fitting power of two")
			assert.Equal(t, size-n, byes)
			assert.GreaterOrEqual(t, byes, 0)
			assert.Less(t, byes, n, "byes must never reach the entrant count")
			assert.Equal(t, size/2, brackets.SetsInRound(1, rounds), "first round holds half the slots")
			assert.Equal(t, 1, brackets.SetsInRound(rounds, rounds), "final round is a single set")
		})
	}
}

func TestNumRoundsKnownValues(t *testing.T) {
	cases := map[int]int{
		2:  1,
		3:  2,
		4:  2,
		5:  3,
		8:  3,
		9:  4,
		16: 4,
		17: 5,
		64: 6,
	}
	for n, want := range cases {
		assert.Equal(t, want, brackets.NumRounds(n), "n=%d", n)
	}
}

func TestSetsInRoundHalves(t *testing.T) {
	const totalRounds = 5
	for r := 1; r < totalRounds; r++ {
		assert.Equal(t, brackets.SetsInRound(r, totalRounds), 2*brackets.SetsInRound(r+1, totalRounds))
	}
}

func TestRoundNameByDistanceFromFinal(t *testing.T) {
	const totalRounds = 6
	assert.Equal(t, "Grand Finals", brackets.RoundName(6, totalRounds))
	assert.Equal(t, "Finals", brackets.RoundName(5, totalRounds))
	assert.Equal(t, "Semi-Finals", brackets.RoundName(4, totalRounds))
	assert.Equal(t, "Quarter-Finals", brackets.RoundName(3, totalRounds))
	assert.Equal(t, "Round 2", brackets.RoundName(2, totalRounds))
	assert.Equal(t, "Round 1", brackets.RoundName(1, totalRounds))
}

func TestRoundNameTinyBrackets(t *testing.T) {
	// With a single round the only set is already the grand final.
	assert.Equal(t, "Grand Finals", brackets.RoundName(1, 1))
	assert.Equal(t, "Finals", brackets.RoundName(1, 2))
	assert.Equal(t, "Grand Finals", brackets.RoundName(2, 2))
}
