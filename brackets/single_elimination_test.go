package brackets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
)

func manualEntries(n int) []models.SeedEntry {
	entries := make([]models.SeedEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = models.SeedEntry{
			ParticipantID: 100 + i,
			SeedNumber:    i + 1,
		}
	}
	return entries
}

func TestGeneratePlanFiveEntrants(t *testing.T) {
	gen := brackets.NewSingleEliminationGenerator()
	plan, err := gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{
		Entries: manualEntries(5),
	})
	require.NoError(t, err)

	// 5 entrants: 3 rounds, 8 slots, 3 byes, 7 sets in the full tree.
	require.Len(t, plan, 7)

	var round1 []*brackets.PlannedSet
	for _, s := range plan {
		if s.Round == 1 {
			round1 = append(round1, s)
		}
	}
	require.Len(t, round1, 4)

	// Seeds 1..3 get the byes and advance automatically.
	for i := 0; i < 3; i++ {
		s := round1[i]
		assert.Equal(t, i+1, s.OrderInRound)
		require.NotNil(t, s.Slot1.EntrantID)
		assert.Equal(t, 100+i, *s.Slot1.EntrantID)
		assert.True(t, s.Slot2.IsBye)
		require.NotNil(t, s.AutoWinnerEntrantID)
		assert.Equal(t, 100+i, *s.AutoWinnerEntrantID)
	}

	// Remaining entrants pair by seed adjacency: 4 vs 5.
	playable := round1[3]
	require.NotNil(t, playable.Slot1.EntrantID)
	require.NotNil(t, playable.Slot2.EntrantID)
	assert.Equal(t, 103, *playable.Slot1.EntrantID)
	assert.Equal(t, 104, *playable.Slot2.EntrantID)
	assert.Nil(t, playable.AutoWinnerEntrantID)
}

func TestGeneratePlanPlaceholderRounds(t *testing.T) {
	gen := brackets.NewSingleEliminationGenerator()
	plan, err := gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{
		Entries: manualEntries(8),
	})
	require.NoError(t, err)
	require.Len(t, plan, 7)

	perRound := map[int]int{}
	for _, s := range plan {
		perRound[s.Round]++
		if s.Round > 1 {
			assert.Nil(t, s.Slot1.EntrantID, "round %d set %d must start empty", s.Round, s.OrderInRound)
			assert.Nil(t, s.Slot2.EntrantID, "round %d set %d must start empty", s.Round, s.OrderInRound)
		}
	}
	assert.Equal(t, map[int]int{1: 4, 2: 2, 3: 1}, perRound)
}

func TestGeneratePlanRoundNames(t *testing.T) {
	gen := brackets.NewSingleEliminationGenerator()
	plan, err := gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{
		Entries: manualEntries(8),
	})
	require.NoError(t, err)

	names := map[int]string{}
	for _, s := range plan {
		names[s.Round] = s.FullRoundText
	}
	assert.Equal(t, "Semi-Finals", names[1])
	assert.Equal(t, "Finals", names[2])
	assert.Equal(t, "Grand Finals", names[3])
}

func TestGeneratePlanOrdersUnsortedInput(t *testing.T) {
	gen := brackets.NewSingleEliminationGenerator()
	entries := []models.SeedEntry{
		{ParticipantID: 7, SeedNumber: 2},
		{ParticipantID: 9, SeedNumber: 1},
	}
	plan, err := gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{Entries: entries})
	require.NoError(t, err)
	require.Len(t, plan, 1)

	require.NotNil(t, plan[0].Slot1.EntrantID)
	require.NotNil(t, plan[0].Slot2.EntrantID)
	assert.Equal(t, 9, *plan[0].Slot1.EntrantID, "seed 1 takes slot 1")
	assert.Equal(t, 7, *plan[0].Slot2.EntrantID)
	assert.Equal(t, "Grand Finals", plan[0].FullRoundText)
}

func TestGeneratePlanTooFewEntrants(t *testing.T) {
	gen := brackets.NewSingleEliminationGenerator()

	_, err := gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{Entries: manualEntries(1)})
	assert.Error(t, err)

	_, err = gen.GeneratePlan(context.Background(), brackets.GeneratePlanParams{Entries: nil})
	assert.Error(t, err)
}
