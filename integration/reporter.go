package integration

import "context"

// GameResult is one per-game line of a reported set, numbered from 1.
type GameResult struct {
	WinnerID   int `json:"winnerId"`
	GameNumber int `json:"gameNumber"`
}

// SetMutationResponse is the platform's acknowledgement for any of the four
// set mutations.
type SetMutationResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// ScoreReporter mirrors set transitions to an external tournament platform.
// All four calls are idempotent on the platform side; a failure must abort
// the local transition, so callers invoke the reporter before committing.
type ScoreReporter interface {
	ReportResult(ctx context.Context, externalSetID string, winnerID int, games []GameResult) (*SetMutationResponse, error)
	ResetResult(ctx context.Context, externalSetID string, cascade bool) (*SetMutationResponse, error)
	MarkCalled(ctx context.Context, externalSetID string) (*SetMutationResponse, error)
	MarkInProgress(ctx context.Context, externalSetID string) (*SetMutationResponse, error)
}

// GamesFromScores expands final slot scores into per-game results with
// best-of semantics: the first entrant wins games 1..score1, the second
// wins the remainder.
func GamesFromScores(entrant1ID, entrant2ID, score1, score2 int) []GameResult {
	games := make([]GameResult, 0, score1+score2)
	for g := 1; g <= score1; g++ {
		games = append(games, GameResult{WinnerID: entrant1ID, GameNumber: g})
	}
	for g := score1 + 1; g <= score1+score2; g++ {
		games = append(games, GameResult{WinnerID: entrant2ID, GameNumber: g})
	}
	return games
}
