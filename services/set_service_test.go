package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/bracket-engine/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

type setFixture struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	phaseRepo *fakePhaseRepo
	setRepo   *fakeSetRepo
	reporter  *fakeReporter
	svc       SetService
}

func newSetFixture(t *testing.T, rounds int, reporter *fakeReporter) *setFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	phaseRepo := newFakePhaseRepo()
	phaseRepo.add(&models.Phase{
		ID:              10,
		EventID:         1,
		Type:            models.PhaseTypeBracket,
		Status:          models.PhaseStatusCreated,
		NumberOfRounds:  rounds,
		TotalParticipants: 1 << uint(rounds),
	})

	setRepo := newFakeSetRepo()
	f := &setFixture{
		db:        db,
		mock:      mock,
		phaseRepo: phaseRepo,
		setRepo:   setRepo,
		reporter:  reporter,
	}
	var sr SetService
	if reporter != nil {
		sr = NewSetService(db, phaseRepo, setRepo, reporter, testLogger())
	} else {
		sr = NewSetService(db, phaseRepo, setRepo, nil, testLogger())
	}
	f.svc = sr
	return f
}

func (f *setFixture) addSet(t *testing.T, set *models.Set) *models.Set {
	t.Helper()
	set.PhaseID = 10
	set.EventID = 1
	if set.State == "" {
		set.State = models.SetStatePending
	}
	require.NoError(t, f.setRepo.Create(context.Background(), nil, set))
	return set
}

// fourEntrantBracket seeds a 2-round tree: (1,1) 100v101, (1,2) 102v103,
// empty final at (2,1).
func fourEntrantBracket(t *testing.T, f *setFixture) (s1, s2, final *models.Set) {
	s1 = f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1, FullRoundText: "Semi-Finals",
		Slot1: models.Slot{EntrantID: intPtr(100), SeedNumber: intPtr(1)},
		Slot2: models.Slot{EntrantID: intPtr(101), SeedNumber: intPtr(2)},
	})
	s2 = f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 2, FullRoundText: "Semi-Finals",
		Slot1: models.Slot{EntrantID: intPtr(102), SeedNumber: intPtr(3)},
		Slot2: models.Slot{EntrantID: intPtr(103), SeedNumber: intPtr(4)},
	})
	final = f.addSet(t, &models.Set{
		RoundNumber: 2, OrderInRound: 1, FullRoundText: "Grand Finals",
	})
	return s1, s2, final
}

func TestReportResultPropagatesWinner(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, final := fourEntrantBracket(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 2, Slot2Score: 1, WinnerSlot: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SetStateCompleted, out.Set.State)
	assert.True(t, out.Set.IsComplete)
	require.NotNil(t, out.Set.WinnerEntrantID)
	assert.Equal(t, 100, *out.Set.WinnerEntrantID)
	require.NotNil(t, out.Set.LoserEntrantID)
	assert.Equal(t, 101, *out.Set.LoserEntrantID)

	// Winner of (1,1) lands in slot 1 of (2,1), seed carried along.
	require.NotNil(t, out.Advanced)
	assert.Equal(t, final.ID, out.Advanced.ID)
	require.NotNil(t, out.Advanced.Slot1.EntrantID)
	assert.Equal(t, 100, *out.Advanced.Slot1.EntrantID)
	require.NotNil(t, out.Advanced.Slot1.SeedNumber)
	assert.Equal(t, 1, *out.Advanced.Slot1.SeedNumber)
	assert.Nil(t, out.Advanced.Slot2.EntrantID)

	// First report moves the phase into play.
	assert.Equal(t, models.PhaseStatusInProgress, out.Phase.Status)
	assert.NotNil(t, out.Phase.StartedAt)
	assert.False(t, out.PhaseCompleted)

	stored, err := f.setRepo.GetByPosition(context.Background(), nil, 10, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.Slot1.EntrantID)
	assert.Equal(t, 100, *stored.Slot1.EntrantID)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultSecondWinnerFillsSlotTwo(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, s2, _ := fourEntrantBracket(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	ctx := context.Background()
	_, err := f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: 2, Slot2Score: 0, WinnerSlot: 1})
	require.NoError(t, err)
	out, err := f.svc.ReportResult(ctx, s2.ID, ReportResultInput{Slot1Score: 0, Slot2Score: 2, WinnerSlot: 2})
	require.NoError(t, err)

	require.NotNil(t, out.Advanced)
	require.NotNil(t, out.Advanced.Slot2.EntrantID)
	assert.Equal(t, 103, *out.Advanced.Slot2.EntrantID)
	// Both feeders decided: the final is ready to be called.
	assert.Equal(t, models.SetStatePending, out.Advanced.State)
	assert.True(t, out.Advanced.Slot1.Populated() && out.Advanced.Slot2.Populated())

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultWinnerCannotHoldLowerScore(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)

	_, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 3, Slot2Score: 1, WinnerSlot: 2,
	})
	assert.ErrorIs(t, err, ErrWinnerScoreMismatch)
	assert.ErrorIs(t, err, ErrValidationFailed)

	stored, getErr := f.setRepo.GetByID(context.Background(), s1.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.SetStatePending, stored.State)

	// Validation fails before any transaction starts.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultRejectsBadInput(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, final := fourEntrantBracket(t, f)
	ctx := context.Background()

	_, err := f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: -1, Slot2Score: 0, WinnerSlot: 1})
	assert.ErrorIs(t, err, ErrScoreNegative)

	_, err = f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: 1, Slot2Score: 0, WinnerSlot: 3})
	assert.ErrorIs(t, err, ErrWinnerSlotInvalid)

	// The final still has empty slots.
	_, err = f.svc.ReportResult(ctx, final.ID, ReportResultInput{Slot1Score: 1, Slot2Score: 0, WinnerSlot: 1})
	assert.ErrorIs(t, err, ErrSlotNotPopulated)

	_, err = f.svc.ReportResult(ctx, 9999, ReportResultInput{Slot1Score: 1, Slot2Score: 0, WinnerSlot: 1})
	assert.ErrorIs(t, err, ErrSetNotFound)
}

func TestReportResultByeSetRejected(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	bye := f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1,
		Slot1:           models.Slot{EntrantID: intPtr(100), SeedNumber: intPtr(1)},
		Slot2:           models.Slot{IsBye: true},
		State:           models.SetStateCompleted,
		IsComplete:      true,
		WinnerEntrantID: intPtr(100),
	})

	_, err := f.svc.ReportResult(context.Background(), bye.ID, ReportResultInput{Slot1Score: 1, WinnerSlot: 1})
	assert.ErrorIs(t, err, ErrSetAlreadyComplete)
}

func TestReportResultCompletedSetRejected(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	ctx := context.Background()
	_, err := f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: 2, Slot2Score: 0, WinnerSlot: 1})
	require.NoError(t, err)

	_, err = f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: 0, Slot2Score: 2, WinnerSlot: 2})
	assert.ErrorIs(t, err, ErrSetAlreadyComplete)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, getErr := f.setRepo.GetByID(ctx, s1.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 100, *stored.WinnerEntrantID, "first result must stand")

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultFinalCompletesPhase(t *testing.T) {
	f := newSetFixture(t, 1, nil)
	final := f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1, FullRoundText: "Grand Finals",
		Slot1: models.Slot{EntrantID: intPtr(100), SeedNumber: intPtr(1)},
		Slot2: models.Slot{EntrantID: intPtr(101), SeedNumber: intPtr(2)},
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.ReportResult(context.Background(), final.ID, ReportResultInput{
		Slot1Score: 3, Slot2Score: 2, WinnerSlot: 1,
	})
	require.NoError(t, err)

	assert.True(t, out.PhaseCompleted)
	assert.Nil(t, out.Advanced, "nothing lies beyond the final")

	phase, err := f.phaseRepo.GetByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStatusCompleted, phase.Status)
	assert.NotNil(t, phase.CompletedAt)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultRetriesVersionConflict(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)
	f.setRepo.conflictNext = 1
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 2, Slot2Score: 1, WinnerSlot: 1,
	})
	require.NoError(t, err)
	assert.True(t, out.Set.IsComplete)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)
	f.setRepo.conflictNext = maxVersionRetries
	for i := 0; i < maxVersionRetries; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
	}

	_, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 2, Slot2Score: 1, WinnerSlot: 1,
	})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.ErrorIs(t, err, ErrConflict)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMarkCalledOnlyFromPending(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)
	ctx := context.Background()

	set, err := f.svc.MarkCalled(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStateCalled, set.State)

	_, err = f.svc.MarkCalled(ctx, s1.ID)
	assert.ErrorIs(t, err, ErrSetNotPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkInProgressFromPendingOrCalled(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, s2, _ := fourEntrantBracket(t, f)
	ctx := context.Background()

	// pending -> in_progress skips the called step.
	set, err := f.svc.MarkInProgress(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStateInProgress, set.State)

	_, err = f.svc.MarkCalled(ctx, s2.ID)
	require.NoError(t, err)
	set, err = f.svc.MarkInProgress(ctx, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStateInProgress, set.State)

	_, err = f.svc.MarkInProgress(ctx, s1.ID)
	assert.ErrorIs(t, err, ErrSetNotStartable)
}

func TestReportResultAcceptedFromAnyPrePlayState(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	ctx := context.Background()
	_, err := f.svc.MarkCalled(ctx, s1.ID)
	require.NoError(t, err)

	out, err := f.svc.ReportResult(ctx, s1.ID, ReportResultInput{Slot1Score: 2, Slot2Score: 1, WinnerSlot: 1})
	require.NoError(t, err)
	assert.True(t, out.Set.IsComplete)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultMirrorsToExternalPlatform(t *testing.T) {
	reporter := &fakeReporter{}
	f := newSetFixture(t, 2, reporter)
	s1 := f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1,
		Slot1:      models.Slot{EntrantID: intPtr(100), SeedNumber: intPtr(1)},
		Slot2:      models.Slot{EntrantID: intPtr(101), SeedNumber: intPtr(2)},
		ExternalID: strPtr("ext-77"),
	})
	f.addSet(t, &models.Set{RoundNumber: 2, OrderInRound: 1})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 3, Slot2Score: 1, WinnerSlot: 1,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"ext-77"}, reporter.reported)
	assert.Equal(t, 100, reporter.lastWinner)
	// Per-game expansion: entrant 1 takes games 1..3, entrant 2 game 4.
	require.Len(t, reporter.lastGames, 4)
	assert.Equal(t, 100, reporter.lastGames[0].WinnerID)
	assert.Equal(t, 100, reporter.lastGames[2].WinnerID)
	assert.Equal(t, 101, reporter.lastGames[3].WinnerID)
	assert.Equal(t, 4, reporter.lastGames[3].GameNumber)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportResultMirrorFailureLeavesLocalStateUntouched(t *testing.T) {
	reporter := &fakeReporter{failAll: true}
	f := newSetFixture(t, 2, reporter)
	s1 := f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1,
		Slot1:      models.Slot{EntrantID: intPtr(100)},
		Slot2:      models.Slot{EntrantID: intPtr(101)},
		ExternalID: strPtr("ext-77"),
	})

	_, err := f.svc.ReportResult(context.Background(), s1.ID, ReportResultInput{
		Slot1Score: 2, Slot2Score: 0, WinnerSlot: 1,
	})
	require.Error(t, err)

	stored, getErr := f.setRepo.GetByID(context.Background(), s1.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.SetStatePending, stored.State)
	assert.False(t, stored.IsComplete)

	// The mirror runs before the transaction; nothing touched the pool.
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// threeRoundChain seeds the completed spine of an 8-entrant bracket:
// (1,1) and (1,2) decided, their winners met in (2,1) which is also
// decided, and the (2,1) winner already waits in the final.
func threeRoundChain(t *testing.T, f *setFixture) (r1s1, r1s2, r2s1, r3s1 *models.Set) {
	r1s1 = f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1,
		Slot1:           models.Slot{EntrantID: intPtr(100), Score: intPtr(2), SeedNumber: intPtr(1)},
		Slot2:           models.Slot{EntrantID: intPtr(101), Score: intPtr(0), SeedNumber: intPtr(8)},
		State:           models.SetStateCompleted,
		IsComplete:      true,
		WinnerEntrantID: intPtr(100),
		LoserEntrantID:  intPtr(101),
	})
	r1s2 = f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 2,
		Slot1:           models.Slot{EntrantID: intPtr(102), Score: intPtr(2), SeedNumber: intPtr(4)},
		Slot2:           models.Slot{EntrantID: intPtr(103), Score: intPtr(1), SeedNumber: intPtr(5)},
		State:           models.SetStateCompleted,
		IsComplete:      true,
		WinnerEntrantID: intPtr(102),
		LoserEntrantID:  intPtr(103),
	})
	r2s1 = f.addSet(t, &models.Set{
		RoundNumber: 2, OrderInRound: 1,
		Slot1:           models.Slot{EntrantID: intPtr(100), Score: intPtr(2), SeedNumber: intPtr(1)},
		Slot2:           models.Slot{EntrantID: intPtr(102), Score: intPtr(1), SeedNumber: intPtr(4)},
		State:           models.SetStateCompleted,
		IsComplete:      true,
		WinnerEntrantID: intPtr(100),
		LoserEntrantID:  intPtr(102),
	})
	r3s1 = f.addSet(t, &models.Set{
		RoundNumber: 3, OrderInRound: 1,
		Slot1: models.Slot{EntrantID: intPtr(100), SeedNumber: intPtr(1)},
	})
	f.phaseRepo.phases[10].Status = models.PhaseStatusInProgress
	return r1s1, r1s2, r2s1, r3s1
}

func TestResetCascadeUnwindsDownstreamResults(t *testing.T) {
	f := newSetFixture(t, 3, nil)
	r1s1, r1s2, r2s1, r3s1 := threeRoundChain(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.Reset(context.Background(), r1s1.ID, true)
	require.NoError(t, err)
	require.Len(t, out.Sets, 3)

	ctx := context.Background()

	// The reset set returns to pending with entrants kept, result wiped.
	got, err := f.setRepo.GetByID(ctx, r1s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStatePending, got.State)
	assert.False(t, got.IsComplete)
	assert.Nil(t, got.WinnerEntrantID)
	assert.Nil(t, got.Slot1.Score)
	require.NotNil(t, got.Slot1.EntrantID)
	assert.Equal(t, 100, *got.Slot1.EntrantID)

	// The round-2 set loses both its result and the stale entrant, while
	// the other feeder's winner stays seated.
	got, err = f.setRepo.GetByID(ctx, r2s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStatePending, got.State)
	assert.False(t, got.IsComplete)
	assert.Nil(t, got.WinnerEntrantID)
	assert.Nil(t, got.Slot1.EntrantID)
	require.NotNil(t, got.Slot2.EntrantID)
	assert.Equal(t, 102, *got.Slot2.EntrantID)

	// The transitively populated final slot is vacated too.
	got, err = f.setRepo.GetByID(ctx, r3s1.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Slot1.EntrantID)
	assert.Equal(t, models.SetStatePending, got.State)

	// The sibling round-1 set is untouched.
	got, err = f.setRepo.GetByID(ctx, r1s2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResetWithoutCascadeTouchesOneSet(t *testing.T) {
	f := newSetFixture(t, 3, nil)
	r1s1, _, r2s1, _ := threeRoundChain(t, f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	out, err := f.svc.Reset(context.Background(), r1s1.ID, false)
	require.NoError(t, err)
	require.Len(t, out.Sets, 1)

	got, err := f.setRepo.GetByID(context.Background(), r2s1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete, "downstream set must stay as-is without cascade")

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResetPendingSetRejected(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	s1, _, _ := fourEntrantBracket(t, f)

	_, err := f.svc.Reset(context.Background(), s1.ID, true)
	assert.ErrorIs(t, err, ErrSetNotResettable)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResetByeSetRejected(t *testing.T) {
	f := newSetFixture(t, 2, nil)
	bye := f.addSet(t, &models.Set{
		RoundNumber: 1, OrderInRound: 1,
		Slot1:           models.Slot{EntrantID: intPtr(100)},
		Slot2:           models.Slot{IsBye: true},
		State:           models.SetStateCompleted,
		IsComplete:      true,
		WinnerEntrantID: intPtr(100),
	})

	_, err := f.svc.Reset(context.Background(), bye.ID, true)
	assert.ErrorIs(t, err, ErrByeSetImmutable)
}

func TestResetOnCompletedPhaseRejected(t *testing.T) {
	f := newSetFixture(t, 3, nil)
	r1s1, _, _, _ := threeRoundChain(t, f)
	f.phaseRepo.phases[10].Status = models.PhaseStatusCompleted
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Reset(context.Background(), r1s1.ID, true)
	assert.ErrorIs(t, err, ErrPhaseCompleted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResetMirrorsToExternalPlatform(t *testing.T) {
	reporter := &fakeReporter{}
	f := newSetFixture(t, 3, reporter)
	r1s1, _, _, _ := threeRoundChain(t, f)

	// Stamp an external ID onto the stored row.
	f.setRepo.sets[r1s1.ID].ExternalID = strPtr("ext-5")
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.Reset(context.Background(), r1s1.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ext-5"}, reporter.resets)
	assert.True(t, reporter.lastCascade)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
