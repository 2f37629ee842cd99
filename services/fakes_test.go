package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/bracket-engine/integration"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// In-memory repository fakes. They mirror the postgres repositories'
// contracts (sentinel errors, version stamps, draft guards) so services can
// be exercised without a database.

type fakePhaseRepo struct {
	nextID int
	phases map[int]*models.Phase
}

func newFakePhaseRepo() *fakePhaseRepo {
	return &fakePhaseRepo{nextID: 1, phases: map[int]*models.Phase{}}
}

func (r *fakePhaseRepo) add(phase *models.Phase) *models.Phase {
	if phase.ID == 0 {
		phase.ID = r.nextID
	}
	if phase.ID >= r.nextID {
		r.nextID = phase.ID + 1
	}
	r.phases[phase.ID] = copyPhase(phase)
	return phase
}

func copyPhase(p *models.Phase) *models.Phase {
	c := *p
	c.Participants = append([]models.PhaseParticipant(nil), p.Participants...)
	c.Sets = nil
	c.Seeding = nil
	return &c
}

func (r *fakePhaseRepo) Create(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase) error {
	phase.CreatedAt = time.Now().UTC()
	r.add(phase)
	return nil
}

func (r *fakePhaseRepo) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	p, ok := r.phases[id]
	if !ok {
		return nil, repositories.ErrPhaseNotFound
	}
	return copyPhase(p), nil
}

func (r *fakePhaseRepo) GetByEventAndID(ctx context.Context, eventID, phaseID int) (*models.Phase, error) {
	p, ok := r.phases[phaseID]
	if !ok || p.EventID != eventID {
		return nil, repositories.ErrPhaseNotFound
	}
	return copyPhase(p), nil
}

func (r *fakePhaseRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Phase, error) {
	return r.GetByID(ctx, id)
}

func (r *fakePhaseRepo) UpdateBracketMetadata(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase) error {
	if _, ok := r.phases[phase.ID]; !ok {
		return repositories.ErrPhaseNotFound
	}
	r.phases[phase.ID] = copyPhase(phase)
	return nil
}

func (r *fakePhaseRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.PhaseStatus, startedAt, completedAt *time.Time) error {
	p, ok := r.phases[id]
	if !ok {
		return repositories.ErrPhaseNotFound
	}
	if p.Status == models.PhaseStatusCompleted {
		return repositories.ErrPhaseAlreadyCompleted
	}
	p.Status = status
	if startedAt != nil {
		p.StartedAt = startedAt
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	return nil
}

type fakeSeedingRepo struct {
	nextID   int
	seedings map[int]*models.Seeding
}

func newFakeSeedingRepo() *fakeSeedingRepo {
	return &fakeSeedingRepo{nextID: 1, seedings: map[int]*models.Seeding{}}
}

func (r *fakeSeedingRepo) add(s *models.Seeding) *models.Seeding {
	if s.ID == 0 {
		s.ID = r.nextID
	}
	if s.ID >= r.nextID {
		r.nextID = s.ID + 1
	}
	r.seedings[s.ID] = copySeeding(s)
	return s
}

func copySeeding(s *models.Seeding) *models.Seeding {
	c := *s
	c.Entries = append([]models.SeedEntry(nil), s.Entries...)
	return &c
}

func (r *fakeSeedingRepo) Create(ctx context.Context, exec repositories.SQLExecutor, seeding *models.Seeding) error {
	for _, existing := range r.seedings {
		if existing.EventID == seeding.EventID && existing.PhaseID == seeding.PhaseID {
			return repositories.ErrSeedingConflict
		}
	}
	seeding.CreatedAt = time.Now().UTC()
	seeding.UpdatedAt = seeding.CreatedAt
	r.add(seeding)
	return nil
}

func (r *fakeSeedingRepo) GetByPhase(ctx context.Context, eventID, phaseID int) (*models.Seeding, error) {
	for _, s := range r.seedings {
		if s.EventID == eventID && s.PhaseID == phaseID {
			return copySeeding(s), nil
		}
	}
	return nil, repositories.ErrSeedingNotFound
}

func (r *fakeSeedingRepo) UpdateEntries(ctx context.Context, exec repositories.SQLExecutor, id int, entries []models.SeedEntry) error {
	s, ok := r.seedings[id]
	// The postgres repository guards with status = 'draft' and reports a
	// finalized row the same way as a missing one.
	if !ok || s.Status != models.SeedingStatusDraft {
		return repositories.ErrSeedingNotFound
	}
	s.Entries = append([]models.SeedEntry(nil), entries...)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeSeedingRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.SeedingStatus) error {
	s, ok := r.seedings[id]
	if !ok {
		return repositories.ErrSeedingNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

type fakeSetRepo struct {
	nextID int
	sets   map[int]*models.Set
	// conflictNext makes the next N Update calls fail with a version
	// conflict, for retry-path tests.
	conflictNext int
}

func newFakeSetRepo() *fakeSetRepo {
	return &fakeSetRepo{nextID: 1, sets: map[int]*models.Set{}}
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copySlot(s models.Slot) models.Slot {
	return models.Slot{
		EntrantID:  copyIntPtr(s.EntrantID),
		Score:      copyIntPtr(s.Score),
		SeedNumber: copyIntPtr(s.SeedNumber),
		IsBye:      s.IsBye,
	}
}

func copySet(s *models.Set) *models.Set {
	c := *s
	c.Slot1 = copySlot(s.Slot1)
	c.Slot2 = copySlot(s.Slot2)
	c.WinnerEntrantID = copyIntPtr(s.WinnerEntrantID)
	c.LoserEntrantID = copyIntPtr(s.LoserEntrantID)
	c.ExternalID = copyStringPtr(s.ExternalID)
	return &c
}

func (r *fakeSetRepo) Create(ctx context.Context, exec repositories.SQLExecutor, set *models.Set) error {
	for _, existing := range r.sets {
		if existing.PhaseID == set.PhaseID &&
			existing.RoundNumber == set.RoundNumber &&
			existing.OrderInRound == set.OrderInRound {
			return repositories.ErrSetPositionConflict
		}
	}
	set.ID = r.nextID
	r.nextID++
	set.Version = 1
	set.CreatedAt = time.Now().UTC()
	r.sets[set.ID] = copySet(set)
	return nil
}

func (r *fakeSetRepo) GetByID(ctx context.Context, id int) (*models.Set, error) {
	s, ok := r.sets[id]
	if !ok {
		return nil, repositories.ErrSetNotFound
	}
	return copySet(s), nil
}

func (r *fakeSetRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Set, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeSetRepo) GetByPosition(ctx context.Context, exec repositories.SQLExecutor, phaseID, roundNumber, orderInRound int) (*models.Set, error) {
	for _, s := range r.sets {
		if s.PhaseID == phaseID && s.RoundNumber == roundNumber && s.OrderInRound == orderInRound {
			return copySet(s), nil
		}
	}
	return nil, repositories.ErrSetNotFound
}

func (r *fakeSetRepo) ListByPhase(ctx context.Context, phaseID int) ([]*models.Set, error) {
	var out []*models.Set
	for _, s := range r.sets {
		if s.PhaseID == phaseID {
			out = append(out, copySet(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].OrderInRound < out[j].OrderInRound
	})
	return out, nil
}

func (r *fakeSetRepo) CountByPhase(ctx context.Context, exec repositories.SQLExecutor, phaseID int) (int, error) {
	count := 0
	for _, s := range r.sets {
		if s.PhaseID == phaseID {
			count++
		}
	}
	return count, nil
}

func (r *fakeSetRepo) Update(ctx context.Context, exec repositories.SQLExecutor, set *models.Set) error {
	if r.conflictNext > 0 {
		r.conflictNext--
		return repositories.ErrSetVersionConflict
	}
	stored, ok := r.sets[set.ID]
	if !ok {
		return repositories.ErrSetNotFound
	}
	if stored.Version != set.Version {
		return repositories.ErrSetVersionConflict
	}
	c := copySet(set)
	c.Version++
	r.sets[set.ID] = c
	set.Version++
	return nil
}

type fakeEntrantRepo struct {
	entrants []*models.Entrant
}

func (r *fakeEntrantRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.Entrant, error) {
	var out []*models.Entrant
	for _, e := range r.entrants {
		if e.EventID == eventID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeEntrantRepo) GetByID(ctx context.Context, id int) (*models.Entrant, error) {
	for _, e := range r.entrants {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, repositories.ErrEntrantNotFound
}

type fakeLeaseRepo struct {
	nextToken int
	held      map[string]string
}

func newFakeLeaseRepo() *fakeLeaseRepo {
	return &fakeLeaseRepo{held: map[string]string{}}
}

func (r *fakeLeaseRepo) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, ok := r.held[key]; ok {
		return "", repositories.ErrLeaseHeld
	}
	r.nextToken++
	token := fmt.Sprintf("token-%d", r.nextToken)
	r.held[key] = token
	return token, nil
}

func (r *fakeLeaseRepo) Release(ctx context.Context, key, token string) error {
	if r.held[key] == token {
		delete(r.held, key)
	}
	return nil
}

// fakeReporter records mirror calls and optionally fails them.
type fakeReporter struct {
	failAll     bool
	reported    []string
	resets      []string
	called      []string
	inProgress  []string
	lastWinner  int
	lastGames   []integration.GameResult
	lastCascade bool
}

func (r *fakeReporter) err() error {
	if r.failAll {
		return fmt.Errorf("%w: platform is down", integration.ErrReporterUnavailable)
	}
	return nil
}

func (r *fakeReporter) ReportResult(ctx context.Context, externalSetID string, winnerID int, games []integration.GameResult) (*integration.SetMutationResponse, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	r.reported = append(r.reported, externalSetID)
	r.lastWinner = winnerID
	r.lastGames = games
	return &integration.SetMutationResponse{ID: externalSetID, State: "completed"}, nil
}

func (r *fakeReporter) ResetResult(ctx context.Context, externalSetID string, cascade bool) (*integration.SetMutationResponse, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	r.resets = append(r.resets, externalSetID)
	r.lastCascade = cascade
	return &integration.SetMutationResponse{ID: externalSetID, State: "pending"}, nil
}

func (r *fakeReporter) MarkCalled(ctx context.Context, externalSetID string) (*integration.SetMutationResponse, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	r.called = append(r.called, externalSetID)
	return &integration.SetMutationResponse{ID: externalSetID, State: "called"}, nil
}

func (r *fakeReporter) MarkInProgress(ctx context.Context, externalSetID string) (*integration.SetMutationResponse, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	r.inProgress = append(r.inProgress, externalSetID)
	return &integration.SetMutationResponse{ID: externalSetID, State: "in_progress"}, nil
}
