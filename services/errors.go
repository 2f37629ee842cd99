package services

import (
	"errors"
	"fmt"
)

// Корневые категории ошибок; конкретные ошибки ниже оборачивают их через %w,
// так что errors.Is работает и по категории, и по конкретной ошибке.
var (
	ErrNotFound          = errors.New("requested resource not found")
	ErrValidationFailed  = errors.New("validation failed")
	ErrConflict          = errors.New("resource conflict")
	ErrInvalidTransition = errors.New("illegal state transition")
)

// Not found.
var (
	ErrEventNotFound   = fmt.Errorf("%w: event", ErrNotFound)
	ErrPhaseNotFound   = fmt.Errorf("%w: phase", ErrNotFound)
	ErrSeedingNotFound = fmt.Errorf("%w: seeding", ErrNotFound)
	ErrSetNotFound     = fmt.Errorf("%w: set", ErrNotFound)
)

// Validation and business rules.
var (
	ErrSeedListInvalid        = fmt.Errorf("%w: seed numbers must be unique integers 1..N with no gaps", ErrValidationFailed)
	ErrSeedingNotFinal        = fmt.Errorf("%w: seeding must be finalized before bracket generation", ErrValidationFailed)
	ErrNotEnoughEntrants      = fmt.Errorf("%w: at least 2 entrants are required", ErrValidationFailed)
	ErrUnsupportedBracketType = fmt.Errorf("%w: unsupported bracket type", ErrValidationFailed)
	ErrSlotNotPopulated       = fmt.Errorf("%w: both slots must hold an entrant before a result can be reported", ErrValidationFailed)
	ErrByeSetNotReportable    = fmt.Errorf("%w: bye sets resolve automatically and cannot be reported", ErrValidationFailed)
	ErrWinnerSlotInvalid      = fmt.Errorf("%w: winner slot must be 1 or 2", ErrValidationFailed)
	ErrWinnerScoreMismatch    = fmt.Errorf("%w: winner slot cannot hold the lower score", ErrValidationFailed)
	ErrScoreNegative          = fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	ErrPhaseNotBracket        = fmt.Errorf("%w: phase does not hold a bracket", ErrValidationFailed)
)

// Conflicts.
var (
	ErrBracketAlreadyGenerated = fmt.Errorf("%w: bracket already generated for this phase", ErrConflict)
	ErrConcurrentUpdate        = fmt.Errorf("%w: concurrent update, please retry", ErrConflict)
	ErrGenerationInFlight      = fmt.Errorf("%w: bracket generation already in progress", ErrConflict)
)

// Illegal state transitions.
var (
	ErrSeedingFinalized   = fmt.Errorf("%w: seeding is finalized and can no longer be edited", ErrInvalidTransition)
	ErrSetNotPending      = fmt.Errorf("%w: set can only be called from pending", ErrInvalidTransition)
	ErrSetNotStartable    = fmt.Errorf("%w: set can only be started from pending or called", ErrInvalidTransition)
	ErrSetAlreadyComplete = fmt.Errorf("%w: set is already completed", ErrInvalidTransition)
	ErrSetNotResettable   = fmt.Errorf("%w: pending sets have nothing to reset", ErrInvalidTransition)
	ErrByeSetImmutable    = fmt.Errorf("%w: bye sets resolve automatically and cannot be reset", ErrInvalidTransition)
	ErrPhaseCompleted     = fmt.Errorf("%w: phase is completed and immutable", ErrInvalidTransition)
)
