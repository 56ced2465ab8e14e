package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/club-ladder/repositories"
)

// Kind is a stable error category callers can switch on without parsing
// messages. Only KindTransient is worth retrying.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindConstraint     Kind = "constraint"
	KindPartialFailure Kind = "partial_failure"
	KindTransient      Kind = "transient"
	KindInternal       Kind = "internal"
)

// Общие ошибки сервисного слоя.
var (
	ErrNotEnoughPlayers  = errors.New("not enough available players")
	ErrTooManyPlayers    = errors.New("too many available players for one match week")
	ErrNoValidLayout     = errors.New("no court layout fits the available players")
	ErrInvalidLayout     = errors.New("court layout does not fit the available players")
	ErrSeasonNotActive   = errors.New("season is not active")
	ErrMatchDateRequired = errors.New("match date is required")
	ErrFixturesExist     = errors.New("fixtures already generated for this match")
	ErrInvalidScore      = errors.New("scores must be non-negative and not both zero")
	ErrInvalidSeasonType = errors.New("invalid season type")
	ErrSeasonNameMissing = errors.New("season name is required")
	ErrInvalidRating     = errors.New("rating parameters must be positive")
	ErrScoreConflict     = errors.New("submitted score conflicts with the recorded result")
	ErrInvalidRunID      = errors.New("run id must be a UUID")
)

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func validationError(op string, err error, format string, args ...interface{}) *Error {
	if format == "" {
		return newError(KindValidation, op, err)
	}
	return newError(KindValidation, op, fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...))
}

// CascadeError reports a season deletion that stopped at Step. Nothing the
// cascade wrote before Step was committed.
type CascadeError struct {
	RunID     string
	SeasonID  int
	Step      string
	Completed []string
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("season %d deletion (run %s) failed at step %q after [%s]: %v",
		e.SeasonID, e.RunID, e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

func (e *CascadeError) Kind() Kind {
	if isTransient(e.Err) {
		return KindTransient
	}
	if errors.Is(e.Err, repositories.ErrReferencedRowsRemain) {
		return KindConstraint
	}
	return KindPartialFailure
}

func isTransient(err error) bool {
	return errors.Is(err, repositories.ErrSerializationFailure) ||
		errors.Is(err, repositories.ErrSeasonPlayerStale) ||
		errors.Is(err, context.DeadlineExceeded)
}

// KindOf classifies any error returned by this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var cascadeErr *CascadeError
	if errors.As(err, &cascadeErr) {
		return cascadeErr.Kind()
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	if isTransient(err) {
		return KindTransient
	}
	return KindInternal
}

// IsRetryable reports whether retrying the same call may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// handleRepositoryError maps repository sentinels onto service kinds.
func handleRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrSeasonNotFound),
		errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrFixtureNotFound),
		errors.Is(err, repositories.ErrResultNotFound),
		errors.Is(err, repositories.ErrSeasonPlayerNotFound):
		return newError(KindNotFound, op, err)
	case errors.Is(err, repositories.ErrMatchWeekConflict),
		errors.Is(err, repositories.ErrSeasonPlayerConflict):
		return newError(KindConflict, op, err)
	case errors.Is(err, repositories.ErrReferencedRowsRemain):
		return newError(KindConstraint, op, err)
	case isTransient(err):
		return newError(KindTransient, op, err)
	}
	return newError(KindInternal, op, err)
}
