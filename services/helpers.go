package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/Dosada05/club-ladder/events"
	"github.com/Dosada05/club-ladder/models"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	DB          *sql.DB
	Logger      *slog.Logger
	Publisher   events.Publisher
	Cache       *StandingsCache
	Clock       Clock
	CallTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Cache == nil {
		d.Cache = NewStandingsCache(0, d.Clock)
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = 5 * time.Second
	}
	return d
}

// callContext bounds one repository round trip.
func (d Deps) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.CallTimeout)
}

func (d Deps) publish(ctx context.Context, seasonID int, action string, topics ...events.Topic) {
	evs := make([]events.Event, len(topics))
	now := d.Clock.Now().UTC()
	for i, t := range topics {
		evs[i] = events.Event{Topic: t, SeasonID: seasonID, Action: action, At: now}
	}
	d.Publisher.Publish(ctx, evs...)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, logger *slog.Logger, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.ErrorContext(ctx, "Rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// today truncates to the calendar date in UTC.
func today(clock Clock) time.Time {
	y, m, d := clock.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

// rankOf sorts unranked players after ranked ones.
func rankOf(sp *models.SeasonPlayer) int {
	if sp.Rank == nil {
		return math.MaxInt
	}
	return *sp.Rank
}
