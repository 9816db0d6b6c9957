package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/internal/popup"
)

const dateLayout = "2006-01-02"

// Message shown when the reminder fires.
const Message = "已經晚上八點囉，快來看看附近的即期特價商品吧！"

// FlagStore persists the shown-today flag per session.
type FlagStore interface {
	ReminderShownDate(ctx context.Context, sessionID string) (string, error)
	MarkReminderShown(ctx context.Context, sessionID, date string) error
}

// Scheduler fires the friendly-hour reminder once per day at the configured
// wall-clock time. It always arms a one-shot timer for the next occurrence
// and re-arms after each firing, so clock drift and DST shifts are absorbed
// on every cycle.
type Scheduler struct {
	logger    *zap.Logger
	store     FlagStore
	popup     *popup.Popup
	sessionID string

	hour, minute, second int
	catchup              time.Duration

	now func() time.Time
}

// New creates a Scheduler. at is the daily fire time, catchup the delay
// before the startup check for an already-passed fire time.
func New(logger *zap.Logger, store FlagStore, pp *popup.Popup, sessionID string, at time.Time, catchup time.Duration) *Scheduler {
	return &Scheduler{
		logger:    logger,
		store:     store,
		popup:     pp,
		sessionID: sessionID,
		hour:      at.Hour(),
		minute:    at.Minute(),
		second:    at.Second(),
		catchup:   catchup,
		now:       time.Now,
	}
}

// NextDelay returns how long to wait from now until the next fire time. If
// the fire time has already passed today the next occurrence is tomorrow.
func (s *Scheduler) NextDelay(now time.Time) time.Duration {
	target := time.Date(now.Year(), now.Month(), now.Day(),
		s.hour, s.minute, s.second, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now)
}

// Run blocks until ctx is done, firing the reminder at each occurrence.
// If the process starts after today's fire time and the reminder has not
// been shown yet, a catch-up firing happens shortly after startup.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.now()
	target := time.Date(now.Year(), now.Month(), now.Day(),
		s.hour, s.minute, s.second, 0, now.Location())
	if !now.Before(target) {
		catchup := time.NewTimer(s.catchup)
		select {
		case <-catchup.C:
			s.fire(ctx)
		case <-ctx.Done():
			catchup.Stop()
			return
		}
	}

	for {
		timer := time.NewTimer(s.NextDelay(s.now()))
		select {
		case <-timer.C:
			s.fire(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// fire shows the reminder unless it was already shown today.
func (s *Scheduler) fire(ctx context.Context) {
	today := s.now().Format(dateLayout)

	shown, err := s.store.ReminderShownDate(ctx, s.sessionID)
	if err != nil {
		s.logger.Warn("reminder.flag_read_failed", zap.Error(err))
	}
	if shown == today {
		return
	}

	if err := s.store.MarkReminderShown(ctx, s.sessionID, today); err != nil {
		s.logger.Warn("reminder.flag_write_failed", zap.Error(err))
	}

	metrics.RemindersShownTotal.Inc()
	s.logger.Info("reminder.shown",
		zap.String("session", s.sessionID),
		zap.String("date", today))
	s.popup.ShowReminder(Message)
}

// Dismiss hides the reminder. The shown-today flag stays set, so the
// reminder will not come back until tomorrow.
func (s *Scheduler) Dismiss() {
	s.popup.Hide()
}
