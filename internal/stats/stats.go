// Package stats summarises a user's study progress for the dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/logger"
)

// MonthDays is the length of the trailing window counted by StudyDaysLastMonth, today included.
const MonthDays = 30

// Reader is the read-only storage surface the aggregator needs.
type Reader interface {
	CountCardsByStatus(ctx context.Context, userID string) (map[domain.LearningStatus]int, error)
	CountDueStudiedCards(ctx context.Context, userID, asOf string) (int, error)
	CountGraduatedOn(ctx context.Context, userID, day string) (int, error)
	ActivityDays(ctx context.Context, userID, through string) ([]string, error)
	GetActiveDailySession(ctx context.Context, userID, day string) (*domain.DailySession, error)
}

// DailyStats is the dashboard summary for one user on one day.
type DailyStats struct {
	CardsToLearn       int
	CardsInProgress    int
	CardsLearnedTotal  int
	CardsLearnedToday  int
	CardsDueToday      int
	StudyDaysLastMonth int
	CurrentStreak      int
	// LastStudyDate is the most recent activity day, empty if there is none.
	LastStudyDate string
	ActiveSession *domain.DailySession
}

type Aggregator struct {
	repo Reader
	now  func() time.Time
	loc  *time.Location
	log  *logger.Logger
}

// New returns an aggregator. now and loc decide the current calendar day; nil values mean
// time.Now and UTC.
func New(repo Reader, now func() time.Time, loc *time.Location, log *logger.Logger) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{repo: repo, now: now, loc: loc, log: log}
}

// Daily computes the user's statistics. Storage failures are logged and yield the zero
// DailyStats instead of an error; only a missing user is reported.
func (a *Aggregator) Daily(ctx context.Context, userID string) (DailyStats, error) {
	if userID == "" {
		return DailyStats{}, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	today := domain.Day(a.now().In(a.loc))
	day := domain.DayString(today)

	var (
		byStatus map[domain.LearningStatus]int
		due      int
		learned  int
		days     []string
		active   *domain.DailySession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byStatus, err = a.repo.CountCardsByStatus(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		due, err = a.repo.CountDueStudiedCards(gctx, userID, day)
		return err
	})
	g.Go(func() (err error) {
		learned, err = a.repo.CountGraduatedOn(gctx, userID, day)
		return err
	})
	g.Go(func() (err error) {
		days, err = a.repo.ActivityDays(gctx, userID, day)
		return err
	})
	g.Go(func() (err error) {
		active, err = a.repo.GetActiveDailySession(gctx, userID, day)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Warn("daily stats unavailable, returning zeros", "user_id", userID, "error", err)
		return DailyStats{}, nil
	}

	s := DailyStats{
		CardsToLearn:      byStatus[domain.StatusNew],
		CardsInProgress:   byStatus[domain.StatusLearning],
		CardsLearnedTotal: byStatus[domain.StatusReview] + byStatus[domain.StatusLearned],
		CardsLearnedToday: learned,
		CardsDueToday:     due,
		ActiveSession:     active,
	}
	if len(days) > 0 {
		s.LastStudyDate = days[0]
	}
	s.StudyDaysLastMonth = daysSince(days, today.AddDate(0, 0, -(MonthDays-1)))
	s.CurrentStreak = streak(days, today)
	return s, nil
}

// daysSince counts the days on or after from. days is sorted newest first.
func daysSince(days []string, from time.Time) int {
	cutoff := domain.DayString(from)
	n := 0
	for _, d := range days {
		if d < cutoff {
			break
		}
		n++
	}
	return n
}

// streak counts consecutive active days ending today. A day without activity,
// today included, ends the streak.
func streak(days []string, today time.Time) int {
	n := 0
	expected := today
	for _, d := range days {
		if d != domain.DayString(expected) {
			break
		}
		n++
		expected = expected.AddDate(0, 0, -1)
	}
	return n
}
