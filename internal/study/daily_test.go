package study

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestDailyIdempotentResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	for i := 0; i < 3; i++ {
		f.card(t, deck, "alice", domain.StatusNew, f.now)
		f.card(t, deck, "alice", domain.StatusReview, f.now.AddDate(0, 0, -i))
	}

	req := StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 2}
	first, err := f.svc.Daily.StartOrResume(ctx, req)
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	second, err := f.svc.Daily.StartOrResume(ctx, req)
	if err != nil {
		t.Fatalf("Second StartOrResume failed: %v", err)
	}

	if first.Resumed || !second.Resumed {
		t.Errorf("Expected create then resume, but got resumed=%v then %v", first.Resumed, second.Resumed)
	}
	if first.Session.ID != second.Session.ID {
		t.Errorf("Expected the same session, but got %s and %s", first.Session.ID, second.Session.ID)
	}
	if !reflect.DeepEqual(ids(first.Cards), ids(second.Cards)) {
		t.Errorf("Expected identical card lists, but got %v and %v", ids(first.Cards), ids(second.Cards))
	}
	if len(first.Cards) != 5 {
		t.Errorf("Expected 3 review and 2 new cards, but got %d", len(first.Cards))
	}
}

func TestDailyQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	var fresh []domain.Card
	for i := 0; i < 50; i++ {
		fresh = append(fresh, f.card(t, deck, "alice", domain.StatusNew, f.now))
	}
	for i := 0; i < 12; i++ {
		f.card(t, deck, "alice", domain.StatusReview, f.now.AddDate(0, 0, -i))
	}
	f.card(t, deck, "alice", domain.StatusLearning, f.now)

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 5})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if n := countStatus(view.Cards, domain.StatusNew); n != 5 {
		t.Errorf("Expected 5 new cards, but got %d", n)
	}
	if n := countStatus(view.Cards, domain.StatusReview); n != 12 {
		t.Errorf("Expected all 12 due review cards, but got %d", n)
	}
	if n := countStatus(view.Cards, domain.StatusLearning); n != 1 {
		t.Errorf("Expected the due learning card, but got %d", n)
	}
	for i, c := range view.Cards[len(view.Cards)-5:] {
		if c.ID != fresh[i].ID {
			t.Errorf("Expected new card %d to be the oldest remaining, but got %s", i, c.ID)
		}
	}

	for _, c := range fresh[:2] {
		_, err := f.svc.Daily.SubmitReview(ctx, SubmitDailyReview{
			UserID: "alice", SessionID: view.Session.ID, CardID: c.ID, Rating: domain.Good, WasMarkedCorrect: true,
		})
		if err != nil {
			t.Fatalf("SubmitReview failed: %v", err)
		}
	}

	resumed, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 50})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if resumed.Session.NewCardsLimit != 5 {
		t.Errorf("Expected the stored limit 5 to survive resume, but got %d", resumed.Session.NewCardsLimit)
	}
	if resumed.NewCardsRemaining != 3 {
		t.Errorf("Expected 3 new cards left in the quota, but got %d", resumed.NewCardsRemaining)
	}
	if n := countStatus(resumed.Cards, domain.StatusNew); n != 3 {
		t.Errorf("Expected 3 new cards after introducing 2, but got %d", n)
	}
}

func TestDailyQuotaIsPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	for i := 0; i < 10; i++ {
		f.card(t, deck, "alice", domain.StatusNew, f.now)
	}

	introduced := 0
	for round := 0; round < 3; round++ {
		view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 2})
		if err != nil {
			t.Fatalf("Round %d: StartOrResume failed: %v", round, err)
		}
		if view.Resumed {
			t.Fatalf("Round %d: expected a fresh session after ending the last one", round)
		}
		for _, c := range view.Cards {
			if c.LearningStatus != domain.StatusNew {
				continue
			}
			_, err := f.svc.Daily.SubmitReview(ctx, SubmitDailyReview{
				UserID: "alice", SessionID: view.Session.ID, CardID: c.ID, Rating: domain.Good, WasMarkedCorrect: true,
			})
			if err != nil {
				t.Fatalf("Round %d: SubmitReview failed: %v", round, err)
			}
			introduced++
		}
		if round > 0 && view.NewCardsRemaining != 0 {
			t.Errorf("Round %d: expected the day's quota to be spent, but got %d remaining", round, view.NewCardsRemaining)
		}
		if _, err := f.svc.Daily.End(ctx, "alice", view.Session.ID); err != nil {
			t.Fatalf("Round %d: End failed: %v", round, err)
		}
		f.now = f.now.Add(time.Minute)
	}
	if introduced != 2 {
		t.Errorf("Expected 2 new cards introduced on one day, but got %d", introduced)
	}

	f.now = f.now.AddDate(0, 0, 1)
	tomorrow, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 2})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if tomorrow.NewCardsRemaining != 2 || countStatus(tomorrow.Cards, domain.StatusNew) != 2 {
		t.Errorf("Expected a fresh quota of 2 the next day, but got %d remaining and %d new cards",
			tomorrow.NewCardsRemaining, countStatus(tomorrow.Cards, domain.StatusNew))
	}
}

func TestDailyGraduationAndLapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	graduating := f.card(t, deck, "alice", domain.StatusNew, f.now)
	lapsing := f.card(t, deck, "alice", domain.StatusNew, f.now)

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	submit := func(cardID string, rating domain.Rating, correct bool) *DailyReviewResult {
		t.Helper()
		res, err := f.svc.Daily.SubmitReview(ctx, SubmitDailyReview{
			UserID: "alice", SessionID: view.Session.ID, CardID: cardID, Rating: rating, WasMarkedCorrect: correct,
		})
		if err != nil {
			t.Fatalf("SubmitReview failed: %v", err)
		}
		return res
	}

	steps := []struct {
		status    domain.LearningStatus
		correct   int
		graduated bool
	}{
		{domain.StatusLearning, 1, false},
		{domain.StatusLearning, 2, false},
		{domain.StatusReview, 3, true},
	}
	for i, step := range steps {
		res := submit(graduating.ID, domain.Good, true)
		if res.Card.LearningStatus != step.status || res.Card.CorrectCount != step.correct || res.Graduated != step.graduated {
			t.Errorf("Review %d: expected %s/%d/%v, but got %s/%d/%v", i+1,
				step.status, step.correct, step.graduated,
				res.Card.LearningStatus, res.Card.CorrectCount, res.Graduated)
		}
	}

	submit(lapsing.ID, domain.Easy, true)
	submit(lapsing.ID, domain.Good, true)
	res := submit(lapsing.ID, domain.Again, true)
	if res.Card.LearningStatus != domain.StatusLearning || res.Card.CorrectCount != 0 {
		t.Errorf("Expected a lapse to reset progress in learning, but got %s/%d", res.Card.LearningStatus, res.Card.CorrectCount)
	}
	if res.Card.RepetitionCount != 0 || res.Card.Interval != 1 {
		t.Errorf("Expected again to reset the schedule, but got repetitions %d interval %d", res.Card.RepetitionCount, res.Card.Interval)
	}

	session := res.Session
	if session.CardsStudied != 6 || session.CardsLearned != 1 || session.NewCardsToday != 6 || session.ReviewCardsToday != 0 {
		t.Errorf("Unexpected counters: studied %d learned %d new %d review %d",
			session.CardsStudied, session.CardsLearned, session.NewCardsToday, session.ReviewCardsToday)
	}

	stored, err := f.db.GetDailySession(ctx, view.Session.ID)
	if err != nil {
		t.Fatalf("GetDailySession failed: %v", err)
	}
	if stored.CardsStudied != 6 || stored.CardsLearned != 1 {
		t.Errorf("Expected stored counters 6/1, but got %d/%d", stored.CardsStudied, stored.CardsLearned)
	}

	// A graduated card counts toward the review bucket and never re-graduates.
	res = submit(graduating.ID, domain.Good, true)
	if res.Graduated || res.Session.ReviewCardsToday != 1 || res.Session.CardsLearned != 1 {
		t.Errorf("Expected a plain review, but got graduated=%v review=%d learned=%d",
			res.Graduated, res.Session.ReviewCardsToday, res.Session.CardsLearned)
	}
}

func TestDailyLessonOverrides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	requested := f.deck(t, "alice")
	saved := f.deck(t, "alice")
	for i := 0; i < 4; i++ {
		f.card(t, saved, "alice", domain.StatusNew, f.now)
	}

	lesson, err := f.svc.Lessons.Create(ctx, "alice", LessonInput{Name: "Evenings", DeckIDs: []string{saved}, DailyNewCardsLimit: 2})
	if err != nil {
		t.Fatalf("Create lesson failed: %v", err)
	}

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{
		UserID: "alice", DeckIDs: []string{requested}, DailyNewCardsLimit: 50, LessonID: lesson.ID,
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if !reflect.DeepEqual(view.Session.DeckIDs, []string{saved}) {
		t.Errorf("Expected the lesson's decks, but got %v", view.Session.DeckIDs)
	}
	if view.Session.NewCardsLimit != 2 || len(view.Cards) != 2 {
		t.Errorf("Expected the lesson's limit of 2, but got limit %d with %d cards", view.Session.NewCardsLimit, len(view.Cards))
	}
	if view.Session.LessonID == nil || *view.Session.LessonID != lesson.ID {
		t.Errorf("Expected the session to reference lesson %s", lesson.ID)
	}

	_, err = f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "bob", LessonID: lesson.ID})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for someone else's lesson, but got %v", err)
	}
}

func TestDailyStartValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")

	testCases := []struct {
		name     string
		req      StartDailyRequest
		expected error
	}{
		{"missing user", StartDailyRequest{DeckIDs: []string{deck}}, domain.ErrUnauthorized},
		{"limit above maximum", StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: 101}, domain.ErrInvalidArgument},
		{"negative limit", StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}, DailyNewCardsLimit: -1}, domain.ErrInvalidArgument},
		{"no decks", StartDailyRequest{UserID: "alice"}, domain.ErrInvalidArgument},
		{"unknown deck", StartDailyRequest{UserID: "alice", DeckIDs: []string{"nope"}}, domain.ErrNotFound},
		{"unknown lesson", StartDailyRequest{UserID: "alice", LessonID: "nope"}, domain.ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Daily.StartOrResume(ctx, tc.req)
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, but got %v", tc.expected, err)
			}
		})
	}

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if view.Session.NewCardsLimit != DefaultNewCardsLimit {
		t.Errorf("Expected the default limit %d, but got %d", DefaultNewCardsLimit, view.Session.NewCardsLimit)
	}
}

func TestDailyEmptyList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	f.card(t, deck, "alice", domain.StatusReview, f.now.AddDate(0, 0, 3))

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("Expected an empty session to start, but got %v", err)
	}
	if len(view.Cards) != 0 || !view.CanEnd {
		t.Errorf("Expected no cards and CanEnd, but got %d cards and CanEnd=%v", len(view.Cards), view.CanEnd)
	}
	if view.Session.Day != f.today() {
		t.Errorf("Expected session day %s, but got %s", f.today(), view.Session.Day)
	}
}

func TestDailyEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	card := f.card(t, deck, "alice", domain.StatusNew, f.now)

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if _, err := f.svc.Daily.End(ctx, "bob", view.Session.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound ending someone else's session, but got %v", err)
	}

	f.now = f.now.Add(10 * time.Minute)
	res, err := f.svc.Daily.End(ctx, "alice", view.Session.ID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if res.Duration < 10*time.Minute {
		t.Errorf("Expected at least 10 minutes, but got %v", res.Duration)
	}
	if _, err := f.svc.Daily.End(ctx, "alice", view.Session.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState when ending twice, but got %v", err)
	}
	_, err = f.svc.Daily.SubmitReview(ctx, SubmitDailyReview{UserID: "alice", SessionID: view.Session.ID, CardID: card.ID, Rating: domain.Good})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState reviewing into an ended session, but got %v", err)
	}

	next, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume after end failed: %v", err)
	}
	if next.Resumed || next.Session.ID == view.Session.ID {
		t.Error("Expected a fresh session after ending today's")
	}
}

func TestDailyNewDayStartsNewSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")

	first, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	f.now = f.now.AddDate(0, 0, 1)
	second, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if second.Session.ID == first.Session.ID || second.Session.Day == first.Session.Day {
		t.Errorf("Expected a new session for the next day, but got %s on %s", second.Session.ID, second.Session.Day)
	}
}

func TestDailyConcurrentSubmitConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deck := f.deck(t, "alice")
	card := f.card(t, deck, "alice", domain.StatusNew, f.now)

	view, err := f.svc.Daily.StartOrResume(ctx, StartDailyRequest{UserID: "alice", DeckIDs: []string{deck}})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	var reads sync.WaitGroup
	reads.Add(2)
	racing := NewDailySessions(&barrierRepo{Repository: f.db, reads: &reads}, Options{Now: func() time.Time { return f.now }})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = racing.SubmitReview(ctx, SubmitDailyReview{
				UserID: "alice", SessionID: view.Session.ID, CardID: card.ID, Rating: domain.Good, WasMarkedCorrect: true,
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("Expected one success and one conflict, but got %d and %d", ok, conflicts)
	}

	stored := f.reload(t, card.ID)
	if stored.Version != card.Version+1 || stored.CorrectCount != 1 || stored.LearningStatus != domain.StatusLearning {
		t.Errorf("Expected exactly one applied answer, but got version %d correct %d status %s",
			stored.Version, stored.CorrectCount, stored.LearningStatus)
	}
	session, err := f.db.GetDailySession(ctx, view.Session.ID)
	if err != nil {
		t.Fatalf("GetDailySession failed: %v", err)
	}
	if session.CardsStudied != 1 || session.NewCardsToday != 1 || session.ReviewCardsToday != 0 {
		t.Errorf("Expected counters 1/1/0 from the winning answer only, but got %d/%d/%d",
			session.CardsStudied, session.NewCardsToday, session.ReviewCardsToday)
	}
	history, err := f.svc.Daily.History(ctx, "alice", view.Session.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected one review record, but got %d", len(history))
	}
}
