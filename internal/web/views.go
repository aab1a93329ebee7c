package web

import (
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/stats"
	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/conorfennell/knolstudy/internal/sync"
)

type cardJSON struct {
	ID              string     `json:"id"`
	DeckID          string     `json:"deck_id"`
	Question        string     `json:"question"`
	Answer          string     `json:"answer"`
	Context         string     `json:"context,omitempty"`
	EaseFactor      float64    `json:"ease_factor"`
	Interval        int        `json:"interval"`
	RepetitionCount int        `json:"repetition_count"`
	NextReviewDate  string     `json:"next_review_date"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at"`
	LearningStatus  string     `json:"learning_status"`
	CorrectCount    int        `json:"correct_count"`
}

func toCard(c domain.Card) cardJSON {
	return cardJSON{
		ID:              c.ID,
		DeckID:          c.DeckID,
		Question:        c.Question,
		Answer:          c.Answer,
		Context:         c.Context,
		EaseFactor:      c.EaseFactor,
		Interval:        c.Interval,
		RepetitionCount: c.RepetitionCount,
		NextReviewDate:  domain.DayString(c.NextReviewDate),
		LastReviewedAt:  c.LastReviewedAt,
		LearningStatus:  string(c.LearningStatus),
		CorrectCount:    c.CorrectCount,
	}
}

func toCards(cards []domain.Card) []cardJSON {
	out := make([]cardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCard(c))
	}
	return out
}

type reviewSessionJSON struct {
	ID            string     `json:"id"`
	DeckIDs       []string   `json:"deck_ids"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	CardsReviewed int        `json:"cards_reviewed"`
}

func toReviewSession(s *domain.ReviewSession) reviewSessionJSON {
	return reviewSessionJSON{
		ID:            s.ID,
		DeckIDs:       s.DeckIDs,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
		CardsReviewed: s.CardsReviewed,
	}
}

type reviewViewJSON struct {
	Session reviewSessionJSON `json:"session"`
	Queue   []cardJSON        `json:"queue"`
	Resumed bool              `json:"resumed"`
}

type reviewResultJSON struct {
	Card    cardJSON          `json:"card"`
	Session reviewSessionJSON `json:"session"`
}

type dailySessionJSON struct {
	ID               string     `json:"id"`
	LessonID         *string    `json:"lesson_id"`
	DeckIDs          []string   `json:"deck_ids"`
	Day              string     `json:"day"`
	NewCardsLimit    int        `json:"daily_new_cards_limit"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at"`
	CardsStudied     int        `json:"cards_studied"`
	CardsLearned     int        `json:"cards_learned"`
	NewCardsToday    int        `json:"new_cards_today"`
	ReviewCardsToday int        `json:"review_cards_today"`
}

func toDailySession(s *domain.DailySession) *dailySessionJSON {
	if s == nil {
		return nil
	}
	return &dailySessionJSON{
		ID:               s.ID,
		LessonID:         s.LessonID,
		DeckIDs:          s.DeckIDs,
		Day:              s.Day,
		NewCardsLimit:    s.NewCardsLimit,
		StartedAt:        s.StartedAt,
		EndedAt:          s.EndedAt,
		CardsStudied:     s.CardsStudied,
		CardsLearned:     s.CardsLearned,
		NewCardsToday:    s.NewCardsToday,
		ReviewCardsToday: s.ReviewCardsToday,
	}
}

type dailyViewJSON struct {
	Session           *dailySessionJSON `json:"session"`
	Cards             []cardJSON        `json:"cards"`
	Resumed           bool              `json:"resumed"`
	NewCardsRemaining int               `json:"new_cards_remaining"`
	CanEnd            bool              `json:"can_end"`
}

func toDailyView(v *study.DailySessionView) dailyViewJSON {
	return dailyViewJSON{
		Session:           toDailySession(v.Session),
		Cards:             toCards(v.Cards),
		Resumed:           v.Resumed,
		NewCardsRemaining: v.NewCardsRemaining,
		CanEnd:            v.CanEnd,
	}
}

type dailyResultJSON struct {
	Card      cardJSON          `json:"card"`
	Session   *dailySessionJSON `json:"session"`
	Graduated bool              `json:"graduated"`
}

type recordJSON struct {
	CardID      string    `json:"card_id"`
	Rating      string    `json:"rating"`
	WasNew      bool      `json:"was_new"`
	PriorStatus string    `json:"prior_status"`
	Graduated   bool      `json:"graduated"`
	ReviewedAt  time.Time `json:"reviewed_at"`
	Day         string    `json:"day"`
}

func toRecords(records []domain.ReviewRecord) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, recordJSON{
			CardID:      r.CardID,
			Rating:      string(r.Rating),
			WasNew:      r.WasNew,
			PriorStatus: string(r.PriorStatus),
			Graduated:   r.Graduated,
			ReviewedAt:  r.ReviewedAt,
			Day:         r.Day,
		})
	}
	return out
}

type endJSON struct {
	SessionID       string    `json:"session_id"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
}

func toEnd(r *study.EndResult) endJSON {
	return endJSON{
		SessionID:       r.SessionID,
		EndedAt:         r.EndedAt,
		DurationSeconds: int64(r.Duration / time.Second),
	}
}

type lessonJSON struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	DeckIDs            []string  `json:"deck_ids"`
	DailyNewCardsLimit int       `json:"daily_new_cards_limit"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toLesson(l *domain.Lesson) lessonJSON {
	return lessonJSON{
		ID:                 l.ID,
		Name:               l.Name,
		Description:        l.Description,
		DeckIDs:            l.DeckIDs,
		DailyNewCardsLimit: l.DailyNewCardsLimit,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

type statsJSON struct {
	CardsToLearn       int               `json:"cards_to_learn"`
	CardsInProgress    int               `json:"cards_in_progress"`
	CardsLearnedTotal  int               `json:"cards_learned_total"`
	CardsLearnedToday  int               `json:"cards_learned_today"`
	CardsDueToday      int               `json:"cards_due_today"`
	StudyDaysLastMonth int               `json:"study_days_last_month"`
	CurrentStreak      int               `json:"current_streak"`
	LastStudyDate      *string           `json:"last_study_date"`
	ActiveSession      *dailySessionJSON `json:"active_session"`
}

func toStats(st stats.DailyStats) statsJSON {
	out := statsJSON{
		CardsToLearn:       st.CardsToLearn,
		CardsInProgress:    st.CardsInProgress,
		CardsLearnedTotal:  st.CardsLearnedTotal,
		CardsLearnedToday:  st.CardsLearnedToday,
		CardsDueToday:      st.CardsDueToday,
		StudyDaysLastMonth: st.StudyDaysLastMonth,
		CurrentStreak:      st.CurrentStreak,
		ActiveSession:      toDailySession(st.ActiveSession),
	}
	if st.LastStudyDate != "" {
		out.LastStudyDate = &st.LastStudyDate
	}
	return out
}

type sourceJSON struct {
	ID          int64      `json:"id"`
	DeckID      string     `json:"deck_id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned"`
}

func toSource(s domain.Source) sourceJSON {
	return sourceJSON{ID: s.ID, DeckID: s.DeckID, Path: s.Path, Type: s.Type, LastScanned: s.LastScanned}
}

type syncResultJSON struct {
	SourceID int64  `json:"source_id"`
	Parsed   int    `json:"parsed"`
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`
	Error    string `json:"error,omitempty"`
}

func toSyncResult(r sync.Result) syncResultJSON {
	out := syncResultJSON{SourceID: r.Source.ID, Parsed: r.Parsed, Inserted: r.Inserted, Deleted: r.Deleted}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
