package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/study"
)

type startReviewRequest struct {
	DeckIDs []string `json:"deck_ids"`
}

type submitRequest struct {
	CardID           string `json:"card_id" binding:"required"`
	Rating           string `json:"rating" binding:"required"`
	WasMarkedCorrect bool   `json:"was_marked_correct"`
}

type patchSessionRequest struct {
	Action string `json:"action" binding:"required,oneof=end"`
}

type startDailyRequest struct {
	DeckIDs            []string `json:"deck_ids"`
	DailyNewCardsLimit int      `json:"daily_new_cards_limit"`
	LessonID           string   `json:"lesson_id"`
}

type lessonRequest struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	DeckIDs            []string `json:"deck_ids"`
	DailyNewCardsLimit int      `json:"daily_new_cards_limit"`
}

func (r lessonRequest) input() study.LessonInput {
	return study.LessonInput{
		Name:               r.Name,
		Description:        r.Description,
		DeckIDs:            r.DeckIDs,
		DailyNewCardsLimit: r.DailyNewCardsLimit,
	}
}

type addSourceRequest struct {
	Path string `json:"path" binding:"required"`
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_argument", err)
		return false
	}
	return true
}

// bindOptional accepts an empty body and leaves v at its zero value.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid_argument", err)
		return false
	}
	return true
}

func bindRating(c *gin.Context, raw string) (domain.Rating, bool) {
	rating, err := domain.ParseRating(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_rating", err)
		return "", false
	}
	return rating, true
}

func startedStatus(resumed bool) int {
	if resumed {
		return http.StatusOK
	}
	return http.StatusCreated
}

// POST /api/review-sessions
func (s *Server) handleStartReview(c *gin.Context) {
	var req startReviewRequest
	if !bind(c, &req) {
		return
	}
	view, err := s.study.Review.StartOrResume(c.Request.Context(), userID(c), req.DeckIDs)
	if err != nil {
		s.fail(c, "StartReviewSession", err)
		return
	}
	c.JSON(startedStatus(view.Resumed), reviewViewJSON{
		Session: toReviewSession(view.Session),
		Queue:   toCards(view.Queue),
		Resumed: view.Resumed,
	})
}

// GET /api/review-sessions/:id
func (s *Server) handleGetReview(c *gin.Context) {
	view, err := s.study.Review.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "GetReviewSession", err)
		return
	}
	c.JSON(http.StatusOK, reviewViewJSON{
		Session: toReviewSession(view.Session),
		Queue:   toCards(view.Queue),
		Resumed: view.Resumed,
	})
}

// POST /api/review-sessions/:id/reviews
func (s *Server) handleSubmitReview(c *gin.Context) {
	var req submitRequest
	if !bind(c, &req) {
		return
	}
	rating, ok := bindRating(c, req.Rating)
	if !ok {
		return
	}
	res, err := s.study.Review.SubmitReview(c.Request.Context(), userID(c), c.Param("id"), req.CardID, rating)
	if err != nil {
		s.fail(c, "SubmitReview", err)
		return
	}
	c.JSON(http.StatusOK, reviewResultJSON{Card: toCard(res.Card), Session: toReviewSession(res.Session)})
}

// GET /api/review-sessions/:id/reviews
func (s *Server) handleReviewHistory(c *gin.Context) {
	records, err := s.study.Review.History(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "ReviewHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": toRecords(records)})
}

// PATCH /api/review-sessions/:id
func (s *Server) handlePatchReview(c *gin.Context) {
	var req patchSessionRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.study.Review.End(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "EndReviewSession", err)
		return
	}
	c.JSON(http.StatusOK, toEnd(res))
}

// POST /api/daily-learning-sessions
func (s *Server) handleStartDaily(c *gin.Context) {
	var req startDailyRequest
	if !bindOptional(c, &req) {
		return
	}
	view, err := s.study.Daily.StartOrResume(c.Request.Context(), study.StartDailyRequest{
		UserID:             userID(c),
		DeckIDs:            req.DeckIDs,
		DailyNewCardsLimit: req.DailyNewCardsLimit,
		LessonID:           req.LessonID,
	})
	if err != nil {
		s.fail(c, "StartDailySession", err)
		return
	}
	c.JSON(startedStatus(view.Resumed), toDailyView(view))
}

// GET /api/daily-learning-sessions/:id
func (s *Server) handleGetDaily(c *gin.Context) {
	view, err := s.study.Daily.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "GetDailySession", err)
		return
	}
	c.JSON(http.StatusOK, toDailyView(view))
}

// POST /api/daily-learning-sessions/:id/review
func (s *Server) handleSubmitDaily(c *gin.Context) {
	var req submitRequest
	if !bind(c, &req) {
		return
	}
	rating, ok := bindRating(c, req.Rating)
	if !ok {
		return
	}
	res, err := s.study.Daily.SubmitReview(c.Request.Context(), study.SubmitDailyReview{
		UserID:           userID(c),
		SessionID:        c.Param("id"),
		CardID:           req.CardID,
		Rating:           rating,
		WasMarkedCorrect: req.WasMarkedCorrect,
	})
	if err != nil {
		s.fail(c, "SubmitDailyReview", err)
		return
	}
	c.JSON(http.StatusOK, dailyResultJSON{
		Card:      toCard(res.Card),
		Session:   toDailySession(res.Session),
		Graduated: res.Graduated,
	})
}

// GET /api/daily-learning-sessions/:id/review
func (s *Server) handleDailyHistory(c *gin.Context) {
	records, err := s.study.Daily.History(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "DailyHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": toRecords(records)})
}

// PATCH /api/daily-learning-sessions/:id
func (s *Server) handlePatchDaily(c *gin.Context) {
	var req patchSessionRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.study.Daily.End(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "EndDailySession", err)
		return
	}
	c.JSON(http.StatusOK, toEnd(res))
}

// GET /api/daily-stats
func (s *Server) handleDailyStats(c *gin.Context) {
	st, err := s.stats.Daily(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, "DailyStats", err)
		return
	}
	c.JSON(http.StatusOK, toStats(st))
}

// GET /api/learning-lessons
func (s *Server) handleListLessons(c *gin.Context) {
	lessons, err := s.study.Lessons.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, "ListLessons", err)
		return
	}
	out := make([]lessonJSON, 0, len(lessons))
	for i := range lessons {
		out = append(out, toLesson(&lessons[i]))
	}
	c.JSON(http.StatusOK, gin.H{"lessons": out})
}

// POST /api/learning-lessons
func (s *Server) handleCreateLesson(c *gin.Context) {
	var req lessonRequest
	if !bind(c, &req) {
		return
	}
	lesson, err := s.study.Lessons.Create(c.Request.Context(), userID(c), req.input())
	if err != nil {
		s.fail(c, "CreateLesson", err)
		return
	}
	c.JSON(http.StatusCreated, toLesson(lesson))
}

// GET /api/learning-lessons/:id
func (s *Server) handleGetLesson(c *gin.Context) {
	lesson, err := s.study.Lessons.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "GetLesson", err)
		return
	}
	c.JSON(http.StatusOK, toLesson(lesson))
}

// PUT /api/learning-lessons/:id
func (s *Server) handleUpdateLesson(c *gin.Context) {
	var req lessonRequest
	if !bind(c, &req) {
		return
	}
	lesson, err := s.study.Lessons.Update(c.Request.Context(), userID(c), c.Param("id"), req.input())
	if err != nil {
		s.fail(c, "UpdateLesson", err)
		return
	}
	c.JSON(http.StatusOK, toLesson(lesson))
}

// DELETE /api/learning-lessons/:id
func (s *Server) handleDeleteLesson(c *gin.Context) {
	if err := s.study.Lessons.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		s.fail(c, "DeleteLesson", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/sources
func (s *Server) handleListSources(c *gin.Context) {
	sources, err := s.sync.Sources(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, "ListSources", err)
		return
	}
	out := make([]sourceJSON, 0, len(sources))
	for _, src := range sources {
		out = append(out, toSource(src))
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

// POST /api/sources
func (s *Server) handleAddSource(c *gin.Context) {
	var req addSourceRequest
	if !bind(c, &req) {
		return
	}
	src, err := s.sync.AddSource(c.Request.Context(), userID(c), req.Path)
	if err != nil {
		s.fail(c, "AddSource", err)
		return
	}
	c.JSON(http.StatusCreated, toSource(*src))
}

// DELETE /api/sources/:id
func (s *Server) handleDeleteSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	if err := s.sync.RemoveSource(c.Request.Context(), userID(c), id); err != nil {
		s.fail(c, "RemoveSource", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/sync
func (s *Server) handleSync(c *gin.Context) {
	results, err := s.sync.RunUser(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, "Sync", err)
		return
	}
	out := make([]syncResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, toSyncResult(r))
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}
