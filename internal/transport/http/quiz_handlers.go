package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// QuizHandler exposes quiz authoring over REST.
type QuizHandler struct {
	service *app.QuizService
	logger  *slog.Logger
}

type createQuizRequest struct {
	Title string `json:"title"`
}

type updateQuizRequest struct {
	Title string `json:"title"`
}

type addQuestionsRequest struct {
	Questions []app.QuestionInput `json:"questions"`
}

type createdResponse struct {
	ID uuid.UUID `json:"id"`
}

type pageResponse[T any] struct {
	TotalCount int `json:"total_count"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Items      []T `json:"items"`
}

type quizListItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

type quizGameItem struct {
	ID       uuid.UUID `json:"id"`
	QuizID   uuid.UUID `json:"quiz_id"`
	UserID   uuid.UUID `json:"user_id"`
	Title    string    `json:"title"`
	Finished bool      `json:"finished"`
	Score    float64   `json:"score"`
}

type questionStat struct {
	Title                 string  `json:"title"`
	AnswerScore           float64 `json:"answer_score"`
	AnswerScorePercentage float64 `json:"answer_score_percentage"`
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	id, err := h.service.CreateQuiz(r.Context(), userID(r.Context()), req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	page, err := h.service.ListQuizzes(r.Context(), userID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]quizListItem, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, quizListItem{
			ID:        item.ID,
			Title:     item.Title,
			Published: item.Published,
			CreatedAt: item.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, pageResponse[quizListItem]{
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
		Items:      items,
	})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	quiz, err := h.service.GetQuiz(r.Context(), quizID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Update(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	var req updateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if err := h.service.UpdateQuiz(r.Context(), quizID, userID(r.Context()), req.Title); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	if err := h.service.DeleteQuiz(r.Context(), quizID, userID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) Publish(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	if err := h.service.PublishQuiz(r.Context(), quizID, userID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	questions, err := h.service.ListQuestions(r.Context(), quizID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *QuizHandler) AddQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	var req addQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if err := h.service.AddQuestions(r.Context(), quizID, userID(r.Context()), req.Questions); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *QuizHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	var req app.QuestionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if err := h.service.UpdateQuestion(r.Context(), quizID, questionID, userID(r.Context()), req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.service.DeleteQuestion(r.Context(), quizID, questionID, userID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	page, err := h.service.ListQuizGames(r.Context(), quizID, userID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]quizGameItem, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, quizGameItem{
			ID:       item.ID,
			QuizID:   item.QuizID,
			UserID:   item.UserID,
			Title:    item.Title,
			Finished: item.Finished,
			Score:    round3(item.Score),
		})
	}
	writeJSON(w, http.StatusOK, pageResponse[quizGameItem]{
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
		Items:      items,
	})
}

func (h *QuizHandler) GameStats(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	stats, err := h.service.QuizGameStats(r.Context(), quizID, gameID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questionStats(stats))
}

func questionStats(stats []domain.QuestionStat) []questionStat {
	out := make([]questionStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, questionStat{
			Title:                 stat.Title,
			AnswerScore:           round3(stat.AnswerScore),
			AnswerScorePercentage: round3(stat.AnswerScore * 100),
		})
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
