package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// GameHandler exposes the game session engine over REST.
type GameHandler struct {
	service *app.GameService
	logger  *slog.Logger
}

type startGameRequest struct {
	QuizID uuid.UUID `json:"quiz_id"`
}

type submitRequest struct {
	Choices []uuid.UUID `json:"choices"`
}

type gameListItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Finished  bool      `json:"finished"`
	CreatedAt time.Time `json:"created_at"`
}

type resultsResponse struct {
	Score           float64        `json:"score"`
	ScorePercentage float64        `json:"score_percentage"`
	QuestionStats   []questionStat `json:"question_stats"`
}

func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	id, err := h.service.Start(r.Context(), req.QuizID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	page, err := h.service.ListGames(r.Context(), userID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]gameListItem, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, gameListItem{
			ID:        item.ID,
			Title:     item.Title,
			Finished:  item.Finished,
			CreatedAt: item.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, pageResponse[gameListItem]{
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
		Items:      items,
	})
}

func (h *GameHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	payload, err := h.service.NextQuestion(r.Context(), gameID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *GameHandler) Submit(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if err := h.service.Answer(r.Context(), gameID, questionID, userID(r.Context()), req.Choices); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) Skip(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.service.Skip(r.Context(), gameID, questionID, userID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) Results(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	results, err := h.service.Results(r.Context(), gameID, userID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsPayload(results))
}

func resultsPayload(results domain.FinalResults) resultsResponse {
	return resultsResponse{
		Score:           round3(results.Score),
		ScorePercentage: round3(results.ScorePercentage),
		QuestionStats:   questionStats(results.QuestionStats),
	}
}
