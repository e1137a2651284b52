package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

const (
	defaultPageLimit = 15
	maxPageLimit     = 20
)

type ctxKey int

const userIDKey ctxKey = iota

func userID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain sentinels to HTTP statuses. Lookup misses are 404,
// business rejections 400, data-integrity failures 500. Internal details
// never leak to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrGameNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyPlayed),
		errors.Is(err, domain.ErrGameFinished),
		errors.Is(err, domain.ErrGameNotFinished),
		errors.Is(err, domain.ErrQuestionResolved),
		errors.Is(err, domain.ErrChoiceCardinality),
		errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrQuizPublished),
		errors.Is(err, domain.ErrEmptyQuiz),
		errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	default:
		logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

// pageParams parses limit/offset query parameters. Limit defaults to 15 and
// is clamped to [1, 20]; a negative offset becomes 0.
func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// round3 trims scores to three decimal places at the response boundary;
// stored values keep full precision.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
