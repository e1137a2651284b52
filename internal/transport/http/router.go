package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"quiz-game-service/internal/app"
)

// NewRouter assembles the HTTP surface: authoring and play REST routes under
// /api, the websocket play channel, and a liveness probe.
func NewRouter(logger *slog.Logger, quizzes *app.QuizService, games *app.GameService) http.Handler {
	quizHandler := &QuizHandler{service: quizzes, logger: logger}
	gameHandler := &GameHandler{service: games, logger: logger}
	wsHandler := NewWSHandler(games, logger)

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(cors.AllowAll().Handler)
	mux.Use(requestLogger(logger))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/", quizHandler.Create)
			r.Get("/", quizHandler.List)
			r.Get("/{quizID}", quizHandler.Get)
			r.Patch("/{quizID}", quizHandler.Update)
			r.Delete("/{quizID}", quizHandler.Delete)
			r.Patch("/{quizID}/publish", quizHandler.Publish)

			r.Get("/{quizID}/questions", quizHandler.ListQuestions)
			r.Post("/{quizID}/questions", quizHandler.AddQuestions)
			r.Patch("/{quizID}/questions/{questionID}", quizHandler.UpdateQuestion)
			r.Delete("/{quizID}/questions/{questionID}", quizHandler.DeleteQuestion)

			r.Get("/{quizID}/games", quizHandler.ListGames)
			r.Get("/{quizID}/games/{gameID}", quizHandler.GameStats)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameHandler.List)
			r.Post("/start", gameHandler.Start)
			r.Get("/{gameID}/questions/next", gameHandler.NextQuestion)
			r.Post("/{gameID}/questions/{questionID}/submit", gameHandler.Submit)
			r.Post("/{gameID}/questions/{questionID}/skip", gameHandler.Skip)
			r.Get("/{gameID}/results", gameHandler.Results)
		})
	})

	mux.With(requireUser).Get("/ws/play", wsHandler.ServeWS)

	return mux
}

// requireUser resolves the caller from the X-User-ID header set by the
// upstream identity layer. Requests without a valid id are rejected.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "missing X-User-ID header"})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "invalid X-User-ID header"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
