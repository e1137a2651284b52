package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

// ContentRepository loads playable quiz content (published, not deleted,
// questions and answers included) from cache or the backing store.
type ContentRepository interface {
	PlayableQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error)
}

// GameTx is the set of store operations available inside one transaction.
// Mutating methods carry their write-once guards in the store (conditional
// updates), so a lost race surfaces as a domain error instead of a double
// write.
type GameTx interface {
	// GameByQuizAndUser returns the single game for a (quiz, user) pair,
	// ErrGameNotFound when none exists.
	GameByQuizAndUser(ctx context.Context, quizID, userID uuid.UUID) (*domain.Game, error)
	CreateGame(ctx context.Context, game *domain.Game) error
	// GameForUpdate fetches an owned game and locks its row for the rest of
	// the transaction; ownership misses are reported as ErrGameNotFound.
	GameForUpdate(ctx context.Context, gameID, userID uuid.UUID) (*domain.Game, error)
	Game(ctx context.Context, gameID, userID uuid.UUID) (*domain.Game, error)
	// GetOrCreateGameQuestion is atomic: concurrent callers for the same
	// (game, question) pair observe the same row.
	GetOrCreateGameQuestion(ctx context.Context, gameID, questionID uuid.UUID) (*domain.GameQuestion, error)
	GameQuestion(ctx context.Context, gameID, gameQuestionID uuid.UUID) (*domain.GameQuestion, error)
	// ResolveGameQuestion transitions pending -> state; a question that
	// already left pending fails with ErrQuestionResolved.
	ResolveGameQuestion(ctx context.Context, gameQuestionID uuid.UUID, state domain.ResolutionState, score float64) error
	// AdvanceGame adds scoreDelta to the running score and bumps the cursor
	// by exactly one.
	AdvanceGame(ctx context.Context, gameID uuid.UUID, scoreDelta float64) error
	FinishGame(ctx context.Context, gameID uuid.UUID) error
	RecordChoices(ctx context.Context, gameQuestionID uuid.UUID, choices []uuid.UUID) error
	// ResolvedStats returns one entry per resolved game question in the
	// order the questions were served.
	ResolvedStats(ctx context.Context, gameID uuid.UUID) ([]domain.QuestionStat, error)
}

// GameStore abstracts game persistence. Every engine operation runs inside a
// single RunInTx call; the store provides the isolation that serializes
// concurrent operations on the same game.
type GameStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx GameTx) error) error
	ListGames(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.GameListItem, int, error)
}

// NextQuestionPayload is what the engine serves for the current question.
// ID is the game question id; callers address the question by it from then
// on. Choices never expose correctness.
type NextQuestionPayload struct {
	ID      uuid.UUID           `json:"id"`
	Type    domain.QuestionType `json:"type"`
	Title   string              `json:"title"`
	Answers []ChoiceOption      `json:"answers"`
}

// ChoiceOption is one selectable answer as shown to the player.
type ChoiceOption struct {
	ID    uuid.UUID `json:"id"`
	Value string    `json:"value"`
}

// Page is the offset-paginated list envelope shared by the browse endpoints.
type Page[T any] struct {
	TotalCount int `json:"total_count"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Items      []T `json:"items"`
}

// GameService is the game session engine: it owns the game lifecycle,
// delegates question selection to the sequencer and numeric scoring to the
// scoring rule, and aggregates results once a game finishes.
type GameService struct {
	store   GameStore
	content ContentRepository
}

func NewGameService(store GameStore, content ContentRepository) *GameService {
	return &GameService{store: store, content: content}
}

// Start begins (or resumes) the caller's game for a quiz. Starting an
// unfinished game is idempotent and returns the existing id; a finished game
// fails with ErrAlreadyPlayed.
func (s *GameService) Start(ctx context.Context, quizID, userID uuid.UUID) (uuid.UUID, error) {
	if _, err := s.content.PlayableQuiz(ctx, quizID); err != nil {
		return uuid.Nil, err
	}

	var gameID uuid.UUID
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx GameTx) error {
		existing, err := tx.GameByQuizAndUser(ctx, quizID, userID)
		switch {
		case errors.Is(err, domain.ErrGameNotFound):
			game := &domain.Game{
				ID:     uuid.New(),
				UserID: userID,
				QuizID: quizID,
				State:  domain.GameInProgress,
			}
			if err := tx.CreateGame(ctx, game); err != nil {
				return fmt.Errorf("create game: %w", err)
			}
			gameID = game.ID
			return nil
		case err != nil:
			return err
		case existing.Finished():
			return domain.ErrAlreadyPlayed
		default:
			gameID = existing.ID
			return nil
		}
	})
	if err != nil {
		return uuid.Nil, err
	}
	return gameID, nil
}

// NextQuestion serves the question at the game's cursor, lazily creating its
// game-question row. Repeated calls without an intervening Answer or Skip
// return the identical payload. When the quiz is exhausted the game
// transitions to finished and the call fails with ErrGameFinished, same as a
// query against an already-finished game.
func (s *GameService) NextQuestion(ctx context.Context, gameID, userID uuid.UUID) (NextQuestionPayload, error) {
	var (
		payload   NextQuestionPayload
		exhausted bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx GameTx) error {
		game, err := tx.GameForUpdate(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if game.Finished() {
			return domain.ErrGameFinished
		}

		quiz, err := s.content.PlayableQuiz(ctx, game.QuizID)
		if err != nil {
			return err
		}

		question := questionAt(quiz, game.Offset)
		if question == nil {
			// Exhaustion finishes the game; the commit must survive, so the
			// terminal signal is raised after the transaction.
			exhausted = true
			return tx.FinishGame(ctx, game.ID)
		}

		gameQuestion, err := tx.GetOrCreateGameQuestion(ctx, game.ID, question.ID)
		if err != nil {
			return fmt.Errorf("get or create game question: %w", err)
		}

		payload = NextQuestionPayload{
			ID:      gameQuestion.ID,
			Type:    question.Type,
			Title:   question.Title,
			Answers: choiceOptions(question.Answers),
		}
		return nil
	})
	if err != nil {
		return NextQuestionPayload{}, err
	}
	if exhausted {
		return NextQuestionPayload{}, domain.ErrGameFinished
	}
	return payload, nil
}

// Answer resolves a pending game question with the player's choices, scores
// them, and advances the game. All effects commit atomically; a failed
// precondition leaves the game untouched.
func (s *GameService) Answer(ctx context.Context, gameID, gameQuestionID, userID uuid.UUID, choices []uuid.UUID) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx GameTx) error {
		game, err := tx.GameForUpdate(ctx, gameID, userID)
		if err != nil {
			return err
		}
		gameQuestion, err := tx.GameQuestion(ctx, game.ID, gameQuestionID)
		if err != nil {
			return err
		}
		if gameQuestion.Resolved() {
			return domain.ErrQuestionResolved
		}

		quiz, err := s.content.PlayableQuiz(ctx, game.QuizID)
		if err != nil {
			return err
		}
		question := questionByID(quiz, gameQuestion.QuestionID)
		if question == nil {
			return domain.ErrQuestionNotFound
		}
		if question.Type == domain.SingleAnswer && len(choices) != 1 {
			return domain.ErrChoiceCardinality
		}

		correct, incorrect := splitAnswerSets(question.Answers)
		score, err := Score(question.Type, correct, incorrect, choices)
		if err != nil {
			return err
		}

		if err := tx.ResolveGameQuestion(ctx, gameQuestion.ID, domain.QuestionAnswered, score); err != nil {
			return err
		}
		if err := tx.AdvanceGame(ctx, game.ID, score); err != nil {
			return fmt.Errorf("advance game: %w", err)
		}
		if err := tx.RecordChoices(ctx, gameQuestion.ID, choices); err != nil {
			return fmt.Errorf("record choices: %w", err)
		}
		return nil
	})
}

// Skip resolves a pending game question with a zero score and advances the
// game without recording any choices.
func (s *GameService) Skip(ctx context.Context, gameID, gameQuestionID, userID uuid.UUID) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx GameTx) error {
		game, err := tx.GameForUpdate(ctx, gameID, userID)
		if err != nil {
			return err
		}
		gameQuestion, err := tx.GameQuestion(ctx, game.ID, gameQuestionID)
		if err != nil {
			return err
		}
		if gameQuestion.Resolved() {
			return domain.ErrQuestionResolved
		}

		if err := tx.ResolveGameQuestion(ctx, gameQuestion.ID, domain.QuestionSkipped, 0); err != nil {
			return err
		}
		if err := tx.AdvanceGame(ctx, game.ID, 0); err != nil {
			return fmt.Errorf("advance game: %w", err)
		}
		return nil
	})
}

// Results aggregates a finished game into the final score, its percentage
// over resolved questions, and the per-question breakdown in serve order.
func (s *GameService) Results(ctx context.Context, gameID, userID uuid.UUID) (domain.FinalResults, error) {
	var results domain.FinalResults
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx GameTx) error {
		game, err := tx.Game(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if !game.Finished() {
			return domain.ErrGameNotFinished
		}

		stats, err := tx.ResolvedStats(ctx, game.ID)
		if err != nil {
			return fmt.Errorf("resolved stats: %w", err)
		}

		results = domain.FinalResults{
			Score:         game.Score,
			QuestionStats: stats,
		}
		// A published quiz has at least one question, so a finished game has
		// resolved at least one; the guard keeps a defect from surfacing as
		// a division by zero.
		if len(stats) > 0 {
			results.ScorePercentage = game.Score / float64(len(stats)) * 100
		}
		return nil
	})
	if err != nil {
		return domain.FinalResults{}, err
	}
	return results, nil
}

// ListGames returns the caller's play history, newest first.
func (s *GameService) ListGames(ctx context.Context, userID uuid.UUID, limit, offset int) (Page[domain.GameListItem], error) {
	items, total, err := s.store.ListGames(ctx, userID, limit, offset)
	if err != nil {
		return Page[domain.GameListItem]{}, fmt.Errorf("list games: %w", err)
	}
	return Page[domain.GameListItem]{TotalCount: total, Limit: limit, Offset: offset, Items: items}, nil
}

func choiceOptions(answers []*domain.Answer) []ChoiceOption {
	options := make([]ChoiceOption, 0, len(answers))
	for _, answer := range answers {
		options = append(options, ChoiceOption{ID: answer.ID, Value: answer.Value})
	}
	return options
}
