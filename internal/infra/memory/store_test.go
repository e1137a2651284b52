package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/infra/memory"
)

func seedPublishedQuiz(t *testing.T, store *memory.Store, owner uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	quiz := &domain.Quiz{ID: uuid.New(), Title: "Capitals", UserID: owner}
	if err := store.CreateQuiz(ctx, quiz); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	question := &domain.Question{
		ID:     uuid.New(),
		QuizID: quiz.ID,
		Title:  "Capital of France?",
		Type:   domain.SingleAnswer,
	}
	question.Answers = []*domain.Answer{
		{ID: uuid.New(), QuestionID: question.ID, Value: "Paris", IsCorrect: true},
		{ID: uuid.New(), QuestionID: question.ID, Value: "Lyon"},
	}
	if err := store.AddQuestions(ctx, quiz.ID, []*domain.Question{question}); err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if err := store.MarkPublished(ctx, quiz.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return quiz.ID
}

func TestCreateGameEnforcesOnePerUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner, player := uuid.New(), uuid.New()
	quizID := seedPublishedQuiz(t, store, owner)

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		return tx.CreateGame(ctx, &domain.Game{ID: uuid.New(), UserID: player, QuizID: quizID, State: domain.GameInProgress})
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		return tx.CreateGame(ctx, &domain.Game{ID: uuid.New(), UserID: player, QuizID: quizID, State: domain.GameInProgress})
	})
	if err == nil {
		t.Fatalf("expected duplicate game to be rejected")
	}
}

func TestGetOrCreateGameQuestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner, player := uuid.New(), uuid.New()
	quizID := seedPublishedQuiz(t, store, owner)
	gameID := uuid.New()
	questionID := uuid.New()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		if err := tx.CreateGame(ctx, &domain.Game{ID: gameID, UserID: player, QuizID: quizID, State: domain.GameInProgress}); err != nil {
			return err
		}
		first, err := tx.GetOrCreateGameQuestion(ctx, gameID, questionID)
		if err != nil {
			return err
		}
		second, err := tx.GetOrCreateGameQuestion(ctx, gameID, questionID)
		if err != nil {
			return err
		}
		if first.ID != second.ID {
			t.Fatalf("expected one row, got %s and %s", first.ID, second.ID)
		}
		if first.State != domain.QuestionPending {
			t.Fatalf("expected pending state, got %s", first.State)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestResolveGameQuestionIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner, player := uuid.New(), uuid.New()
	quizID := seedPublishedQuiz(t, store, owner)
	gameID := uuid.New()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		if err := tx.CreateGame(ctx, &domain.Game{ID: gameID, UserID: player, QuizID: quizID, State: domain.GameInProgress}); err != nil {
			return err
		}
		gq, err := tx.GetOrCreateGameQuestion(ctx, gameID, uuid.New())
		if err != nil {
			return err
		}
		if err := tx.ResolveGameQuestion(ctx, gq.ID, domain.QuestionAnswered, 1); err != nil {
			return err
		}
		if err := tx.ResolveGameQuestion(ctx, gq.ID, domain.QuestionSkipped, 0); !errors.Is(err, domain.ErrQuestionResolved) {
			t.Fatalf("expected ErrQuestionResolved, got %v", err)
		}
		stored, err := tx.GameQuestion(ctx, gameID, gq.ID)
		if err != nil {
			return err
		}
		if stored.State != domain.QuestionAnswered || stored.AnswerScore != 1 {
			t.Fatalf("first resolution must win, got %+v", stored)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestAdvanceGameAccumulates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStoreWithClock(func() time.Time { return now })
	owner, player := uuid.New(), uuid.New()
	quizID := seedPublishedQuiz(t, store, owner)
	gameID := uuid.New()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		if err := tx.CreateGame(ctx, &domain.Game{ID: gameID, UserID: player, QuizID: quizID, State: domain.GameInProgress}); err != nil {
			return err
		}
		if err := tx.AdvanceGame(ctx, gameID, 1); err != nil {
			return err
		}
		if err := tx.AdvanceGame(ctx, gameID, -0.5); err != nil {
			return err
		}
		game, err := tx.Game(ctx, gameID, player)
		if err != nil {
			return err
		}
		if game.Score != 0.5 || game.Offset != 2 {
			t.Fatalf("expected score 0.5 offset 2, got %+v", game)
		}
		if !game.UpdatedAt.Equal(now) {
			t.Fatalf("expected UpdatedAt %v, got %v", now, game.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestQuizGameStatsScopedToQuiz(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner, player := uuid.New(), uuid.New()
	quizID := seedPublishedQuiz(t, store, owner)
	otherQuiz := seedPublishedQuiz(t, store, owner)
	gameID := uuid.New()

	err := store.RunInTx(ctx, func(ctx context.Context, tx app.GameTx) error {
		if err := tx.CreateGame(ctx, &domain.Game{ID: gameID, UserID: player, QuizID: quizID, State: domain.GameInProgress}); err != nil {
			return err
		}
		questions, err := store.QuestionsByQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		gq, err := tx.GetOrCreateGameQuestion(ctx, gameID, questions[0].ID)
		if err != nil {
			return err
		}
		return tx.ResolveGameQuestion(ctx, gq.ID, domain.QuestionAnswered, 1)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	stats, err := store.QuizGameStats(ctx, quizID, gameID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 || stats[0].AnswerScore != 1 {
		t.Fatalf("expected one stat with score 1, got %+v", stats)
	}

	foreign, err := store.QuizGameStats(ctx, otherQuiz, gameID)
	if err != nil {
		t.Fatalf("foreign stats: %v", err)
	}
	if len(foreign) != 0 {
		t.Fatalf("expected no stats for foreign quiz, got %+v", foreign)
	}
}

func TestLoadPublishedQuizFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := uuid.New()

	draft := &domain.Quiz{ID: uuid.New(), Title: "Draft", UserID: owner}
	if err := store.CreateQuiz(ctx, draft); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := store.LoadPublishedQuiz(ctx, draft.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound for draft, got %v", err)
	}

	quizID := seedPublishedQuiz(t, store, owner)
	quiz, err := store.LoadPublishedQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("load published: %v", err)
	}
	if len(quiz.Questions) != 1 || len(quiz.Questions[0].Answers) != 2 {
		t.Fatalf("unexpected content %+v", quiz)
	}

	if err := store.MarkDeleted(ctx, quizID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.LoadPublishedQuiz(ctx, quizID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound after delete, got %v", err)
	}
}
