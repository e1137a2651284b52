package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-game-service/internal/domain"
)

// QuizLoader reads playable quiz content from Postgres over a dedicated pgx
// pool, keeping the read path off the engine's transactional connections.
// Only published, non-deleted quizzes are visible through it.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadPublishedQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx, `
		SELECT id, title
		FROM quizzes
		WHERE id = $1 AND published AND NOT deleted`, quizID).
		Scan(&quiz.ID, &quiz.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.Published = true

	byID := make(map[uuid.UUID]*domain.Question)
	rows, err := l.pool.Query(ctx, `
		SELECT id, title, type, position
		FROM questions
		WHERE quiz_id = $1`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	for rows.Next() {
		question := &domain.Question{QuizID: quizID}
		if err := rows.Scan(&question.ID, &question.Title, &question.Type, &question.Position); err != nil {
			rows.Close()
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		byID[question.ID] = question
		quiz.Questions = append(quiz.Questions, question)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}

	rows, err = l.pool.Query(ctx, `
		SELECT a.id, a.question_id, a.value, a.is_correct
		FROM answers AS a
		JOIN questions AS qn ON qn.id = a.question_id
		WHERE qn.quiz_id = $1`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load answers: %w", err)
	}
	for rows.Next() {
		answer := new(domain.Answer)
		if err := rows.Scan(&answer.ID, &answer.QuestionID, &answer.Value, &answer.IsCorrect); err != nil {
			rows.Close()
			return domain.Quiz{}, fmt.Errorf("scan answer: %w", err)
		}
		if question, ok := byID[answer.QuestionID]; ok {
			question.Answers = append(question.Answers, answer)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load answers: %w", err)
	}

	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].Position < quiz.Questions[j].Position
	})
	return quiz, nil
}
