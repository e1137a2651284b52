package app

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

func TestScoreSingleAnswer(t *testing.T) {
	right := uuid.New()
	wrong := uuid.New()
	correct := answerSet{right: {}}
	incorrect := answerSet{wrong: {}}

	score, err := Score(domain.SingleAnswer, correct, incorrect, []uuid.UUID{right})
	if err != nil {
		t.Fatalf("score correct choice: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %v", score)
	}

	score, err = Score(domain.SingleAnswer, correct, incorrect, []uuid.UUID{wrong})
	if err != nil {
		t.Fatalf("score incorrect choice: %v", err)
	}
	if score != -1 {
		t.Fatalf("expected score -1, got %v", score)
	}
}

func TestScoreSingleAnswerForeignChoice(t *testing.T) {
	correct := answerSet{uuid.New(): {}}
	incorrect := answerSet{uuid.New(): {}}

	_, err := Score(domain.SingleAnswer, correct, incorrect, []uuid.UUID{uuid.New()})
	if !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestScoreMultipleAnswers(t *testing.T) {
	c1, c2, w1 := uuid.New(), uuid.New(), uuid.New()
	correct := answerSet{c1: {}, c2: {}}
	incorrect := answerSet{w1: {}}

	// One of two correct picked plus the only incorrect: 1/2 - 1/1.
	score, err := Score(domain.MultipleAnswers, correct, incorrect, []uuid.UUID{c1, w1})
	if err != nil {
		t.Fatalf("score mixed choices: %v", err)
	}
	if math.Abs(score-(-0.5)) > 1e-9 {
		t.Fatalf("expected score -0.5, got %v", score)
	}

	score, err = Score(domain.MultipleAnswers, correct, incorrect, []uuid.UUID{c1, c2})
	if err != nil {
		t.Fatalf("score all correct: %v", err)
	}
	if math.Abs(score-1) > 1e-9 {
		t.Fatalf("expected score 1, got %v", score)
	}

	score, err = Score(domain.MultipleAnswers, correct, incorrect, nil)
	if err != nil {
		t.Fatalf("score no choices: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected score 0, got %v", score)
	}
}

func TestScoreMultipleAnswersForeignChoice(t *testing.T) {
	correct := answerSet{uuid.New(): {}}
	incorrect := answerSet{uuid.New(): {}}

	_, err := Score(domain.MultipleAnswers, correct, incorrect, []uuid.UUID{uuid.New()})
	if !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestScoreMultipleAnswersRequiresBothSets(t *testing.T) {
	_, err := Score(domain.MultipleAnswers, answerSet{uuid.New(): {}}, answerSet{}, nil)
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion for empty incorrect set, got %v", err)
	}

	_, err = Score(domain.MultipleAnswers, answerSet{}, answerSet{uuid.New(): {}}, nil)
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion for empty correct set, got %v", err)
	}
}

func TestScoreUnknownType(t *testing.T) {
	_, err := Score(domain.QuestionType("TRUE_FALSE"), answerSet{}, answerSet{}, nil)
	if !errors.Is(err, domain.ErrUnknownQuestionType) {
		t.Fatalf("expected ErrUnknownQuestionType, got %v", err)
	}
}

func TestSplitAnswerSets(t *testing.T) {
	right := &domain.Answer{ID: uuid.New(), IsCorrect: true}
	wrong := &domain.Answer{ID: uuid.New()}

	correct, incorrect := splitAnswerSets([]*domain.Answer{right, wrong})
	if _, ok := correct[right.ID]; !ok || len(correct) != 1 {
		t.Fatalf("expected correct set {%s}, got %v", right.ID, correct)
	}
	if _, ok := incorrect[wrong.ID]; !ok || len(incorrect) != 1 {
		t.Fatalf("expected incorrect set {%s}, got %v", wrong.ID, incorrect)
	}
}

func TestQuestionAtOrdersByPosition(t *testing.T) {
	q0 := &domain.Question{ID: uuid.New(), Position: 0}
	q1 := &domain.Question{ID: uuid.New(), Position: 1}
	quiz := domain.Quiz{Questions: []*domain.Question{q1, q0}}

	if got := questionAt(quiz, 0); got == nil || got.ID != q0.ID {
		t.Fatalf("expected first question %s, got %+v", q0.ID, got)
	}
	if got := questionAt(quiz, 1); got == nil || got.ID != q1.ID {
		t.Fatalf("expected second question %s, got %+v", q1.ID, got)
	}
	if got := questionAt(quiz, 2); got != nil {
		t.Fatalf("expected exhaustion, got %+v", got)
	}
}
