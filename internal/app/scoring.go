package app

import (
	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

type answerSet map[uuid.UUID]struct{}

func (s answerSet) contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// splitAnswerSets partitions a question's answers by correctness.
func splitAnswerSets(answers []*domain.Answer) (correct, incorrect answerSet) {
	correct = make(answerSet)
	incorrect = make(answerSet)
	for _, answer := range answers {
		if answer.IsCorrect {
			correct[answer.ID] = struct{}{}
		} else {
			incorrect[answer.ID] = struct{}{}
		}
	}
	return correct, incorrect
}

// Score computes the score for one resolved question. It is a pure function
// of the question type, the correct/incorrect answer id sets, and the chosen
// ids.
//
// SINGLE_ANSWER: +1 for the correct choice, -1 for an incorrect one.
// MULTIPLE_ANSWERS: chosen-correct/|correct| - chosen-incorrect/|incorrect|,
// bounded in [-1, 1].
//
// A chosen id outside both sets fails with ErrInvalidChoice. An empty correct
// or incorrect set on a MULTIPLE_ANSWERS question fails with
// ErrInvalidQuestion instead of dividing by zero; authoring guarantees at
// least one correct answer but not at least one incorrect.
func Score(questionType domain.QuestionType, correct, incorrect answerSet, chosen []uuid.UUID) (float64, error) {
	switch questionType {
	case domain.SingleAnswer:
		if len(chosen) != 1 {
			return 0, domain.ErrChoiceCardinality
		}
		switch {
		case correct.contains(chosen[0]):
			return 1, nil
		case incorrect.contains(chosen[0]):
			return -1, nil
		default:
			return 0, domain.ErrInvalidChoice
		}

	case domain.MultipleAnswers:
		if len(correct) == 0 || len(incorrect) == 0 {
			return 0, domain.ErrInvalidQuestion
		}
		var plus, minus int
		for _, choice := range chosen {
			switch {
			case correct.contains(choice):
				plus++
			case incorrect.contains(choice):
				minus++
			default:
				return 0, domain.ErrInvalidChoice
			}
		}
		return float64(plus)/float64(len(correct)) - float64(minus)/float64(len(incorrect)), nil

	default:
		return 0, domain.ErrUnknownQuestionType
	}
}
