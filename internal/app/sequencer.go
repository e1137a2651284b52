package app

import (
	"sort"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

// questionAt returns the question at the zero-based position offset within
// the quiz's stable creation order, or nil when the quiz is exhausted.
// Published quizzes are immutable, so repeated calls with the same offset
// always yield the same question.
func questionAt(quiz domain.Quiz, offset int) *domain.Question {
	if offset < 0 || offset >= len(quiz.Questions) {
		return nil
	}
	questions := make([]*domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})
	return questions[offset]
}

// questionByID looks a question up within loaded quiz content.
func questionByID(quiz domain.Quiz, id uuid.UUID) *domain.Question {
	for _, question := range quiz.Questions {
		if question.ID == id {
			return question
		}
	}
	return nil
}
