package domain

import "errors"

var (
	// ErrQuizNotFound covers missing, deleted, unpublished-for-play, and
	// not-owned quizzes; ownership misses are indistinguishable from absence.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrGameNotFound covers missing and not-owned games.
	ErrGameNotFound = errors.New("game not found")
	// ErrQuestionNotFound indicates a question id not present under the
	// addressed quiz or game.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAlreadyPlayed is returned when starting a quiz whose game already finished.
	ErrAlreadyPlayed = errors.New("quiz already played")
	// ErrGameFinished is returned by play operations on a finished game.
	ErrGameFinished = errors.New("game is already finished")
	// ErrGameNotFinished is returned when results are requested early.
	ErrGameNotFinished = errors.New("game is not finished yet")
	// ErrQuestionResolved is returned on a second answer or skip of the same
	// game question.
	ErrQuestionResolved = errors.New("question already answered or skipped")
	// ErrChoiceCardinality is returned when a single-answer question receives
	// anything other than exactly one choice.
	ErrChoiceCardinality = errors.New("single answer question requires exactly one choice")
	// ErrInvalidChoice indicates a submitted answer id that does not belong to
	// the question.
	ErrInvalidChoice = errors.New("choice does not belong to question")
	// ErrInvalidQuestion indicates stored question content that violates the
	// authoring invariants (e.g. no incorrect answers to score against).
	ErrInvalidQuestion = errors.New("question content is invalid")
	// ErrUnknownQuestionType indicates a question type outside the closed set.
	ErrUnknownQuestionType = errors.New("unknown question type")
	// ErrQuizPublished is returned when editing a published quiz.
	ErrQuizPublished = errors.New("quiz is already published")
	// ErrEmptyQuiz is returned when publishing a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrValidation wraps request payload violations (answer counts, titles).
	ErrValidation = errors.New("validation failed")
)
