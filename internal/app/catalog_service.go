package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quiz-game-service/internal/domain"
)

const (
	minAnswersPerQuestion  = 2
	maxAnswersPerQuestion  = 5
	maxQuestionsPerRequest = 10
	maxQuestionsPerQuiz    = 10
)

// CatalogStore abstracts quiz authoring persistence. Each method is atomic on
// its own; every owned-quiz lookup filters on the owner id so an ownership
// miss reads the same as absence.
type CatalogStore interface {
	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	QuizByOwner(ctx context.Context, quizID, userID uuid.UUID) (*domain.Quiz, error)
	ListQuizzes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.QuizListItem, int, error)
	UpdateQuizTitle(ctx context.Context, quizID uuid.UUID, title string) error
	MarkPublished(ctx context.Context, quizID uuid.UUID) error
	MarkDeleted(ctx context.Context, quizID uuid.UUID) error
	// AddQuestions appends questions (with their answers) in one atomic
	// batch, assigning the next free positions in order.
	AddQuestions(ctx context.Context, quizID uuid.UUID, questions []*domain.Question) error
	QuestionsByQuiz(ctx context.Context, quizID uuid.UUID) ([]*domain.Question, error)
	QuestionByID(ctx context.Context, quizID, questionID uuid.UUID) (*domain.Question, error)
	// ReplaceQuestion updates title and type and, when answers are present,
	// swaps the full answer set.
	ReplaceQuestion(ctx context.Context, question *domain.Question, replaceAnswers bool) error
	DeleteQuestion(ctx context.Context, questionID uuid.UUID) error
	CountQuestions(ctx context.Context, quizID uuid.UUID) (int, error)
	ListQuizGames(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]domain.QuizGameItem, int, error)
	QuizGameStats(ctx context.Context, quizID, gameID uuid.UUID) ([]domain.QuestionStat, error)
}

// ContentInvalidator drops cached quiz content, used when a quiz is soft
// deleted so it stops being playable without waiting for the TTL.
type ContentInvalidator interface {
	Invalidate(ctx context.Context, quizID uuid.UUID) error
}

// AnswerInput is one authored answer choice.
type AnswerInput struct {
	Value     string `json:"value"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionInput is one authored question with its answers.
type QuestionInput struct {
	Title   string              `json:"title"`
	Type    domain.QuestionType `json:"type"`
	Answers []AnswerInput       `json:"answers"`
}

// QuestionUpdate is a partial question edit; nil fields are left unchanged.
type QuestionUpdate struct {
	Title   *string              `json:"title"`
	Type    *domain.QuestionType `json:"type"`
	Answers []AnswerInput        `json:"answers"`
}

// QuizService covers quiz authoring: creation, question editing while
// unpublished, one-way publish, soft delete, and the owner-facing listings.
type QuizService struct {
	store       CatalogStore
	invalidator ContentInvalidator
}

func NewQuizService(store CatalogStore, invalidator ContentInvalidator) *QuizService {
	return &QuizService{store: store, invalidator: invalidator}
}

// CreateQuiz creates an empty unpublished quiz and returns its id.
func (s *QuizService) CreateQuiz(ctx context.Context, userID uuid.UUID, title string) (uuid.UUID, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return uuid.Nil, fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	quiz := &domain.Quiz{
		ID:     uuid.New(),
		Title:  title,
		UserID: userID,
	}
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return uuid.Nil, fmt.Errorf("create quiz: %w", err)
	}
	return quiz.ID, nil
}

// ListQuizzes returns the caller's quizzes, soft-deleted ones excluded.
func (s *QuizService) ListQuizzes(ctx context.Context, userID uuid.UUID, limit, offset int) (Page[domain.QuizListItem], error) {
	items, total, err := s.store.ListQuizzes(ctx, userID, limit, offset)
	if err != nil {
		return Page[domain.QuizListItem]{}, fmt.Errorf("list quizzes: %w", err)
	}
	return Page[domain.QuizListItem]{TotalCount: total, Limit: limit, Offset: offset, Items: items}, nil
}

// GetQuiz returns an owned quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID, userID uuid.UUID) (*domain.Quiz, error) {
	return s.store.QuizByOwner(ctx, quizID, userID)
}

// UpdateQuiz renames an owned, still unpublished quiz.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID, userID uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.Published {
		return domain.ErrQuizPublished
	}
	if err := s.store.UpdateQuizTitle(ctx, quiz.ID, title); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return nil
}

// PublishQuiz makes a quiz playable. Publish is one-way and requires at least
// one question, so every playable quiz has a non-empty question set.
func (s *QuizService) PublishQuiz(ctx context.Context, quizID, userID uuid.UUID) error {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.Published {
		return nil
	}
	count, err := s.store.CountQuestions(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return domain.ErrEmptyQuiz
	}
	if err := s.store.MarkPublished(ctx, quiz.ID); err != nil {
		return fmt.Errorf("publish quiz: %w", err)
	}
	return nil
}

// DeleteQuiz soft-deletes an owned quiz and drops any cached content so it
// immediately stops being playable.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID, userID uuid.UUID) error {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if err := s.store.MarkDeleted(ctx, quiz.ID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, quiz.ID); err != nil {
			return fmt.Errorf("invalidate content cache: %w", err)
		}
	}
	return nil
}

// AddQuestions appends a batch of questions to an owned, unpublished quiz.
func (s *QuizService) AddQuestions(ctx context.Context, quizID, userID uuid.UUID, inputs []QuestionInput) error {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.Published {
		return domain.ErrQuizPublished
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: at least one question is required", domain.ErrValidation)
	}
	if len(inputs) > maxQuestionsPerRequest {
		return fmt.Errorf("%w: at most %d questions per request", domain.ErrValidation, maxQuestionsPerRequest)
	}
	count, err := s.store.CountQuestions(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count+len(inputs) > maxQuestionsPerQuiz {
		return fmt.Errorf("%w: at most %d questions per quiz", domain.ErrValidation, maxQuestionsPerQuiz)
	}

	questions := make([]*domain.Question, 0, len(inputs))
	for _, input := range inputs {
		if err := validateQuestion(input.Title, input.Type, input.Answers); err != nil {
			return err
		}
		question := &domain.Question{
			ID:     uuid.New(),
			QuizID: quiz.ID,
			Title:  strings.TrimSpace(input.Title),
			Type:   input.Type,
		}
		for _, answer := range input.Answers {
			question.Answers = append(question.Answers, &domain.Answer{
				ID:         uuid.New(),
				QuestionID: question.ID,
				Value:      strings.TrimSpace(answer.Value),
				IsCorrect:  answer.IsCorrect,
			})
		}
		questions = append(questions, question)
	}

	if err := s.store.AddQuestions(ctx, quiz.ID, questions); err != nil {
		return fmt.Errorf("add questions: %w", err)
	}
	return nil
}

// ListQuestions returns an owned quiz's questions in creation order,
// correctness flags included (this is the authoring view, not the play view).
func (s *QuizService) ListQuestions(ctx context.Context, quizID, userID uuid.UUID) ([]*domain.Question, error) {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.QuestionsByQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// UpdateQuestion applies a partial edit to a question of an unpublished quiz.
// The combined result is validated as a whole, so a type change against the
// existing answers is rejected when they no longer fit.
func (s *QuizService) UpdateQuestion(ctx context.Context, quizID, questionID, userID uuid.UUID, update QuestionUpdate) error {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.Published {
		return domain.ErrQuizPublished
	}
	question, err := s.store.QuestionByID(ctx, quiz.ID, questionID)
	if err != nil {
		return err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
		}
		question.Title = title
	}
	if update.Type != nil {
		question.Type = *update.Type
	}
	replaceAnswers := update.Answers != nil
	if replaceAnswers {
		question.Answers = question.Answers[:0]
		for _, answer := range update.Answers {
			question.Answers = append(question.Answers, &domain.Answer{
				ID:         uuid.New(),
				QuestionID: question.ID,
				Value:      strings.TrimSpace(answer.Value),
				IsCorrect:  answer.IsCorrect,
			})
		}
	}
	if err := validateAnswers(question.Type, answerInputs(question.Answers)); err != nil {
		return err
	}
	if !question.Type.Valid() {
		return fmt.Errorf("%w: unknown question type %q", domain.ErrValidation, question.Type)
	}

	if err := s.store.ReplaceQuestion(ctx, question, replaceAnswers); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// DeleteQuestion removes a question from an unpublished quiz.
func (s *QuizService) DeleteQuestion(ctx context.Context, quizID, questionID, userID uuid.UUID) error {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return err
	}
	if quiz.Published {
		return domain.ErrQuizPublished
	}
	question, err := s.store.QuestionByID(ctx, quiz.ID, questionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, question.ID); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// ListQuizGames returns games played against an owned quiz.
func (s *QuizService) ListQuizGames(ctx context.Context, quizID, userID uuid.UUID, limit, offset int) (Page[domain.QuizGameItem], error) {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return Page[domain.QuizGameItem]{}, err
	}
	items, total, err := s.store.ListQuizGames(ctx, quiz.ID, limit, offset)
	if err != nil {
		return Page[domain.QuizGameItem]{}, fmt.Errorf("list quiz games: %w", err)
	}
	return Page[domain.QuizGameItem]{TotalCount: total, Limit: limit, Offset: offset, Items: items}, nil
}

// QuizGameStats returns the per-question breakdown of one game played
// against an owned quiz.
func (s *QuizService) QuizGameStats(ctx context.Context, quizID, gameID, userID uuid.UUID) ([]domain.QuestionStat, error) {
	quiz, err := s.store.QuizByOwner(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.QuizGameStats(ctx, quiz.ID, gameID)
	if err != nil {
		return nil, fmt.Errorf("quiz game stats: %w", err)
	}
	return stats, nil
}

func validateQuestion(title string, questionType domain.QuestionType, answers []AnswerInput) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: question title must not be empty", domain.ErrValidation)
	}
	if !questionType.Valid() {
		return fmt.Errorf("%w: unknown question type %q", domain.ErrValidation, questionType)
	}
	return validateAnswers(questionType, answers)
}

func validateAnswers(questionType domain.QuestionType, answers []AnswerInput) error {
	if len(answers) < minAnswersPerQuestion || len(answers) > maxAnswersPerQuestion {
		return fmt.Errorf("%w: a question needs %d to %d answers", domain.ErrValidation, minAnswersPerQuestion, maxAnswersPerQuestion)
	}
	correct := 0
	for _, answer := range answers {
		if strings.TrimSpace(answer.Value) == "" {
			return fmt.Errorf("%w: answer value must not be empty", domain.ErrValidation)
		}
		if answer.IsCorrect {
			correct++
		}
	}
	if correct == 0 {
		return fmt.Errorf("%w: at least one answer must be correct", domain.ErrValidation)
	}
	if questionType == domain.SingleAnswer && correct != 1 {
		return fmt.Errorf("%w: %s requires exactly one correct answer", domain.ErrValidation, domain.SingleAnswer)
	}
	return nil
}

func answerInputs(answers []*domain.Answer) []AnswerInput {
	inputs := make([]AnswerInput, 0, len(answers))
	for _, answer := range answers {
		inputs = append(inputs, AnswerInput{Value: answer.Value, IsCorrect: answer.IsCorrect})
	}
	return inputs
}
