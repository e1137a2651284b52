package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// Store is an in-memory implementation of app.CatalogStore and app.GameStore,
// used by the unit tests and as the no-database demo mode. Game state and
// catalog state sit behind separate locks that are never held together;
// game transactions serialize on the game lock, which is the isolation the
// engine asks of its store.
type Store struct {
	cmu     sync.Mutex
	quizzes map[uuid.UUID]*domain.Quiz

	mu            sync.Mutex
	games         map[uuid.UUID]*domain.Game
	gameQuestions map[uuid.UUID]*domain.GameQuestion
	serveOrder    map[uuid.UUID][]uuid.UUID // game id -> game question ids in serve order
	gameAnswers   []*domain.GameAnswer
	gameOrder     []uuid.UUID

	clock func() time.Time
}

func NewStore() *Store {
	return &Store{
		quizzes:       make(map[uuid.UUID]*domain.Quiz),
		games:         make(map[uuid.UUID]*domain.Game),
		gameQuestions: make(map[uuid.UUID]*domain.GameQuestion),
		serveOrder:    make(map[uuid.UUID][]uuid.UUID),
		clock:         time.Now,
	}
}

// NewStoreWithClock is test-only for deterministic timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.clock = now
	return s
}

// RunInTx serializes the callback against all other game transactions. There
// is no rollback; the engine orders its precondition checks before any
// mutation, which is enough for an in-memory store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.GameTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, (*gameTx)(s))
}

// gameTx exposes the locked game operations; it only exists inside RunInTx.
type gameTx Store

func (t *gameTx) GameByQuizAndUser(_ context.Context, quizID, userID uuid.UUID) (*domain.Game, error) {
	for _, game := range t.games {
		if game.QuizID == quizID && game.UserID == userID {
			copied := *game
			return &copied, nil
		}
	}
	return nil, domain.ErrGameNotFound
}

func (t *gameTx) CreateGame(_ context.Context, game *domain.Game) error {
	for _, existing := range t.games {
		if existing.QuizID == game.QuizID && existing.UserID == game.UserID {
			return fmt.Errorf("game for quiz %s and user %s already exists", game.QuizID, game.UserID)
		}
	}
	copied := *game
	copied.CreatedAt = t.clock()
	t.games[game.ID] = &copied
	t.gameOrder = append(t.gameOrder, game.ID)
	return nil
}

func (t *gameTx) GameForUpdate(ctx context.Context, gameID, userID uuid.UUID) (*domain.Game, error) {
	return t.Game(ctx, gameID, userID)
}

func (t *gameTx) Game(_ context.Context, gameID, userID uuid.UUID) (*domain.Game, error) {
	game, ok := t.games[gameID]
	if !ok || game.UserID != userID {
		return nil, domain.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

func (t *gameTx) GetOrCreateGameQuestion(_ context.Context, gameID, questionID uuid.UUID) (*domain.GameQuestion, error) {
	for _, gq := range t.gameQuestions {
		if gq.GameID == gameID && gq.QuestionID == questionID {
			copied := *gq
			return &copied, nil
		}
	}
	gq := &domain.GameQuestion{
		ID:         uuid.New(),
		GameID:     gameID,
		QuestionID: questionID,
		State:      domain.QuestionPending,
		CreatedAt:  t.clock(),
	}
	t.gameQuestions[gq.ID] = gq
	t.serveOrder[gameID] = append(t.serveOrder[gameID], gq.ID)
	copied := *gq
	return &copied, nil
}

func (t *gameTx) GameQuestion(_ context.Context, gameID, gameQuestionID uuid.UUID) (*domain.GameQuestion, error) {
	gq, ok := t.gameQuestions[gameQuestionID]
	if !ok || gq.GameID != gameID {
		return nil, domain.ErrQuestionNotFound
	}
	copied := *gq
	return &copied, nil
}

func (t *gameTx) ResolveGameQuestion(_ context.Context, gameQuestionID uuid.UUID, state domain.ResolutionState, score float64) error {
	gq, ok := t.gameQuestions[gameQuestionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if gq.State != domain.QuestionPending {
		return domain.ErrQuestionResolved
	}
	gq.State = state
	gq.AnswerScore = score
	gq.UpdatedAt = t.clock()
	return nil
}

func (t *gameTx) AdvanceGame(_ context.Context, gameID uuid.UUID, scoreDelta float64) error {
	game, ok := t.games[gameID]
	if !ok {
		return domain.ErrGameNotFound
	}
	game.Score += scoreDelta
	game.Offset++
	game.UpdatedAt = t.clock()
	return nil
}

func (t *gameTx) FinishGame(_ context.Context, gameID uuid.UUID) error {
	game, ok := t.games[gameID]
	if !ok {
		return domain.ErrGameNotFound
	}
	game.State = domain.GameFinished
	game.UpdatedAt = t.clock()
	return nil
}

func (t *gameTx) RecordChoices(_ context.Context, gameQuestionID uuid.UUID, choices []uuid.UUID) error {
	for _, choice := range choices {
		t.gameAnswers = append(t.gameAnswers, &domain.GameAnswer{
			ID:             uuid.New(),
			GameQuestionID: gameQuestionID,
			Choice:         choice,
		})
	}
	return nil
}

func (t *gameTx) ResolvedStats(_ context.Context, gameID uuid.UUID) ([]domain.QuestionStat, error) {
	type entry struct {
		questionID uuid.UUID
		score      float64
	}
	entries := make([]entry, 0, len(t.serveOrder[gameID]))
	for _, gqID := range t.serveOrder[gameID] {
		gq := t.gameQuestions[gqID]
		if gq == nil || !gq.Resolved() {
			continue
		}
		entries = append(entries, entry{questionID: gq.QuestionID, score: gq.AnswerScore})
	}

	titles := (*Store)(t).questionTitles()
	stats := make([]domain.QuestionStat, 0, len(entries))
	for _, e := range entries {
		stats = append(stats, domain.QuestionStat{Title: titles[e.questionID], AnswerScore: e.score})
	}
	return stats, nil
}

// questionTitles snapshots question titles under the catalog lock. Called
// while the game lock is held; the catalog lock is only ever taken second,
// never the other way around.
func (s *Store) questionTitles() map[uuid.UUID]string {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	titles := make(map[uuid.UUID]string)
	for _, quiz := range s.quizzes {
		for _, question := range quiz.Questions {
			titles[question.ID] = question.Title
		}
	}
	return titles
}

func (s *Store) ListGames(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.GameListItem, int, error) {
	quizTitles := make(map[uuid.UUID]string)
	s.cmu.Lock()
	for id, quiz := range s.quizzes {
		quizTitles[id] = quiz.Title
	}
	s.cmu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.GameListItem, 0)
	for i := len(s.gameOrder) - 1; i >= 0; i-- { // newest first
		game := s.games[s.gameOrder[i]]
		if game == nil || game.UserID != userID {
			continue
		}
		all = append(all, domain.GameListItem{
			ID:        game.ID,
			Title:     quizTitles[game.QuizID],
			Finished:  game.Finished(),
			CreatedAt: game.CreatedAt,
		})
	}
	return pageSlice(all, limit, offset), len(all), nil
}

// --- catalog ---

func (s *Store) CreateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	copied := *quiz
	copied.CreatedAt = s.clock()
	copied.Questions = nil
	s.quizzes[quiz.ID] = &copied
	return nil
}

func (s *Store) QuizByOwner(_ context.Context, quizID, userID uuid.UUID) (*domain.Quiz, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok || quiz.Deleted || quiz.UserID != userID {
		return nil, domain.ErrQuizNotFound
	}
	copied := *quiz
	copied.Questions = nil
	return &copied, nil
}

func (s *Store) ListQuizzes(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.QuizListItem, int, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	all := make([]domain.QuizListItem, 0)
	for _, quiz := range s.quizzes {
		if quiz.Deleted || quiz.UserID != userID {
			continue
		}
		all = append(all, domain.QuizListItem{
			ID:        quiz.ID,
			Title:     quiz.Title,
			Published: quiz.Published,
			CreatedAt: quiz.CreatedAt,
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return pageSlice(all, limit, offset), len(all), nil
}

func (s *Store) UpdateQuizTitle(_ context.Context, quizID uuid.UUID, title string) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Title = title
	quiz.UpdatedAt = s.clock()
	return nil
}

func (s *Store) MarkPublished(_ context.Context, quizID uuid.UUID) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Published = true
	quiz.UpdatedAt = s.clock()
	return nil
}

func (s *Store) MarkDeleted(_ context.Context, quizID uuid.UUID) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Deleted = true
	quiz.UpdatedAt = s.clock()
	return nil
}

func (s *Store) AddQuestions(_ context.Context, quizID uuid.UUID, questions []*domain.Question) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	next := 0
	for _, existing := range quiz.Questions {
		if existing.Position >= next {
			next = existing.Position + 1
		}
	}
	for _, question := range questions {
		copied := *question
		copied.Position = next
		copied.CreatedAt = s.clock()
		copied.Answers = copyAnswers(question.Answers)
		quiz.Questions = append(quiz.Questions, &copied)
		next++
	}
	return nil
}

func (s *Store) QuestionsByQuiz(_ context.Context, quizID uuid.UUID) ([]*domain.Question, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	questions := make([]*domain.Question, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		copied := *question
		copied.Answers = copyAnswers(question.Answers)
		questions = append(questions, &copied)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return questions, nil
}

func (s *Store) QuestionByID(_ context.Context, quizID, questionID uuid.UUID) (*domain.Question, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	for _, question := range quiz.Questions {
		if question.ID == questionID {
			copied := *question
			copied.Answers = copyAnswers(question.Answers)
			return &copied, nil
		}
	}
	return nil, domain.ErrQuestionNotFound
}

func (s *Store) ReplaceQuestion(_ context.Context, question *domain.Question, replaceAnswers bool) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[question.QuizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	for i, existing := range quiz.Questions {
		if existing.ID != question.ID {
			continue
		}
		copied := *question
		copied.Position = existing.Position
		copied.CreatedAt = existing.CreatedAt
		if replaceAnswers {
			copied.Answers = copyAnswers(question.Answers)
		} else {
			copied.Answers = existing.Answers
		}
		quiz.Questions[i] = &copied
		return nil
	}
	return domain.ErrQuestionNotFound
}

func (s *Store) DeleteQuestion(_ context.Context, questionID uuid.UUID) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	for _, quiz := range s.quizzes {
		for i, question := range quiz.Questions {
			if question.ID == questionID {
				quiz.Questions = append(quiz.Questions[:i], quiz.Questions[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrQuestionNotFound
}

func (s *Store) CountQuestions(_ context.Context, quizID uuid.UUID) (int, error) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return 0, domain.ErrQuizNotFound
	}
	return len(quiz.Questions), nil
}

func (s *Store) ListQuizGames(_ context.Context, quizID uuid.UUID, limit, offset int) ([]domain.QuizGameItem, int, error) {
	s.cmu.Lock()
	title := ""
	if quiz, ok := s.quizzes[quizID]; ok {
		title = quiz.Title
	}
	s.cmu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]domain.QuizGameItem, 0)
	for _, gameID := range s.gameOrder {
		game := s.games[gameID]
		if game == nil || game.QuizID != quizID {
			continue
		}
		all = append(all, domain.QuizGameItem{
			ID:       game.ID,
			QuizID:   game.QuizID,
			UserID:   game.UserID,
			Title:    title,
			Finished: game.Finished(),
			Score:    game.Score,
		})
	}
	return pageSlice(all, limit, offset), len(all), nil
}

func (s *Store) QuizGameStats(_ context.Context, quizID, gameID uuid.UUID) ([]domain.QuestionStat, error) {
	titles := s.questionTitles()

	s.mu.Lock()
	defer s.mu.Unlock()
	game := s.games[gameID]
	if game == nil || game.QuizID != quizID {
		return nil, domain.ErrGameNotFound
	}
	stats := make([]domain.QuestionStat, 0)
	for _, gqID := range s.serveOrder[gameID] {
		gq := s.gameQuestions[gqID]
		if gq == nil || !gq.Resolved() {
			continue
		}
		stats = append(stats, domain.QuestionStat{Title: titles[gq.QuestionID], AnswerScore: gq.AnswerScore})
	}
	return stats, nil
}

func copyAnswers(answers []*domain.Answer) []*domain.Answer {
	copied := make([]*domain.Answer, 0, len(answers))
	for _, answer := range answers {
		a := *answer
		copied = append(copied, &a)
	}
	return copied
}

func pageSlice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
