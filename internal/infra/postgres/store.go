package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// Store is the bun-backed implementation of app.CatalogStore and
// app.GameStore. Engine transactions lock the game row with FOR UPDATE, so
// concurrent operations on one game serialize and write-once transitions are
// enforced by guarded updates.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.GameTx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &gameTx{db: tx})
	})
}

type gameTx struct {
	db bun.Tx
}

func (t *gameTx) GameByQuizAndUser(ctx context.Context, quizID, userID uuid.UUID) (*domain.Game, error) {
	game := new(domain.Game)
	err := t.db.NewSelect().Model(game).
		Where("g.quiz_id = ?", quizID).
		Where("g.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return game, nil
}

func (t *gameTx) CreateGame(ctx context.Context, game *domain.Game) error {
	if _, err := t.db.NewInsert().Model(game).Exec(ctx); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (t *gameTx) GameForUpdate(ctx context.Context, gameID, userID uuid.UUID) (*domain.Game, error) {
	game := new(domain.Game)
	err := t.db.NewSelect().Model(game).
		Where("g.id = ?", gameID).
		Where("g.user_id = ?", userID).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game for update: %w", err)
	}
	return game, nil
}

func (t *gameTx) Game(ctx context.Context, gameID, userID uuid.UUID) (*domain.Game, error) {
	game := new(domain.Game)
	err := t.db.NewSelect().Model(game).
		Where("g.id = ?", gameID).
		Where("g.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return game, nil
}

func (t *gameTx) GetOrCreateGameQuestion(ctx context.Context, gameID, questionID uuid.UUID) (*domain.GameQuestion, error) {
	gq := &domain.GameQuestion{
		ID:         uuid.New(),
		GameID:     gameID,
		QuestionID: questionID,
		State:      domain.QuestionPending,
	}
	// The unique (game_id, question_id) index makes this race-free: the
	// loser's insert is a no-op and the follow-up read observes the winner.
	_, err := t.db.NewInsert().Model(gq).
		On("CONFLICT (game_id, question_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert game question: %w", err)
	}

	stored := new(domain.GameQuestion)
	err = t.db.NewSelect().Model(stored).
		Where("gq.game_id = ?", gameID).
		Where("gq.question_id = ?", questionID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select game question: %w", err)
	}
	return stored, nil
}

func (t *gameTx) GameQuestion(ctx context.Context, gameID, gameQuestionID uuid.UUID) (*domain.GameQuestion, error) {
	gq := new(domain.GameQuestion)
	err := t.db.NewSelect().Model(gq).
		Where("gq.id = ?", gameQuestionID).
		Where("gq.game_id = ?", gameID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select game question: %w", err)
	}
	return gq, nil
}

func (t *gameTx) ResolveGameQuestion(ctx context.Context, gameQuestionID uuid.UUID, state domain.ResolutionState, score float64) error {
	res, err := t.db.NewUpdate().Model((*domain.GameQuestion)(nil)).
		Set("state = ?", state).
		Set("answer_score = ?", score).
		Set("updated_at = now()").
		Where("id = ?", gameQuestionID).
		Where("state = ?", domain.QuestionPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("resolve game question: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve game question: %w", err)
	}
	if rows == 0 {
		return domain.ErrQuestionResolved
	}
	return nil
}

func (t *gameTx) AdvanceGame(ctx context.Context, gameID uuid.UUID, scoreDelta float64) error {
	_, err := t.db.NewUpdate().Model((*domain.Game)(nil)).
		Set("score = score + ?", scoreDelta).
		Set("question_offset = question_offset + 1").
		Set("updated_at = now()").
		Where("id = ?", gameID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance game: %w", err)
	}
	return nil
}

func (t *gameTx) FinishGame(ctx context.Context, gameID uuid.UUID) error {
	_, err := t.db.NewUpdate().Model((*domain.Game)(nil)).
		Set("state = ?", domain.GameFinished).
		Set("updated_at = now()").
		Where("id = ?", gameID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	return nil
}

func (t *gameTx) RecordChoices(ctx context.Context, gameQuestionID uuid.UUID, choices []uuid.UUID) error {
	if len(choices) == 0 {
		return nil
	}
	answers := make([]*domain.GameAnswer, 0, len(choices))
	for _, choice := range choices {
		answers = append(answers, &domain.GameAnswer{
			ID:             uuid.New(),
			GameQuestionID: gameQuestionID,
			Choice:         choice,
		})
	}
	if _, err := t.db.NewInsert().Model(&answers).Exec(ctx); err != nil {
		return fmt.Errorf("insert game answers: %w", err)
	}
	return nil
}

func (t *gameTx) ResolvedStats(ctx context.Context, gameID uuid.UUID) ([]domain.QuestionStat, error) {
	return questionStats(ctx, t.db, `
		SELECT qn.title, gq.answer_score
		FROM game_questions AS gq
		JOIN questions AS qn ON qn.id = gq.question_id
		WHERE gq.game_id = ? AND gq.state != ?
		ORDER BY gq.created_at ASC`, gameID, domain.QuestionPending)
}

func (s *Store) ListGames(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.GameListItem, int, error) {
	total, err := s.db.NewSelect().Model((*domain.Game)(nil)).
		Where("g.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, q.title, g.state, g.created_at
		FROM games AS g
		JOIN quizzes AS q ON q.id = g.quiz_id
		WHERE g.user_id = ?
		ORDER BY g.created_at DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	items := make([]domain.GameListItem, 0)
	for rows.Next() {
		var item domain.GameListItem
		var state domain.GameState
		if err := rows.Scan(&item.ID, &item.Title, &state, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan game row: %w", err)
		}
		item.Finished = state == domain.GameFinished
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate game rows: %w", err)
	}
	return items, total, nil
}

// --- catalog ---

func (s *Store) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if _, err := s.db.NewInsert().Model(quiz).Exec(ctx); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *Store) QuizByOwner(ctx context.Context, quizID, userID uuid.UUID) (*domain.Quiz, error) {
	quiz := new(domain.Quiz)
	err := s.db.NewSelect().Model(quiz).
		Where("q.id = ?", quizID).
		Where("q.user_id = ?", userID).
		Where("NOT q.deleted").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.QuizListItem, int, error) {
	total, err := s.db.NewSelect().Model((*domain.Quiz)(nil)).
		Where("q.user_id = ?", userID).
		Where("NOT q.deleted").
		Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title, q.published, q.created_at
		FROM quizzes AS q
		WHERE q.user_id = ? AND NOT q.deleted
		ORDER BY q.created_at ASC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("select quizzes: %w", err)
	}
	defer rows.Close()

	items := make([]domain.QuizListItem, 0)
	for rows.Next() {
		var item domain.QuizListItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Published, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan quiz row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate quiz rows: %w", err)
	}
	return items, total, nil
}

func (s *Store) UpdateQuizTitle(ctx context.Context, quizID uuid.UUID, title string) error {
	_, err := s.db.NewUpdate().Model((*domain.Quiz)(nil)).
		Set("title = ?", title).
		Set("updated_at = now()").
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update quiz title: %w", err)
	}
	return nil
}

func (s *Store) MarkPublished(ctx context.Context, quizID uuid.UUID) error {
	_, err := s.db.NewUpdate().Model((*domain.Quiz)(nil)).
		Set("published = TRUE").
		Set("updated_at = now()").
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("publish quiz: %w", err)
	}
	return nil
}

func (s *Store) MarkDeleted(ctx context.Context, quizID uuid.UUID) error {
	_, err := s.db.NewUpdate().Model((*domain.Quiz)(nil)).
		Set("deleted = TRUE").
		Set("updated_at = now()").
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func (s *Store) AddQuestions(ctx context.Context, quizID uuid.UUID, questions []*domain.Question) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var next int
		err := tx.NewSelect().Model((*domain.Question)(nil)).
			ColumnExpr("COALESCE(MAX(qn.position) + 1, 0)").
			Where("qn.quiz_id = ?", quizID).
			Scan(ctx, &next)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}

		answers := make([]*domain.Answer, 0)
		for i, question := range questions {
			question.Position = next + i
			answers = append(answers, question.Answers...)
		}
		if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		return nil
	})
}

func (s *Store) QuestionsByQuiz(ctx context.Context, quizID uuid.UUID) ([]*domain.Question, error) {
	questions := make([]*domain.Question, 0)
	err := s.db.NewSelect().Model(&questions).
		Relation("Answers").
		Where("qn.quiz_id = ?", quizID).
		Order("qn.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	return questions, nil
}

func (s *Store) QuestionByID(ctx context.Context, quizID, questionID uuid.UUID) (*domain.Question, error) {
	question := new(domain.Question)
	err := s.db.NewSelect().Model(question).
		Relation("Answers").
		Where("qn.id = ?", questionID).
		Where("qn.quiz_id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select question: %w", err)
	}
	return question, nil
}

func (s *Store) ReplaceQuestion(ctx context.Context, question *domain.Question, replaceAnswers bool) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*domain.Question)(nil)).
			Set("title = ?", question.Title).
			Set("type = ?", question.Type).
			Where("id = ?", question.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		if !replaceAnswers {
			return nil
		}
		_, err = tx.NewDelete().Model((*domain.Answer)(nil)).
			Where("question_id = ?", question.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		answers := question.Answers
		if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID uuid.UUID) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*domain.Answer)(nil)).
			Where("question_id = ?", questionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		_, err = tx.NewDelete().Model((*domain.Question)(nil)).
			Where("id = ?", questionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		return nil
	})
}

func (s *Store) CountQuestions(ctx context.Context, quizID uuid.UUID) (int, error) {
	count, err := s.db.NewSelect().Model((*domain.Question)(nil)).
		Where("qn.quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (s *Store) ListQuizGames(ctx context.Context, quizID uuid.UUID, limit, offset int) ([]domain.QuizGameItem, int, error) {
	total, err := s.db.NewSelect().Model((*domain.Game)(nil)).
		Where("g.quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count quiz games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.quiz_id, g.user_id, q.title, g.state, g.score
		FROM games AS g
		JOIN quizzes AS q ON q.id = g.quiz_id
		WHERE g.quiz_id = ?
		ORDER BY g.created_at ASC
		LIMIT ? OFFSET ?`, quizID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("select quiz games: %w", err)
	}
	defer rows.Close()

	items := make([]domain.QuizGameItem, 0)
	for rows.Next() {
		var item domain.QuizGameItem
		var state domain.GameState
		if err := rows.Scan(&item.ID, &item.QuizID, &item.UserID, &item.Title, &state, &item.Score); err != nil {
			return nil, 0, fmt.Errorf("scan quiz game row: %w", err)
		}
		item.Finished = state == domain.GameFinished
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate quiz game rows: %w", err)
	}
	return items, total, nil
}

func (s *Store) QuizGameStats(ctx context.Context, quizID, gameID uuid.UUID) ([]domain.QuestionStat, error) {
	return questionStats(ctx, s.db, `
		SELECT qn.title, gq.answer_score
		FROM game_questions AS gq
		JOIN questions AS qn ON qn.id = gq.question_id
		WHERE gq.game_id = ? AND qn.quiz_id = ? AND gq.state != 'pending'
		ORDER BY gq.created_at ASC`, gameID, quizID)
}

func questionStats(ctx context.Context, db bun.IDB, query string, args ...interface{}) ([]domain.QuestionStat, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select question stats: %w", err)
	}
	defer rows.Close()

	stats := make([]domain.QuestionStat, 0)
	for rows.Next() {
		var stat domain.QuestionStat
		if err := rows.Scan(&stat.Title, &stat.AnswerScore); err != nil {
			return nil, fmt.Errorf("scan question stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question stats: %w", err)
	}
	return stats, nil
}
