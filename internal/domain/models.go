package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// QuestionType is the closed set of supported question kinds.
type QuestionType string

const (
	SingleAnswer    QuestionType = "SINGLE_ANSWER"
	MultipleAnswers QuestionType = "MULTIPLE_ANSWERS"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	return t == SingleAnswer || t == MultipleAnswers
}

// GameState tracks a play-through lifecycle. A game row only exists once the
// player has started, so there is no explicit "not started" state.
type GameState string

const (
	GameInProgress GameState = "in_progress"
	GameFinished   GameState = "finished"
)

// ResolutionState tracks a single served question within a game. Answered and
// skipped are terminal and mutually exclusive.
type ResolutionState string

const (
	QuestionPending  ResolutionState = "pending"
	QuestionAnswered ResolutionState = "answered"
	QuestionSkipped  ResolutionState = "skipped"
)

// Quiz is an authored, ordered set of questions owned by a user. Published
// quizzes are immutable and publish is one-way; delete is a soft delete.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes,alias:q" json:"-"`

	ID        uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	Title     string      `bun:"title,notnull" json:"title"`
	Published bool        `bun:"published,notnull" json:"published"`
	Deleted   bool        `bun:"deleted,notnull" json:"-"`
	UserID    uuid.UUID   `bun:"user_id,type:uuid,notnull" json:"-"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time   `bun:"updated_at,nullzero" json:"-"`
	Questions []*Question `bun:"rel:has-many,join:id=quiz_id" json:"questions,omitempty"`
}

// Question belongs to exactly one quiz. Position is the stable creation order
// the sequencer pages through.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:qn" json:"-"`

	ID        uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	QuizID    uuid.UUID    `bun:"quiz_id,type:uuid,notnull" json:"-"`
	Title     string       `bun:"title,notnull" json:"title"`
	Type      QuestionType `bun:"type,notnull" json:"type"`
	Position  int          `bun:"position,notnull" json:"position"`
	CreatedAt time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	Answers   []*Answer    `bun:"rel:has-many,join:id=question_id" json:"answers,omitempty"`
}

// Answer is one choice within a question. IsCorrect never leaves the server
// on play-facing payloads.
type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:a" json:"-"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	QuestionID uuid.UUID `bun:"question_id,type:uuid,notnull" json:"-"`
	Value      string    `bun:"value,notnull" json:"value"`
	IsCorrect  bool      `bun:"is_correct,notnull" json:"is_correct"`
}

// Game is one user's play-through of one quiz. Offset counts resolved
// questions and doubles as the sequencer cursor; it only ever grows.
type Game struct {
	bun.BaseModel `bun:"table:games,alias:g" json:"-"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull" json:"-"`
	QuizID    uuid.UUID `bun:"quiz_id,type:uuid,notnull" json:"quiz_id"`
	State     GameState `bun:"state,notnull" json:"state"`
	Score     float64   `bun:"score,notnull" json:"score"`
	Offset    int       `bun:"question_offset,notnull" json:"-"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"-"`
}

// Finished reports whether the game reached its terminal state.
func (g *Game) Finished() bool { return g.State == GameFinished }

// GameQuestion records the resolution of a single question within a game.
// Rows are created lazily the first time a question is served and transition
// out of pending exactly once.
type GameQuestion struct {
	bun.BaseModel `bun:"table:game_questions,alias:gq" json:"-"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	GameID      uuid.UUID       `bun:"game_id,type:uuid,notnull" json:"-"`
	QuestionID  uuid.UUID       `bun:"question_id,type:uuid,notnull" json:"-"`
	State       ResolutionState `bun:"state,notnull" json:"state"`
	AnswerScore float64         `bun:"answer_score,notnull" json:"answer_score"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero" json:"-"`
}

// Resolved reports whether the question left the pending state.
func (gq *GameQuestion) Resolved() bool { return gq.State != QuestionPending }

// GameAnswer is one submitted choice within an answered game question.
type GameAnswer struct {
	bun.BaseModel `bun:"table:game_answers,alias:ga" json:"-"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	GameQuestionID uuid.UUID `bun:"game_question_id,type:uuid,notnull" json:"-"`
	Choice         uuid.UUID `bun:"choice,type:uuid,notnull" json:"choice"`
}

// QuestionStat is one row of a game's final breakdown, in the order the
// questions were resolved.
type QuestionStat struct {
	Title       string
	AnswerScore float64
}

// GameListItem is the projection used by the per-user play history.
type GameListItem struct {
	ID        uuid.UUID
	Title     string
	Finished  bool
	CreatedAt time.Time
}

// QuizGameItem is the projection used when a quiz owner browses games played
// against one of their quizzes.
type QuizGameItem struct {
	ID       uuid.UUID
	QuizID   uuid.UUID
	UserID   uuid.UUID
	Title    string
	Finished bool
	Score    float64
}

// QuizListItem is the projection used by the authoring quiz list.
type QuizListItem struct {
	ID        uuid.UUID
	Title     string
	Published bool
	CreatedAt time.Time
}

// FinalResults aggregates a finished game.
type FinalResults struct {
	Score           float64
	ScorePercentage float64
	QuestionStats   []QuestionStat
}
