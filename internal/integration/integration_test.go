package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/infra/postgres"
	pgmigrations "quiz-game-service/internal/infra/postgres/migrations"
	infraredis "quiz-game-service/internal/infra/redis"
)

func TestPlayThroughEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := postgres.NewStore(db)
	content := infraredis.NewContentCache(redisClient, postgres.NewQuizLoader(pool), 5*time.Minute)
	quizzes := app.NewQuizService(store, content)
	games := app.NewGameService(store, content)

	owner, player := uuid.New(), uuid.New()

	quizID, err := quizzes.CreateQuiz(ctx, owner, "Capitals")
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	err = quizzes.AddQuestions(ctx, quizID, owner, []app.QuestionInput{
		{
			Title: "Capital of France?",
			Type:  domain.SingleAnswer,
			Answers: []app.AnswerInput{
				{Value: "Paris", IsCorrect: true},
				{Value: "Lyon"},
			},
		},
		{
			Title: "Capital of Japan?",
			Type:  domain.SingleAnswer,
			Answers: []app.AnswerInput{
				{Value: "Tokyo", IsCorrect: true},
				{Value: "Osaka"},
			},
		},
	})
	if err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if err := quizzes.PublishQuiz(ctx, quizID, owner); err != nil {
		t.Fatalf("publish: %v", err)
	}

	questions, err := quizzes.ListQuestions(ctx, quizID, owner)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	answerByValue := make(map[string]uuid.UUID)
	for _, question := range questions {
		for _, answer := range question.Answers {
			answerByValue[answer.Value] = answer.ID
		}
	}

	gameID, err := games.Start(ctx, quizID, player)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if again, err := games.Start(ctx, quizID, player); err != nil || again != gameID {
		t.Fatalf("expected idempotent start, got %s %v", again, err)
	}

	first, err := games.NextQuestion(ctx, gameID, player)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if first.Title != "Capital of France?" {
		t.Fatalf("expected first question, got %q", first.Title)
	}
	if err := games.Answer(ctx, gameID, first.ID, player, []uuid.UUID{answerByValue["Paris"]}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	// A resolved question stays resolved.
	err = games.Answer(ctx, gameID, first.ID, player, []uuid.UUID{answerByValue["Lyon"]})
	if !errors.Is(err, domain.ErrQuestionResolved) {
		t.Fatalf("expected ErrQuestionResolved, got %v", err)
	}

	second, err := games.NextQuestion(ctx, gameID, player)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := games.Skip(ctx, gameID, second.ID, player); err != nil {
		t.Fatalf("skip: %v", err)
	}

	if _, err := games.NextQuestion(ctx, gameID, player); !errors.Is(err, domain.ErrGameFinished) {
		t.Fatalf("expected ErrGameFinished, got %v", err)
	}

	results, err := games.Results(ctx, gameID, player)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Score != 1 || results.ScorePercentage != 50 {
		t.Fatalf("expected score 1 at 50%%, got %+v", results)
	}
	if len(results.QuestionStats) != 2 || results.QuestionStats[0].AnswerScore != 1 || results.QuestionStats[1].AnswerScore != 0 {
		t.Fatalf("unexpected stats %+v", results.QuestionStats)
	}

	// Quiz content is cached in Redis after the first play-path load.
	keys, err := redisClient.Keys(ctx, "quiz:*:content").Result()
	if err != nil {
		t.Fatalf("redis keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected one cached quiz, got %v", keys)
	}

	// Soft delete invalidates the cache and hides the quiz from new players.
	if err := quizzes.DeleteQuiz(ctx, quizID, owner); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := games.Start(ctx, quizID, uuid.New()); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound after delete, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
