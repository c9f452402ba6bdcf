package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/auth"
	"quiz-sync-service/internal/domain"
	"quiz-sync-service/internal/infra/postgres"
	pgmigrations "quiz-sync-service/internal/infra/postgres/migrations"
	infraredis "quiz-sync-service/internal/infra/redis"
	"quiz-sync-service/internal/moderation"
)

type stack struct {
	pool    *pgxpool.Pool
	db      *bun.DB
	redis   *goredis.Client
	rooms   *app.RoomRegistry
	control *app.SessionControl
	answers *app.AnswerPipeline
	relays  *app.Relays
	authn   *auth.Authenticator
}

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)
	s := newStack(t, ctx)
	req := require.New(t)

	token, err := auth.SignToken([]byte("integration-secret"), "quiz-sync", "speaker", time.Hour)
	req.NoError(err)
	speaker, err := s.authn.Authenticate(ctx, token)
	req.NoError(err)
	req.Equal(domain.RoleSpeaker, speaker.Role)

	organizer := app.Actor{Identity: speaker}
	_, err = s.control.StartQuiz(ctx, organizer, app.StartQuizCommand{QuizID: "quiz-1", PresentationID: "pres-1"})
	req.NoError(err)
	_, err = s.control.NextQuestion(ctx, organizer, app.NextQuestionCommand{QuizID: "quiz-1", PresentationID: "pres-1", QuestionIndex: 1})
	req.NoError(err)

	state, err := s.control.State(ctx, "quiz-1")
	req.NoError(err)
	req.Equal(1, state.CurrentQuestionIndex)

	alice := domain.Identity{UserID: "alice", Role: domain.RoleAudience, DisplayName: "Alice"}
	bob := domain.Identity{UserID: "bob", Role: domain.RoleAudience, DisplayName: "Bob"}
	_, _, err = s.answers.Submit(ctx, alice, domain.AnswerSubmission{QuizID: "quiz-1", QuestionID: "q1", Answer: "A"})
	req.NoError(err)
	_, _, err = s.answers.Submit(ctx, bob, domain.AnswerSubmission{QuizID: "quiz-1", QuestionID: "q1", Answer: "B"})
	req.NoError(err)
	// Resubmission overwrites the earlier row.
	_, stats, err := s.answers.Submit(ctx, alice, domain.AnswerSubmission{QuizID: "quiz-1", QuestionID: "q1", Answer: "B"})
	req.NoError(err)

	req.Equal(2, stats.ParticipantCount)
	req.Equal(domain.OptionCounts{B: 2}, stats.Questions[0].OptionCounts)
	req.Equal(100, stats.OverallAccuracy)

	var rows int
	req.NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM quiz_answers WHERE quiz_id=$1`, "quiz-1").Scan(&rows))
	req.Equal(2, rows)

	comment, err := s.relays.AddComment(ctx, alice, app.CommentInput{QuizID: "quiz-1", QuestionID: "q1", Content: "darn that was easy"})
	req.NoError(err)
	req.Equal("**** that was easy", comment.Content)
	_, err = s.relays.UpdateComment(ctx, bob, app.CommentUpdate{QuizID: "quiz-1", CommentID: comment.ID, Content: "mine now"})
	req.ErrorIs(err, domain.ErrForbidden)
	req.NoError(s.relays.DeleteComment(ctx, alice, app.CommentDelete{QuizID: "quiz-1", CommentID: comment.ID}))

	_, err = s.relays.SubmitFeedback(ctx, bob, app.FeedbackInput{PresentationID: "pres-1", Type: "TOO_FAST"})
	req.NoError(err)

	req.NoError(s.control.EndQuiz(ctx, organizer, app.EndQuizCommand{QuizID: "quiz-1", PresentationID: "pres-1"}))
	_, err = s.control.State(ctx, "quiz-1")
	req.ErrorIs(err, domain.ErrNoActiveQuestion)

	var status string
	req.NoError(s.pool.QueryRow(ctx, `SELECT status FROM quizzes WHERE id=$1`, "quiz-1").Scan(&status))
	req.Equal(string(domain.QuizCompleted), status)

	_, _, err = s.answers.Submit(ctx, bob, domain.AnswerSubmission{QuizID: "quiz-1", QuestionID: "q2", Answer: "A"})
	req.ErrorIs(err, domain.ErrQuizNotActive)
}

func newStack(t *testing.T, ctx context.Context) stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	quizzes := postgres.NewQuizStore(pool)
	users := postgres.NewUserDirectory(pool)
	require.NoError(t, quizzes.SaveQuiz(ctx, sampleQuiz()))
	for _, u := range []domain.Identity{
		{UserID: "speaker", Role: domain.RoleSpeaker, DisplayName: "Speaker"},
		{UserID: "alice", Role: domain.RoleAudience, DisplayName: "Alice"},
		{UserID: "bob", Role: domain.RoleAudience, DisplayName: "Bob"},
	} {
		require.NoError(t, users.SaveUser(ctx, u))
	}

	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	moderator, err := moderation.NewModerator([]string{"darn"}, '*')
	require.NoError(t, err)

	rooms := app.NewRoomRegistry(log)
	repo := infraredis.NewQuizRepository(client, quizzes, 5*time.Minute, log)
	index := infraredis.NewPresentationIndex(client, time.Hour)
	discussion := postgres.NewDiscussionRepository(db)

	return stack{
		pool:    pool,
		db:      db,
		redis:   client,
		rooms:   rooms,
		control: app.NewSessionControl(repo, infraredis.NewProgressionStore(client, time.Hour), index, rooms, rooms, log),
		answers: app.NewAnswerPipeline(repo, postgres.NewAnswerRepository(pool), rooms, log),
		relays:  app.NewRelays(discussion, discussion, repo, index, rooms, moderator, log),
		authn:   auth.NewAuthenticator([]byte("integration-secret"), "quiz-sync", users),
	}
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
}

func startRedis(t *testing.T, ctx context.Context) string {
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func sampleQuiz() domain.Quiz {
	options := []domain.Option{{Label: "A", Text: "3"}, {Label: "B", Text: "4"}, {Label: "C", Text: "5"}, {Label: "D", Text: "22"}}
	return domain.Quiz{
		ID:             "quiz-1",
		PresentationID: "pres-1",
		Title:          "Arithmetic",
		Status:         domain.QuizDraft,
		TimeLimit:      20,
		Questions: []domain.Question{
			{ID: "q1", QuizID: "quiz-1", Position: 0, Text: "What is 2 + 2?", Options: options, CorrectAnswer: "B"},
			{ID: "q2", QuizID: "quiz-1", Position: 1, Text: "What is 1 + 2?", Options: options, CorrectAnswer: "A"},
		},
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
