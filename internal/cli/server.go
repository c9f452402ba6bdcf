package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/auth"
	"quiz-sync-service/internal/config"
	"quiz-sync-service/internal/infra/memory"
	"quiz-sync-service/internal/infra/postgres"
	redisstore "quiz-sync-service/internal/infra/redis"
	"quiz-sync-service/internal/moderation"
	transport "quiz-sync-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends are the storage adapters chosen from the configuration.
type backends struct {
	quizzes  app.QuizRepository
	progress app.ProgressionStore
	index    app.PresentationIndex
	answers  app.AnswerRepository
	feedback app.FeedbackRepository
	comments app.CommentRepository
	users    auth.UserDirectory

	redis   *redis.Client
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.Log.Level)
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret not configured (auth.jwt_secret or JWT_SECRET)")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	moderator, err := moderation.NewModerator(cfg.Moderation.BannedWords, cfg.ReplacementRune())
	if err != nil {
		return fmt.Errorf("build moderator: %w", err)
	}

	rooms := app.NewRoomRegistry(log)
	var bus app.Broadcaster = rooms
	if b.redis != nil {
		fanout := redisstore.NewRoomFanout(b.redis, rooms, log)
		if err := fanout.Start(ctx); err != nil {
			return fmt.Errorf("start room fanout: %w", err)
		}
		bus = fanout
	}

	control := app.NewSessionControl(b.quizzes, b.progress, b.index, rooms, bus, log)
	services := transport.Services{
		Rooms:   rooms,
		Control: control,
		Answers: app.NewAnswerPipeline(b.quizzes, b.answers, bus, log),
		Relays:  app.NewRelays(b.feedback, b.comments, b.quizzes, b.index, bus, moderator, log),
	}
	authn := auth.NewAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, b.users)

	ws := transport.NewWSHandler(authn, services, transport.WSOptions{
		AckTimeout: config.TTLDuration(cfg.Server.AckTimeout, 5*time.Second),
		SendBuffer: cfg.Server.SendBuffer,
	}, log)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(ws, transport.NewControlHandler(authn, control, log)),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		// Hijacked sockets are not tracked by http.Server.
		ws.Shutdown()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openBackends picks Postgres for durable data and Redis for shared state,
// falling back to in-memory adapters with a demo catalogue.
func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 12*time.Hour)

	var source memory.QuizSource
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			b.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		usePostgres(b, pool, db)
		source = postgres.NewQuizStore(pool)
		log.Info("using postgres persistence")
	} else {
		catalog := memory.NewQuizCatalog(demoQuizzes()...)
		discussion := memory.NewDiscussionStore()
		b.answers = memory.NewAnswerStore()
		b.feedback = discussion
		b.comments = discussion
		b.users = memory.NewUserDirectory(demoUsers()...)
		source = catalog
		log.Warn("postgres not configured, using in-memory demo data")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			b.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.redis = client
		b.quizzes = redisstore.NewQuizRepository(client, source, quizTTL, log)
		b.progress = redisstore.NewProgressionStore(client, redisTTL)
		b.index = redisstore.NewPresentationIndex(client, redisTTL)
		log.Info("using redis for shared state", "addr", cfg.Redis.Addr)
	} else {
		b.quizzes = memory.NewQuizRepository(source, quizTTL)
		b.progress = memory.NewProgressionStore()
		b.index = memory.NewPresentationIndex()
	}
	return b, nil
}

func usePostgres(b *backends, pool *pgxpool.Pool, db *bun.DB) {
	discussion := postgres.NewDiscussionRepository(db)
	b.answers = postgres.NewAnswerRepository(pool)
	b.feedback = discussion
	b.comments = discussion
	b.users = postgres.NewUserDirectory(pool)
}
