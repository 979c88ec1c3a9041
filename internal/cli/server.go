package cli

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"trivia-battle-service/internal/app"
	"trivia-battle-service/internal/config"
	"trivia-battle-service/internal/domain"
	"trivia-battle-service/internal/infra/memory"
	pgloader "trivia-battle-service/internal/infra/postgres"
	redisinfra "trivia-battle-service/internal/infra/redis"
	transport "trivia-battle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionBank(loader, questionTTL)
	}

	var presence app.Presence = app.NoopPresence{}
	if redisClient != nil {
		presence = redisinfra.NewPresenceStore(redisClient, redisTTL)
	}

	turnDelay := config.TTLDuration(cfg.Game.TurnDelay, 2*time.Second)
	service := app.NewGameServiceWithOptions(bank, presence,
		rand.New(rand.NewSource(time.Now().UnixNano())), turnDelay)
	wsHandler := transport.NewWSHandler(service)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia battle server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal pool for running without Postgres; swap
// in the DB-backed loader for real content.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           1,
			Text:         "Which movie won the first Academy Award for Best Picture?",
			Options:      []string{"Wings", "Sunrise", "Metropolis", "The Jazz Singer"},
			CorrectIndex: 0,
			Level:        domain.LevelHard,
		},
		{
			ID:           2,
			Text:         "Who directed Jurassic Park?",
			Options:      []string{"James Cameron", "Steven Spielberg", "Ridley Scott", "George Lucas"},
			CorrectIndex: 1,
			Level:        domain.LevelEasy,
		},
		{
			ID:           3,
			Text:         "Which film features the quote \"Here's looking at you, kid\"?",
			Options:      []string{"Citizen Kane", "Gone with the Wind", "Casablanca", "The Maltese Falcon"},
			CorrectIndex: 2,
			Level:        domain.LevelMedium,
		},
		{
			ID:           4,
			Text:         "In which year was the original Star Wars released?",
			Options:      []string{"1975", "1977", "1979", "1981"},
			CorrectIndex: 1,
			Level:        domain.LevelEasy,
		},
	}
}
