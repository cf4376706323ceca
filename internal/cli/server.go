package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medexam-service/internal/app"
	"medexam-service/internal/config"
	"medexam-service/internal/infra/memory"
	pgstore "medexam-service/internal/infra/postgres"
	rediscache "medexam-service/internal/infra/redis"
	"medexam-service/internal/logger"
	transport "medexam-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
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

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		questions app.QuestionRepository
		records   app.RecordStore
		bank      transport.QuestionBank
	)
	if pool != nil {
		store := pgstore.NewQuestionStore(pool)
		questions = store
		bank = store
		records = pgstore.NewRecordStore(pool)
	} else {
		store := memory.NewQuestionStore(sampleQuestions())
		questions = store
		bank = store
		records = memory.NewRecordStore()
		log.Info("no postgres configured, using in-memory stores with sample questions")
	}

	if redisClient != nil {
		questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
		questions = rediscache.NewQuestionRepository(redisClient, questions, questionTTL)
	}

	wsHandler := transport.NewWSHandler(questions, records, log)
	questionsHandler := transport.NewQuestionsHandler(bank, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", questionsHandler.Healthz)
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/questions", questionsHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting exam service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
