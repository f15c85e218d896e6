package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quizbot/internal/config"
	"quizbot/internal/domain"
	"quizbot/internal/engine"
	"quizbot/internal/infra/memory"
	infrapg "quizbot/internal/infra/postgres"
	infraredis "quizbot/internal/infra/redis"
	transport "quizbot/internal/transport/http"
	localtransport "quizbot/internal/transport/local"
	"quizbot/internal/transport/telegram"
)

// ledgerWithStats is what the wiring needs from a score ledger: the engine's
// write side plus the /stats read side.
type ledgerWithStats interface {
	engine.ScoreLedger
	telegram.StatsReader
}

// NewStartCmd builds the CLI subcommand to start the service.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz service",
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
	logger := newLogger()

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

	var bank engine.QuestionBank = memory.NewQuestionBank(sampleQuestions())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		bank = infrapg.NewQuestionBank(pool)
	}
	bank = memory.NewCachedBank(bank, config.Duration(cfg.Bank.TTL, 10*time.Minute))

	var ledger ledgerWithStats = memory.NewScoreLedger()
	if cfg.Redis.Addr != "" {
		ledger = infraredis.NewScoreLedger(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		token = cfg.Telegram.Token
	}

	var api *tgbotapi.BotAPI
	var engineTransport engine.Transport = localtransport.NewTransport(logger)
	if token != "" {
		api, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			return err
		}
		engineTransport = telegram.NewTransport(api)
	}

	eng := engine.New(engineTransport, bank, ledger, logger)

	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	if api != nil {
		bot := telegram.NewBot(api, eng, ledger, logger, telegram.Options{
			DefaultQuestions: cfg.Quiz.DefaultQuestions,
			MaxQuestions:     cfg.Quiz.MaxQuestions,
			OpenFor:          config.Duration(cfg.Quiz.Open, 30*time.Second),
			Penalty:          cfg.Quiz.Penalty,
		})
		go bot.Run(botCtx)
	}

	wsHandler := transport.NewWSHandler(eng)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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
	stopBot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLogger builds the service-wide structured logger.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// sampleQuestions seeds the in-memory bank when no Postgres is configured.
func sampleQuestions() []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{
			ID:            1,
			Text:          "What is the capital of France?",
			Options:       []string{"Berlin", "Madrid", "Paris", "Rome"},
			CorrectOption: 2,
			Category:      "Geography",
		},
		{
			ID:            2,
			Text:          "Which planet is known as the Red Planet?",
			Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectOption: 1,
			Category:      "Science",
		},
	}
}
