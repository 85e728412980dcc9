package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/teachertools/classbank/classbank"
	"github.com/teachertools/classbank/classbank/database"
	"github.com/teachertools/classbank/classbank/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting ClassBank",
		slog.String("version", version),
		slog.String("commit", commit))

	runScheduler := flag.Bool("loan-scheduler", true, "Whether to run the loan collection scheduler")
	collectNow := flag.Bool("collect-loans", false, "Run one loan collection pass on startup")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := classbank.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbConfig := database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	}

	db, err := database.New(ctx, dbConfig)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	// Config-driven setting defaults only apply on first seed; teacher
	// overrides in the settings table always win afterwards
	settingDefaults := map[string]string{}
	if cfg.Bank.DailyPlayLimit > 0 {
		settingDefaults["daily_play_limit"] = strconv.Itoa(cfg.Bank.DailyPlayLimit)
	}
	if cfg.Bank.LoanMonthlyRate != "" {
		settingDefaults["loan_monthly_rate"] = cfg.Bank.LoanMonthlyRate
	}

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx, settingDefaults); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	defer db.Close()

	b := classbank.New(*cfg, version, commit)
	b.DB = db

	if err := b.Setup(); err != nil {
		slog.Error("Failed to set up engines",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	// Warm the settings cache so the first operation does not pay the load
	if _, err := b.Settings.Snapshot(ctx); err != nil {
		slog.Warn("Settings cache warm failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}

	if *collectNow {
		slog.Info("Running startup loan collection pass...")
		if err := b.LoanScheduler.RunOnce(ctx); err != nil {
			slog.Error("Startup loan collection failed",
				slog.String("type", "sys"),
				slog.Any("error", err))
			os.Exit(-1)
		}
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if *runScheduler {
		go b.LoanScheduler.Start(schedCtx)
	}

	slog.Info("ClassBank is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")
}
