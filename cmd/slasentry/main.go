package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/chatapp/telegram"
	"github.com/avito-tech/accountant-sla/classify"
	"github.com/avito-tech/accountant-sla/delivery"
	"github.com/avito-tech/accountant-sla/ingest"
	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/internal/version"
	"github.com/avito-tech/accountant-sla/metrics"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/recovery"
	"github.com/avito-tech/accountant-sla/retention"
	"github.com/avito-tech/accountant-sla/rpcapi"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db"
	"github.com/avito-tech/accountant-sla/timer"
)

var rootCmd = &cobra.Command{
	Use:   "slasentry",
	Short: `Tracks accountant response SLAs in chat channels and escalates breaches to managers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: run,
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 8080)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address the HTTP server binds to")
	rootCmd.PersistentFlags().Int("port", 8080, "port the HTTP server listens on")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "public URL of this instance, used to register the Telegram webhook")

	for _, name := range []string{"mode", "addr", "port", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("slasentry")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func buildProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Addr:        viper.GetString("addr"),
		Port:        viper.GetInt("port"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		InstanceURL: viper.GetString("instance-url"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func run(cmd *cobra.Command, args []string) error {
	p, err := buildProfile()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver, err := db.NewDriver(p)
	if err != nil {
		printDatabaseError(err, p)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer driver.Close()

	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	queueClient := queue.NewClient(p.RedisAddr, p.RedisPassword, p.RedisDB)
	defer queueClient.Close()

	reg := metrics.New()

	tm := timer.NewManager(st, queueClient, p.DefaultTimezone, p.DefaultWarningPercent)
	alerts := alert.NewService(st, queueClient, tm, p.DefaultTimezone)

	var aiClassifier classify.AIClassifier
	if p.AIClassifierEnabled {
		aiClassifier = classify.NewOpenAIClassifier(p.AIClassifierAPIKey, p.AIClassifierBaseURL, p.AIClassifierModel)
	}
	cascade := classify.NewService(st, aiClassifier, classify.DefaultCircuitBreaker(), classify.Config{
		AIConfidenceThreshold:      p.AIConfidenceThreshold,
		KeywordConfidenceThreshold: 0.5,
		CacheTTL:                   24 * time.Hour,
	})
	cascade.OnAIError(func(kind classify.ErrorKind) { reg.RecordClassifierError(string(kind)) })

	ing := ingest.NewService(st, cascade, tm, alerts)
	defer ing.Close()

	channel, err := telegram.New(telegram.Config{BotToken: p.TelegramBotToken, WebhookSecret: p.WebhookSecret})
	if err != nil {
		return fmt.Errorf("failed to create telegram channel: %w", err)
	}
	defer channel.Close()

	worker := delivery.NewWorker(st, alerts, channel)
	callback := delivery.NewCallbackHandler(st, alerts, channel)

	recoveryService := recovery.NewService(st, queueClient, alerts, p.DefaultTimezone)
	report, err := recoveryService.Run(ctx)
	if err != nil {
		slog.Error("failed to reconcile sla timers at startup", "error", err)
	} else {
		slog.Info("sla timer recovery complete",
			"total_pending", report.TotalPending, "rescheduled", report.Rescheduled,
			"breached", report.Breached, "already_active", report.AlreadyActive, "failed", report.Failed)
	}

	queueServer := queue.NewServer(queue.ServerConfig{
		RedisAddr: p.RedisAddr, RedisPassword: p.RedisPassword, RedisDB: p.RedisDB,
		Concurrency: 10, AlertsRateLimit: 30,
	})
	registerJobHandlers(queueServer, alerts, worker)

	queueErrCh := make(chan error, 1)
	go func() {
		queueErrCh <- queueServer.Run()
	}()

	sweeper := retention.NewSweeper(st)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention sweeper: %w", err)
	}

	rpc := &rpcapi.Server{
		Store: st, Timer: tm, Alerts: alerts, Classify: cascade, Ingest: ing,
		Callback: callback, Channel: channel, Metrics: reg,
	}
	e := rpc.New()

	addr := fmt.Sprintf("%s:%d", p.Addr, p.Port)
	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- e.Start(addr)
	}()

	printGreetings(p)

	c := make(chan os.Signal, 1)
	signal.Notify(c, terminationSignals...)

	select {
	case <-c:
		slog.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
		}
	case err := <-queueErrCh:
		if err != nil {
			slog.Error("queue server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server cleanly", "error", err)
	}
	queueServer.Shutdown()
	sweeper.Stop(shutdownCtx)

	return nil
}

// registerJobHandlers wires the asynq job names emitted by the timer and
// alert packages onto the services that process them.
func registerJobHandlers(qs *queue.Server, alerts *alert.Service, worker *delivery.Worker) {
	qs.Handle(timer.JobBreachCheck, queue.QueueSLATimers, jsonPayloadHandler(func(ctx context.Context, payload timer.JobPayload) error {
		return alerts.OnBreachCheck(ctx, payload.RequestID)
	}))
	qs.Handle(timer.JobWarning, queue.QueueSLATimers, jsonPayloadHandler(func(ctx context.Context, payload timer.JobPayload) error {
		return alerts.OnWarning(ctx, payload.RequestID)
	}))
	qs.Handle(alert.JobEscalation, queue.QueueSLATimers, jsonPayloadHandler(func(ctx context.Context, payload alert.EscalationPayload) error {
		return alerts.OnEscalation(ctx, payload.RequestID, payload.Level)
	}))
	qs.Handle(alert.JobSendAlert, queue.QueueAlerts, func(ctx context.Context, task *asynq.Task) error {
		return worker.HandleSendAlert(ctx, task.Payload())
	})
}

// jsonPayloadHandler adapts a typed job handler to the asynq.Task-based
// signature queue.Server.Handle expects.
func jsonPayloadHandler[T any](fn func(context.Context, T) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload T
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
		return fn(ctx, payload)
	}
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("slasentry %s started successfully\n", p.Version)
	if p.IsDev() {
		fmt.Fprintln(os.Stderr, "development mode is enabled")
	}
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Default timezone: %s\n", p.DefaultTimezone)

	if p.Addr == "" {
		fmt.Printf("Admin API listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Admin API listening on %s:%d\n", p.Addr, p.Port)
	}
	fmt.Printf("Telegram webhook path: %s/telegram\n", p.WebhookPathPrefix)
	fmt.Println()
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError gives operators a pointed remediation hint instead of
// a bare driver error, covering the connection failures seen most often
// when standing up a fresh postgres instance.
func printDatabaseError(err error, p *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")
	fmt.Fprintln(os.Stderr, strings.Repeat("-", 60))

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		fmt.Fprintln(os.Stderr, "The database is not reachable.")
		if p.Driver == "postgres" {
			fmt.Fprintln(os.Stderr, "  - docker compose up -d postgres")
			fmt.Fprintln(os.Stderr, "  - or set SLASENTRY_DRIVER=sqlite for local development")
		}
	case strings.Contains(msg, "SSL is not enabled"), strings.Contains(msg, "sslmode"):
		fmt.Fprintln(os.Stderr, "SSL configuration mismatch. Add ?sslmode=disable to SLASENTRY_DSN for local development.")
	case strings.Contains(msg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "Authentication failed. Check the credentials in SLASENTRY_DSN.")
	case strings.Contains(msg, "database") && strings.Contains(msg, "does not exist"):
		fmt.Fprintln(os.Stderr, "The target database does not exist. Create it before starting the service.")
	case strings.Contains(msg, "permission denied"):
		fmt.Fprintln(os.Stderr, "Permission denied. Check the database user's grants.")
	default:
		fmt.Fprintln(os.Stderr, msg)
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("-", 60))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("slasentry exited with error", "error", err)
		os.Exit(1)
	}
}
