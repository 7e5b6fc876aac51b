package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"leadengine/internal/bounce"
	"leadengine/internal/config"
	"leadengine/internal/deliver"
	"leadengine/internal/entitle"
	"leadengine/internal/events"
	exec "leadengine/internal/exec"
	"leadengine/internal/httpapi"
	"leadengine/internal/orchestrate"
	"leadengine/internal/scheduler"
	"leadengine/internal/secrets"
	"leadengine/internal/store"
)

func main() {
	_ = godotenv.Load()

	dataDir := os.Getenv("LEADENGINE_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	defaultCfgPath := filepath.Join("config", "engine.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		log.Printf("level=warn msg=%q", w)
	}
	if !v.OK() {
		for _, e := range v.Errors {
			log.Printf("level=error msg=%q", e)
		}
		log.Fatalf("config invalid (%s)", userCfgPath)
	}

	db, err := store.Open(filepath.Join(dataDir, "leadengine.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	var broker *events.Publisher
	if cfg.AMQP.Enabled {
		broker, err = events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("amqp connect failed: %v", err)
		}
		defer broker.Close()
	}
	hub := events.NewHub(broker)

	var executors []exec.Executor
	if cfg.Mail.Enabled {
		smtpPass, err := secrets.Get(secrets.AccountSMTP)
		if err != nil {
			log.Fatalf("smtp secret: %v", err)
		}
		mailer, err := exec.NewEmailExecutor(cfg.Mail, smtpPass)
		if err != nil {
			log.Fatal(err)
		}
		executors = append(executors, mailer)
	}

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Enabled {
		token, err := secrets.Get(secrets.AccountBotToken)
		if err != nil {
			log.Fatalf("telegram secret: %v", err)
		}
		botAPI, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			log.Fatalf("telegram bot: %v", err)
		}
		if cfg.Telegram.OpsChatID != 0 {
			executors = append(executors, exec.NewTelegramExecutor(botAPI, cfg.Telegram.OpsChatID))
		}
	}

	orch, err := orchestrate.New(cfg, db, hub, executors)
	if err != nil {
		log.Fatal(err)
	}

	catalog := entitle.NewCatalog(cfg.Plans)
	entitleSvc := entitle.NewService(db, catalog, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()

	if cfg.Bounce.Enabled {
		imapPass, err := secrets.Get(secrets.AccountIMAP)
		if err != nil {
			log.Fatalf("imap secret: %v", err)
		}
		mon := bounce.New(cfg.Bounce, imapPass, db, hub)
		interval := time.Duration(cfg.Bounce.IntervalSeconds) * time.Second
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Every(ctx, interval, "bounce", mon.SweepOnce)
		}()
	}

	if cfg.Telegram.Enabled && botAPI != nil {
		feed := deliver.New(cfg.Telegram, cfg.Filters.MinScore, botAPI, db, hub)
		interval := time.Duration(cfg.Telegram.FeedIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.EveryJittered(ctx, interval, time.Minute, "feed", feed.RunOnce)
		}()
	}

	webhookSecret, err := secrets.Get(secrets.AccountWebhookSecret)
	if err != nil {
		log.Printf("level=warn msg=\"webhook secret not set, webhook auth disabled\"")
		webhookSecret = ""
	}

	router := httpapi.NewRouter(httpapi.Deps{
		DB:            db,
		Hub:           hub,
		Orch:          orch,
		Entitle:       entitleSvc,
		WebhookSecret: webhookSecret,
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	wg.Wait()
}
