package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/config"
	"github.com/kellyjadams/break-into-data-bot/internal/discord"
	"github.com/kellyjadams/break-into-data-bot/internal/llm"
	"github.com/kellyjadams/break-into-data-bot/internal/platform/leetcode"
	"github.com/kellyjadams/break-into-data-bot/internal/poller"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
	"github.com/kellyjadams/break-into-data-bot/internal/submit"
	"github.com/kellyjadams/break-into-data-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	httpSrv *http.Server
	ledger  store.Ledger
	gw      *discord.Gateway
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting break-into-data-bot", zap.String("http", a.cfg.HTTPAddr))

	ledger, err := a.openLedger(ctx)
	if err != nil {
		a.log.Error("open ledger failed", zap.Error(err))
		return err
	}
	a.ledger = ledger

	completer, err := llm.NewGemini(ctx, a.cfg.GeminiAPIKey, a.cfg.LLMTimeout)
	if err != nil {
		a.log.Error("gemini init failed", zap.Error(err))
		return err
	}

	parser := submit.NewTextParser(completer, ledger, a.log)
	proofs := submit.NewProofReconciler(ledger, a.cfg.ProofWindow, a.log)
	processor := submit.NewProcessor(ledger, parser, proofs, a.cfg.TextCooldown, a.log)
	voice := submit.NewVoiceTracker(ledger, a.log)

	gw, err := discord.New(a.cfg.DiscordToken, a.cfg.SubmissionChannelID, processor, voice, a.log)
	if err != nil {
		a.log.Error("discord init failed", zap.Error(err))
		return err
	}
	a.gw = gw

	var ops poller.Notifier
	if a.cfg.TelegramOpsToken != "" {
		opsNotifier, err := telegram.NewNotifier(a.cfg.TelegramOpsToken, a.cfg.TelegramOpsChatID, a.log)
		if err != nil {
			// alerts are a convenience, the bot still runs without them
			a.log.Warn("telegram ops notifier init failed", zap.Error(err))
		} else {
			ops = opsNotifier
		}
	}

	sources := []poller.StatsSource{leetcode.NewClient()}
	p := poller.New(ledger, sources, gw, ops, a.cfg.PollInterval, a.log)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	if err := gw.Open(); err != nil {
		a.log.Error("discord connect failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go p.Run(ctx)

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	if err := a.gw.Close(); err != nil {
		a.log.Warn("discord close error", zap.Error(err))
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	return nil
}

// openLedger picks the storage backend: Postgres when DATABASE_URL is
// set, an embedded SQLite file otherwise.
func (a *App) openLedger(ctx context.Context) (store.Ledger, error) {
	if a.cfg.DatabaseURL != "" {
		ledger, err := store.OpenPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.log.Info("postgres ready")
		return ledger, nil
	}

	ledger, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))
	return ledger, nil
}
