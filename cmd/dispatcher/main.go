// dispatcher is the one-shot bulk dispatch CLI: it loads recipients and
// message content, runs a dispatch through the configured provider rotation,
// and prints the per-recipient outcome summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/config"
	"github.com/dragonsend/dispatch-engine/internal/db"
	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/engine"
	"github.com/dragonsend/dispatch-engine/internal/ledger"
	"github.com/dragonsend/dispatch-engine/internal/metrics"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	var (
		recipientsPath = flag.String("recipients", "", "path to recipient list (.txt or .csv)")
		smsMode        = flag.Bool("sms", false, "treat recipients as phone,carrier CSV rows")
		subject        = flag.String("subject", "", "message subject (ignored for SMS)")
		bodyPath       = flag.String("body", "", "path to the plain-text body file")
		htmlPath       = flag.String("html", "", "path to an optional HTML body file")
		senderName     = flag.String("sender-name", "", "display name for the From header")
		attachList     = flag.String("attach", "", "comma-separated attachment file paths")
	)
	flag.Parse()

	if *recipientsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dispatcher -recipients FILE [-sms] [-subject S] -body FILE [-html FILE] [-attach a,b]")
		os.Exit(2)
	}

	cfg, err := config.LoadDispatcher()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	recipients, err := loadRecipients(*recipientsPath, *smsMode)
	if err != nil {
		logger.Fatal("failed to load recipients", zap.Error(err))
	}
	if len(recipients) == 0 {
		logger.Fatal("recipient file contains no usable entries",
			zap.String("path", *recipientsPath))
	}

	tmpl, err := loadTemplate(*subject, *bodyPath, *htmlPath, *senderName, *attachList)
	if err != nil {
		logger.Fatal("failed to load message content", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, cleanup, err := openLedger(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open ledger", zap.Error(err))
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	onSent, onFailed := m.EngineHooks()

	// Optional scrape endpoint for long-running dispatches.
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener error", zap.Error(err))
			}
		}()
	}

	manager := provider.NewManager(logger, cfg.DialTimeout, cfg.APITimeout)
	eng := engine.New(manager, led, logger, engine.Hooks{OnSent: onSent, OnFailed: onFailed})

	m.DispatchInProgress.Set(1)
	results := eng.Dispatch(ctx, engine.Request{
		Recipients:  recipients,
		Template:    tmpl,
		Providers:   cfg.Providers,
		Policy:      cfg.Policy,
		TrackingURL: cfg.TrackingURL,
		OnProgress: func(f float64) {
			logger.Info("dispatch progress", zap.Int("percent", int(f*100)))
		},
	})
	m.DispatchInProgress.Set(0)

	s := domain.Summarize(results)
	fmt.Printf("dispatched %d recipients: %d sent, %d failed\n", s.Total, s.Sent, s.Failed)
	for _, r := range results {
		if !r.Success {
			fmt.Printf("  FAILED %s: %s\n", r.Recipient, r.Detail)
		}
	}

	if s.Total > 0 && s.Sent == 0 {
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

// loadRecipients parses the recipient file. CSV files are parsed cell-wise;
// anything else is treated as newline/comma separated text. The -sms flag
// switches to phone,carrier parsing.
func loadRecipients(path string, sms bool) ([]domain.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sms {
		return domain.ParseSMSCSV(f)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return domain.ParseEmailCSV(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.ParseEmailList(string(data)), nil
}

func loadTemplate(subject, bodyPath, htmlPath, senderName, attachList string) (domain.MessageTemplate, error) {
	tmpl := domain.MessageTemplate{Subject: subject, SenderName: senderName}

	if bodyPath != "" {
		data, err := os.ReadFile(bodyPath)
		if err != nil {
			return tmpl, fmt.Errorf("read body file: %w", err)
		}
		tmpl.TextBody = string(data)
	}
	if htmlPath != "" {
		data, err := os.ReadFile(htmlPath)
		if err != nil {
			return tmpl, fmt.Errorf("read html file: %w", err)
		}
		tmpl.HTMLBody = string(data)
	}

	if attachList != "" {
		for _, path := range strings.Split(attachList, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return tmpl, fmt.Errorf("read attachment: %w", err)
			}
			tmpl.Attachments = append(tmpl.Attachments, domain.Attachment{
				Name: filepath.Base(path),
				Data: data,
			})
		}
	}

	return tmpl, tmpl.Validate()
}

// openLedger picks the ledger backend: PostgreSQL when DATABASE_URL is set,
// otherwise a local JSONL file.
func openLedger(ctx context.Context, cfg *config.Dispatcher) (ledger.Ledger, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, 0, 0)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return ledger.NewPgLedger(pool), pool.Close, nil
	}

	led, err := ledger.NewFileLedger(cfg.LedgerFile)
	if err != nil {
		return nil, nil, err
	}
	return led, func() { _ = led.Close() }, nil
}
