package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/pagecat"
	"github.com/sirupsen/logrus"
)

func handleServe(args []string) {
	cfg := loadFileConfig()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", cfg.Listen, "Address to listen on")
	fs.Parse(args)

	logger := newLogger(cfg)

	settings := openSettings(cfg)
	defer settings.Close()
	hist := openHistory(cfg)
	defer hist.Close()
	runStore := openRuns(cfg)

	browser := launchBrowser(cfg, logger)
	defer browser.Close()

	svc := newService(cfg, browser, logger,
		pagecat.WithSettings(settings),
		pagecat.WithHistory(hist),
		pagecat.WithRuns(runStore),
	)
	router := pagecat.NewAPIServer(svc, settings, hist, runStore).SetupRouter()

	srv := &http.Server{
		Addr:    *listen,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithField("error", err).Warn("Server shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"url": fmt.Sprintf("http://%s/api/v1", *listen),
	}).Info("Starting pagecat API server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithField("error", err).Error("Server failed")
		os.Exit(1)
	}
}
