package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ivanglie/cryptofetcher/internal/coingecko"
	"github.com/ivanglie/cryptofetcher/internal/config"
	"github.com/ivanglie/cryptofetcher/internal/metrics"
	"github.com/ivanglie/cryptofetcher/internal/server"
	"github.com/ivanglie/cryptofetcher/pkg/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	settings, err := config.Load(".env")
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	log.Init(settings.LogLevel, settings.LogPretty)
	gin.SetMode(gin.ReleaseMode)

	m := metrics.New()
	client := coingecko.New(settings.UpstreamBaseURL, settings.Timeout(), coingecko.WithMetrics(m))
	srv := server.New(settings, client, server.WithMetrics(m))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Starting %s %s on %s", settings.AppName, settings.AppVersion, settings.ListenAddr))
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Shutdown: %v", err))
		os.Exit(1)
	}
}
