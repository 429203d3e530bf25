package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cfg := loadConfig{}
	var maxFailureRate float64
	cmd := &cobra.Command{
		Use:          "sse-load",
		Short:        "Hold many board streams open and report what they received",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.StandardLogger()
			res := runLoad(cmd.Context(), cfg, &http.Client{}, logger)
			entry := logger.WithFields(log.Fields{
				"connections":  cfg.Connections,
				"duration_sec": int(cfg.Duration.Seconds()),
				"events":       res.Events,
				"attempts":     res.Attempts,
				"failures":     res.Failures,
			})
			if res.Events == 0 || res.FailureRate() > maxFailureRate {
				entry.Error("sse load failed")
				os.Exit(1)
			}
			entry.Info("sse load passed")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.StreamURL, "url", "http://localhost:8080/stream", "board stream URL")
	cmd.Flags().IntVar(&cfg.Connections, "connections", 200, "concurrent streams")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 2*time.Minute, "test duration")
	cmd.Flags().Float64Var(&maxFailureRate, "max-failure-rate", 0.01, "highest accepted share of failed connection attempts")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
