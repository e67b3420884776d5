package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/waabox/ontoloci/internal/api"
	"github.com/waabox/ontoloci/internal/metrics"
	"github.com/waabox/ontoloci/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored build results and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.StorePathOrDefault())
		if err != nil {
			return err
		}
		defer db.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.NewRecorder(reg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler := api.NewHandler(db, reg, logger.Named("api"))
		return api.Serve(ctx, serveAddr, handler.Routes(), logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}
