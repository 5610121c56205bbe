package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/server"
)

var (
	servePort    int
	serveListing string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve records and reports over read-only HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path, err := resolveListing(serveListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: server.New(server.Config{
				CORSOrigins:   cfg.Server.CORSOrigins,
				ListingPath:   path,
				Listing:       listingOptions(cfg),
				ListDelimiter: cfg.Research.ListDelimiter,
			}, fields, newStore(cfg, fields)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("listing", path))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveListing, "listing", "", "listing file (default: newest match of paths.listing)")
	rootCmd.AddCommand(serveCmd)
}
