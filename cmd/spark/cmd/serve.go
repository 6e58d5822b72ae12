package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/api"
)

var (
	servePort      int
	serveAllowLAN  bool
	shutdownPeriod = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Serve the Spark HTTP and WebSocket API",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationModel: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Address()
		if cmd.Flags().Changed("port") {
			addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(servePort))
		}

		server := api.NewServer(sparkApp.Chat, sparkApp.Repo, sparkApp.Events,
			api.WithLogger(logger),
			api.WithShareOrigin(cfg.ShareOrigin()),
			api.WithLocalhostOnly(!serveAllowLAN),
		)

		done := make(chan error, 1)
		go func() { done <- server.Start(addr) }()
		fmt.Printf("Spark API listening on http://%s/api/v1\n", addr)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case err := <-done:
			return err
		case sig := <-sigChan:
			logger.Info("Shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&serveAllowLAN, "allow-remote", false, "Accept requests from non-loopback addresses")
	rootCmd.AddCommand(serveCmd)
}
