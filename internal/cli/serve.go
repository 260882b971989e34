package cli

import (
	"os/signal"
	"syscall"

	"cdhsearch/internal/db"
	"cdhsearch/internal/server"
	"cdhsearch/pkg/logger"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	conf, err := loadConfig(false)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		conf.Server.Addr = serveAddr
	}
	defer logger.Sync()

	database, err := db.New(conf)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.New(database, conf).Run(ctx, conf.Server.Addr)
}
