package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sonata-sse/sse-core/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a TOML config file (defaults to ./sse-core.toml if present)")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Status API listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveConfigPath string
	serveListenAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the core daemon: scheduling loop and status API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		d   *daemon.Daemon
		err error
	)
	if serveConfigPath != "" {
		cfg, loadErr := daemon.LoadConfig(serveConfigPath)
		if loadErr != nil {
			return loadErr
		}
		if serveListenAddr != "" {
			cfg.API.ListenAddr = serveListenAddr
		}
		d, err = daemon.NewWithConfig(cfg)
	} else {
		d, err = daemon.New()
	}
	if err != nil {
		return err
	}
	defer d.Close()

	if serveConfigPath == "" && serveListenAddr != "" {
		d.Config.API.ListenAddr = serveListenAddr
	}

	return d.Serve(context.Background())
}
