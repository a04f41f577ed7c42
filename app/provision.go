package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zenwatch/zenwatch/internal/config"
	"github.com/zenwatch/zenwatch/internal/daemon"
	"github.com/zenwatch/zenwatch/internal/logger"
)

func init() { //nolint: gochecknoinits
	provisionCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")
	provisionCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(provisionCmd)
}

var (
	configPath string // Path to the configuration file

	cfg     config.Config
	err     error
	devMode bool

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Create or migrate the ZenWatch database and seed initial records",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := daemon.New(&cfg); err != nil {
				return err
			}

			log.Info().Str("engine", cfg.DB.GormEngine).Msg("database provisioned")

			return nil
		},
	}
)
