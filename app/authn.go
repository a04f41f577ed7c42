package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zenwatch/zenwatch/internal/authcfg"
	"github.com/zenwatch/zenwatch/internal/config"
	"github.com/zenwatch/zenwatch/internal/daemon"
	"github.com/zenwatch/zenwatch/internal/db/models"
	"github.com/zenwatch/zenwatch/internal/logger"
)

func init() { //nolint: gochecknoinits
	authnShowCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")
	authnShowCmd.Flags().StringSliceVar(&outputFields, "fields", nil, "Restrict output to the given fields")
	authnSetCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")

	authnCmd.AddCommand(authnShowCmd)
	authnCmd.AddCommand(authnSetCmd)
	rootCmd.AddCommand(authnCmd)
}

var (
	outputFields []string

	authnCmd = &cobra.Command{
		Use:   "authn",
		Short: "Inspect and change the authentication configuration",
		Args:  cobra.OnlyValidArgs,
	}

	authnShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective authentication configuration as JSON",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			out, err := d.AuthConfigService().GetAuthConfig(cliActor(), outputFields)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

			return nil
		},
	}

	authnSetCmd = &cobra.Command{
		Use:   "set key=value [key=value ...]",
		Short: "Change authentication configuration fields",
		Args:  cobra.MinimumNArgs(1),
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}

			patch, err := authcfg.ParsePatch(values)
			if err != nil {
				return err
			}

			d, err := daemon.New(&cfg)
			if err != nil {
				return err
			}

			applied, err := d.AuthConfigService().UpdateAuthConfig(cliActor(), patch)
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing changed")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "changed:", strings.Join(applied, ", "))

			return nil
		},
	}
)

// cliActor is the identity local CLI access acts with: the bootstrap admin.
func cliActor() authcfg.Actor {
	return authcfg.Actor{ID: 1, Type: models.UserTypeSuperAdmin}
}

// parseAssignments splits key=value arguments into the text form ParsePatch
// expects. Repeated keys keep the last value.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, errors.Errorf("argument %q is not of the form key=value", arg)
		}
		values[key] = value
	}

	return values, nil
}
