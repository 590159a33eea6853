package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MeKo-Tech/geomeasure/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate configuration files",
		Long: `Inspect the resolved configuration or write a default configuration file.

Configuration is read from geomeasure.yaml in the search paths, overridden by
GEOMEASURE_* environment variables and finally by command-line flags.`,
		// Loading is not validated here so that a broken file can be inspected.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.initConfig(cmd, false); err != nil {
				return err
			}
			setupLogging(cmd, opts.cfg)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				filename = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(filename); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", filename)
			}
			if err := config.GenerateDefaultConfigFile(filename); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", filename)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(opts.cfg); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(opts.cfg); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported output format %q (want yaml or json)", format)
			}
			if info, _ := cmd.Flags().GetBool("info"); info {
				opts.loader.PrintConfigInfo(cmd.ErrOrStderr())
			}
			if err := opts.cfg.Validate(); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			return nil
		},
	}
	showCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
	showCmd.Flags().Bool("info", false, "also print where configuration was loaded from")

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
