package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.configPath = args[0]
			}
			cfg, path, err := loadConfig(flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintf(out, "Configuration OK: %s\n", path)
			fmt.Fprintf(out, "  memory:    %s backend in %s\n", cfg.Memory.Backend, cfg.Memory.Dir)
			fmt.Fprintf(out, "  embedding: %s\n", cfg.Embedding.Backend)
			fmt.Fprintf(out, "  gateway:   %s\n", cfg.Gateway.Addr)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Provider.Anthropic.APIKey = mask(masked.Provider.Anthropic.APIKey)
			masked.Embedding.APIKey = mask(masked.Embedding.APIKey)
			masked.Gateway.BearerToken = mask(masked.Gateway.BearerToken)
			masked.Gateway.BasicPass = mask(masked.Gateway.BasicPass)
			masked.Gateway.WebhookSecret = mask(masked.Gateway.WebhookSecret)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(&masked)
		},
	})
	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
