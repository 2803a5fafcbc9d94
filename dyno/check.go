package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/relay"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the collector service is ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := relay.NewCollector(cfg.Collector).NewSession(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collector at %s is ready\n", cfg.Collector.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
