package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/device"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := device.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
