package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, apiURL string

	rootCmd := &cobra.Command{
		Use:          "bistro",
		Short:        "Bistro - restaurant ordering client",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Override the backend base URL")

	opener := func(cmd *cobra.Command) (*app, error) {
		return newApp(cmd.Context(), configPath, apiURL)
	}

	// Add subcommands
	rootCmd.AddCommand(cartCmd(opener))
	rootCmd.AddCommand(loginCmd(opener))
	rootCmd.AddCommand(checkoutCmd(opener))
	rootCmd.AddCommand(ordersCmd(opener))
	rootCmd.AddCommand(attemptsCmd(opener))
	rootCmd.AddCommand(mockServerCmd(&configPath))
	return rootCmd
}
