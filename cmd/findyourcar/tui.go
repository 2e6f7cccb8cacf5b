package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/findyourcar/cmd/findyourcar/tui"
	"github.com/WessleyAI/findyourcar/pkg/config"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the catalog in the terminal",
	Long: `Browse the catalog interactively.

  enter          search for the typed text
  ctrl+r         reset search and price, reload
  tab            switch between the search box and the price controls
  left/right     lower/raise the minimum price (price controls)
  shift+arrows   lower/raise the maximum price (price controls)
  q              quit (price controls); esc or ctrl+c quit anywhere`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		var logOut io.Writer = io.Discard
		if tuiLogFile != "" {
			f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			logOut = f
		}
		a := newApp(cfg, newLogger(logOut, cfg.LogLevel))
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		_, err = tea.NewProgram(tui.New(ctx, a.session), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "write logs to this file instead of discarding them")
}
