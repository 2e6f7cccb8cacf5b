package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/pkg/config"
)

var (
	searchMin  int
	searchMax  int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Load the catalog once and print matching cars",
	Long: `Load the catalog, apply the query and price window, and print the
matching cars, most expensive first. Words are joined with single spaces;
no query lists every car.`,
	Example: `  findyourcar search toyota
  findyourcar search bmw x --min 20000 --max 60000 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg.SearchDelay = 0
		logger := newLogger(os.Stderr, cfg.LogLevel)
		a := newApp(cfg, logger)
		defer a.Close()

		ctx := cmd.Context()
		if err := a.session.Load(ctx); err != nil {
			if !errors.Is(err, domain.ErrCatalogDegraded) {
				return err
			}
			logger.Warn("catalog incomplete", "err", err)
		}
		if err := domain.ValidatePriceRange(domain.PriceRange{Min: searchMin, Max: searchMax}); err != nil {
			return err
		}
		a.session.UpdatePrice(searchMin, searchMax)
		if err := a.session.Search(ctx, strings.Join(args, " ")); err != nil {
			return err
		}

		snap := a.session.Snapshot()
		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		return printSnapshot(cmd.OutOrStdout(), snap)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchMin, "min", domain.PriceFloor, "minimum price")
	searchCmd.Flags().IntVar(&searchMax, "max", domain.PriceCeiling, "maximum price")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the snapshot as JSON")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// printSnapshot writes the cards as a table followed by a summary line.
func printSnapshot(w io.Writer, snap browser.Snapshot) error {
	if _, err := fmt.Fprintf(w, "%s  (%s)\n", snap.Title, snap.PriceLabel); err != nil {
		return err
	}
	if snap.Banner != "" {
		fmt.Fprintln(w, snap.Banner)
	}
	if snap.Empty {
		_, err := fmt.Fprintln(w, "No cars match your search.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CAR", "BODY", "GEARBOX", "MILEAGE", "PRICE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, c := range snap.Cards {
		t.Row(c.Title, c.BodyType, c.Transmission, c.Mileage, c.Price)
	}
	_, err := fmt.Fprintf(w, "%s\n%d of %d cars\n", t.Render(), snap.Count, snap.Total)
	return errors.Join(err, failedMakesNote(w, snap))
}

func failedMakesNote(w io.Writer, snap browser.Snapshot) error {
	if len(snap.FailedMakes) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "unavailable: %s\n", strings.Join(snap.FailedMakes, ", "))
	return err
}
