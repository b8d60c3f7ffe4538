package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Look up an address with Nominatim",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().Bool("json", false, "Print results as JSON")
}

func runGeocode(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, cancel := signalContext()
	defer cancel()

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("%s", app.MsgEmptySearch)
	}

	results, err := newGeocoder().Search(ctx, query)
	if err != nil {
		return fmt.Errorf(app.MsgSearchError, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s", app.MsgNotFound)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		fmt.Fprintf(out, "%.6f,%.6f\t%s\n", r.Lat, r.Lon, r.DisplayName)
	}
	return nil
}
