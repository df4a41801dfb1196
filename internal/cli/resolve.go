package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/spf13/cobra"
)

func newResolveCommand(env *Env) *cobra.Command {
	var query models.AddressQuery
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve [address]",
		Short: "Resolve one address",
		Example: `  geocode resolve "Bolivia 133, Córdoba"
  geocode resolve --street "San Martín" --number 10 --city Rosario`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query.Text = strings.Join(args, " ")

			geocoder, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer geocoder.Close()

			result, err := geocoder.Service.Resolve(cmd.Context(), nil, query)
			if err != nil {
				return fmt.Errorf("resolving %q: %w", query.String(), err)
			}

			if asJSON {
				return writeJSON(env.Out, result)
			}
			fmt.Fprintf(env.Out, "%.6f,%.6f\t%s\t%s\n", result.Lat, result.Lon, describe(result), result.DisplayName)
			return nil
		},
	}

	cmd.Flags().StringVar(&query.Street, "street", "", "street name")
	cmd.Flags().StringVar(&query.HouseNumber, "number", "", "house number")
	cmd.Flags().StringVar(&query.City, "city", "", "city")
	cmd.Flags().StringVar(&query.Province, "province", "", "province")
	cmd.Flags().StringVar(&query.Country, "country", "", "country")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newReverseCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reverse <lat> <lon>",
		Short: "Describe the address at a coordinate pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("latitude %q: %w", args[0], models.ErrInvalidCoordinates)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("longitude %q: %w", args[1], models.ErrInvalidCoordinates)
			}

			geocoder, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer geocoder.Close()

			address, err := geocoder.Service.Reverse(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			return writeJSON(env.Out, address)
		},
	}
	return cmd
}

// describe is the source column of the text output
func describe(result *models.GeocodeResult) string {
	source := result.Source
	if result.Fallback {
		source += " (fallback)"
	}
	if result.Cached {
		source += " (cached)"
	}
	return source
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
