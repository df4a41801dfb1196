package cli

import (
	"fmt"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/app"
	"github.com/evyataryagoni/geocoder/internal/store"
	"github.com/spf13/cobra"
)

type loadOptions struct {
	target    string
	addresses string
	cities    string
	builtin   bool
}

func newLoadKnownCommand(env *Env) *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "load-known",
		Short: "Load the known-address and city tables into MySQL or Redis",
		Example: `  geocode load-known --target redis
  geocode load-known --target mysql --addresses data/known_addresses.csv --cities data/known_cities.csv
  geocode load-known --target redis --builtin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conns := app.NewConnections(env.Config)
			defer conns.Close()

			var loader store.Loader
			switch strings.ToLower(opts.target) {
			case "redis":
				client, err := conns.Redis(cmd.Context())
				if err != nil {
					return err
				}
				loader = store.NewRedisStoreWithClient(client)

			case "mysql":
				db, err := conns.MySQL()
				if err != nil {
					return err
				}
				if err := db.AutoMigrate(&store.KnownAddressModel{}, &store.KnownCityModel{}); err != nil {
					return fmt.Errorf("migrating known-location tables: %w", err)
				}
				loader = store.NewMySQLStoreWithDB(db)

			default:
				return fmt.Errorf("unsupported target %q (supported: 'redis', 'mysql')", opts.target)
			}

			var stats store.LoadStats
			var err error
			if opts.builtin {
				stats, err = store.Copy(cmd.Context(), loader, store.NewDefaultStore())
			} else {
				stats, err = store.LoadCSV(cmd.Context(), loader, opts.addresses, opts.cities)
			}
			if err != nil {
				return fmt.Errorf("loading known tables into %s: %w", opts.target, err)
			}

			fmt.Fprintf(env.Out, "Loaded %d addresses and %d cities into %s\n", stats.Addresses, stats.Cities, opts.target)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.target, "target", env.Config.KnownStoreType, "backend to load: redis or mysql")
	cmd.Flags().StringVar(&opts.addresses, "addresses", env.Config.KnownAddressesPath, "known-address CSV")
	cmd.Flags().StringVar(&opts.cities, "cities", env.Config.KnownCitiesPath, "known-city CSV")
	cmd.Flags().BoolVar(&opts.builtin, "builtin", false, "load the built-in tables instead of the CSV files")
	return cmd
}
