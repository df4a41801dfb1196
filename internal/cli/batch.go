package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/evyataryagoni/geocoder/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// batchHeader is the output layout of the batch command
var batchHeader = []string{"address", "lat", "lon", "source", "score", "fallback", "display_name", "error"}

type batchOptions struct {
	column  string
	output  string
	workers int
}

func newBatchCommand(env *Env) *cobra.Command {
	opts := batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <input.csv|->",
		Short: "Resolve every address of a CSV file",
		Long: `
batch reads a CSV file with a header row and resolves the address column of
every row. The output CSV keeps the input order; rows that cannot be resolved
carry the reason in the error column.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			addresses, err := readAddresses(args[0], opts.column)
			if err != nil {
				return err
			}

			// The output is only truncated once the geocoder is up
			geocoder, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer geocoder.Close()

			out := env.Out
			if opts.output != "" && opts.output != "-" {
				var f *os.File
				f, err = os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", opts.output, err)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("closing %s: %w", opts.output, cerr)
					}
				}()
				out = f
			}

			rows := resolveAll(cmd.Context(), geocoder.Service, addresses, opts.workers, newBar(env.Err, len(addresses)))
			return writeRows(out, rows)
		},
	}

	cmd.Flags().StringVar(&opts.column, "column", "address", "name of the address column (first column when absent)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "concurrent resolutions")
	return cmd
}

// newBar returns a progress bar when w is a terminal, nil otherwise
func newBar(w io.Writer, n int) *progressbar.ProgressBar {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Resolving"),
		progressbar.OptionSetWriter(f),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func readAddresses(path, column string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := 0
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			index = i
			break
		}
	}

	addresses := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if index < len(record) {
			addresses = append(addresses, record[index])
		} else {
			addresses = append(addresses, "")
		}
	}
	return addresses, nil
}

type batchRow struct {
	address string
	result  *models.GeocodeResult
	err     error
}

// resolveAll resolves addresses with at most workers in flight.
// Rows are one-off resolutions: no session, so none supersedes another.
func resolveAll(ctx context.Context, svc *service.GeocodeService, addresses []string, workers int, bar *progressbar.ProgressBar) []batchRow {
	if workers <= 0 {
		workers = 1
	}

	rows := make([]batchRow, len(addresses))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, address := range addresses {
		g.Go(func() error {
			result, err := svc.Resolve(ctx, nil, models.AddressQuery{Text: address})
			rows[i] = batchRow{address: address, result: result, err: err}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	if bar != nil {
		bar.Finish()
	}
	return rows
}

func writeRows(w io.Writer, rows []batchRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(batchHeader); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{row.address, "", "", "", "", "", "", ""}
		if row.err != nil {
			record[7] = row.err.Error()
		} else {
			record[1] = strconv.FormatFloat(row.result.Lat, 'f', 6, 64)
			record[2] = strconv.FormatFloat(row.result.Lon, 'f', 6, 64)
			record[3] = row.result.Source
			record[4] = strconv.FormatFloat(row.result.Score, 'f', 2, 64)
			record[5] = strconv.FormatBool(row.result.Fallback)
			record[6] = row.result.DisplayName
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
