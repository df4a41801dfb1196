package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/evyataryagoni/geocoder/internal/app"
	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		KnownStoreType:  "memory",
		CacheType:       "memory",
		CacheTTL:        time.Hour,
		TargetCountry:   "Argentina",
		VariantStagger:  time.Millisecond,
		ProviderTimeout: time.Second,
		ReverseTimeout:  time.Second,
		ResolveTimeout:  5 * time.Second,
	}
}

// run executes the command line and returns stdout
func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&Env{Config: cfg, Out: &out, Err: &errOut}, "test")
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolve_KnownAddress(t *testing.T) {
	out, err := run(t, testConfig(), "resolve", "Bolivia 133, Córdoba")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.HasPrefix(out, "-31.414400,-64.185700\tknown\t") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestResolve_JSON(t *testing.T) {
	out, err := run(t, testConfig(), "resolve", "--json", "Ayacucho", "367,", "Córdoba")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var result models.GeocodeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if result.Source != models.SourceKnown {
		t.Errorf("expected source %s, got %s", models.SourceKnown, result.Source)
	}
	if result.Lat != -31.4181 {
		t.Errorf("expected lat -31.4181, got %f", result.Lat)
	}
}

func TestResolve_EmptyQuery(t *testing.T) {
	_, err := run(t, testConfig(), "resolve")
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestReverse_InvalidCoordinates(t *testing.T) {
	tests := [][]string{
		{"reverse", "north", "0"},
		{"reverse", "0", "west"},
		{"reverse", "--", "-91", "0"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args[1:], " "), func(t *testing.T) {
			_, err := run(t, testConfig(), args...)
			if !errors.Is(err, models.ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out.csv")
	content := "id,address\n1,\"Bolivia 133, Córdoba\"\n2,\n3,\"Dean Funes 70, Córdoba\"\n"
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	if _, err := run(t, testConfig(), "batch", input, "--output", output, "--workers", "2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("expected output file, got %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("expected CSV output, got %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected header and 3 rows, got %d records", len(records))
	}
	if records[1][0] != "Bolivia 133, Córdoba" || records[1][3] != models.SourceKnown {
		t.Errorf("unexpected first row %v", records[1])
	}
	if records[2][7] == "" {
		t.Errorf("expected an error for the empty address, got %v", records[2])
	}
	if records[3][1] != "-31.414700" {
		t.Errorf("expected input order kept, got %v", records[3])
	}
}

func TestBatch_OpenFailureKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(input, []byte("address\nRosario\n"), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	previous := "address,lat\nMendoza,-32.89\n"
	if err := os.WriteFile(output, []byte(previous), 0o644); err != nil {
		t.Fatalf("failed to write output: %v", err)
	}

	errBackend := errors.New("mysql unreachable")
	var out bytes.Buffer
	root := NewRootCommand(&Env{
		Config: testConfig(),
		Out:    &out,
		Err:    &out,
		Open: func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return nil, errBackend
		},
	}, "test")
	root.SetArgs([]string{"batch", input, "--output", output})

	if err := root.Execute(); !errors.Is(err, errBackend) {
		t.Fatalf("expected the open error, got %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected output file to remain, got %v", err)
	}
	if string(data) != previous {
		t.Errorf("expected output file untouched, got %q", data)
	}
}

func TestReadAddresses_FirstColumnFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("direccion\nRosario\nMendoza\n"), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	addresses, err := readAddresses(path, "address")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(addresses) != 2 || addresses[0] != "Rosario" {
		t.Errorf("expected [Rosario Mendoza], got %v", addresses)
	}
}

func TestLoadKnown_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	out, err := run(t, cfg, "load-known", "--target", "redis", "--builtin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(out, "Loaded 7 addresses and 12 cities into redis") {
		t.Errorf("unexpected output %q", out)
	}
	if !mr.Exists("known:city:rosario") {
		t.Errorf("expected city keys, got %v", mr.Keys())
	}
}

func TestLoadKnown_RedisFromCSV(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.KnownCitiesPath = filepath.Join(dir, "cities.csv")
	if err := os.WriteFile(cfg.KnownCitiesPath, []byte("name,lat,lon,zoom\nrosario,-32.944,-60.639,13\n"), 0o644); err != nil {
		t.Fatalf("failed to write cities: %v", err)
	}

	out, err := run(t, cfg, "load-known", "--target", "redis")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "Loaded 0 addresses and 1 cities") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLoadKnown_UnsupportedTarget(t *testing.T) {
	if _, err := run(t, testConfig(), "load-known"); err == nil {
		t.Error("expected error for the memory target, got nil")
	}
}
