package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evyataryagoni/geocoder/internal/cache"
	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/evyataryagoni/geocoder/internal/provider"
	"github.com/evyataryagoni/geocoder/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testOptions() Options {
	return Options{
		Regions:        []geocode.Region{},
		Stagger:        time.Millisecond,
		RequestTimeout: 200 * time.Millisecond,
		ReverseTimeout: 200 * time.Millisecond,
		ResolveTimeout: 5 * time.Second,
	}
}

type fixture struct {
	service  *GeocodeService
	provider *provider.MockProvider
	store    *store.MockStore
	cache    *cache.MockCache
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		provider: provider.NewMockProvider(),
		store:    store.NewMockStore(),
		cache:    cache.NewMockCache(),
		metrics:  metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	f.service = NewGeocodeService(Deps{
		Known:   f.store,
		Cache:   f.cache,
		Primary: f.provider,
		Search:  f.provider,
		Reverse: f.provider,
		Metrics: f.metrics,
		Logger:  logger.Nop(),
	}, opts)
	return f
}

func text(q string) models.AddressQuery {
	return models.AddressQuery{Text: q}
}

// TestResolve_KnownAddress tests that curated addresses never reach a provider
func TestResolve_KnownAddress(t *testing.T) {
	tests := []struct {
		name    string
		query   models.AddressQuery
		wantLat float64
		wantLon float64
	}{
		{"street number city", text("Bolivia 133, Cordoba"), -31.4144, -64.1857},
		{"free text with accents", text("Bolivia 133, Córdoba, Córdoba"), -31.4144, -64.1857},
		{"free text upper case", text("AYACUCHO 367, CORDOBA"), -31.4181, -64.1831},
		{"structured", models.AddressQuery{Street: "General Paz", HouseNumber: "506", City: "Río Tercero"}, -32.1719, -64.1138},
		{"number inside street field", models.AddressQuery{Street: "Independencia 184", City: "Rio Tercero"}, -32.1755, -64.1124},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testOptions())

			result, err := f.service.Resolve(context.Background(), nil, tt.query)

			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if result.Lat != tt.wantLat || result.Lon != tt.wantLon {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.wantLat, tt.wantLon, result.Lat, result.Lon)
			}
			if result.Score != geocode.KnownScore {
				t.Errorf("expected score %v, got %v", geocode.KnownScore, result.Score)
			}
			if result.Source != models.SourceKnown {
				t.Errorf("expected source %s, got %s", models.SourceKnown, result.Source)
			}
			if result.ZoomLevel != 19 {
				t.Errorf("expected zoom 19, got %d", result.ZoomLevel)
			}
			if n := f.provider.TotalCalls(); n != 0 {
				t.Errorf("expected no provider calls, got %d", n)
			}
			if f.cache.Sets() != 1 {
				t.Errorf("expected known hit written to cache once, got %d", f.cache.Sets())
			}
			if got := testutil.ToFloat64(f.metrics.DatastoreQueriesTotal.WithLabelValues("known", "find_address", "success")); got != 1 {
				t.Errorf("expected 1 known-address query, got %v", got)
			}
		})
	}
}

// TestResolve_FreshCache tests that a fresh persistent entry short-circuits providers
func TestResolve_FreshCache(t *testing.T) {
	f := newFixture(t, testOptions())
	ctx := context.Background()

	query := "Calle Falsa 123, Springfield"
	cached := &models.GeocodeResult{Lat: 1, Lon: 2, DisplayName: "cached", Score: 0.9, ZoomLevel: 18, Source: models.SourceOpenCage}
	if err := f.cache.MemoryCache.Set(ctx, cache.Key(geocode.Normalize(query)), cache.NewEntry(cached, time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := f.service.Resolve(ctx, nil, text(query))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.Cached {
		t.Error("expected result marked as cached")
	}
	if result.Lat != 1 || result.Lon != 2 {
		t.Errorf("expected cached coordinates, got %v,%v", result.Lat, result.Lon)
	}
	if n := f.provider.TotalCalls(); n != 0 {
		t.Errorf("expected no provider calls, got %d", n)
	}
	if got := testutil.ToFloat64(f.metrics.ResolutionsTotal.WithLabelValues(models.SourceCache)); got != 1 {
		t.Errorf("expected 1 cache resolution, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.DatastoreCacheHits.WithLabelValues("persistent", "hit")); got != 1 {
		t.Errorf("expected 1 persistent cache hit, got %v", got)
	}
}

// TestResolve_StaleCache tests that entries past the TTL are ignored
func TestResolve_StaleCache(t *testing.T) {
	f := newFixture(t, testOptions())
	ctx := context.Background()

	query := "Calle Falsa 123, Springfield"
	stale := &models.GeocodeResult{Lat: 1, Lon: 2, Source: models.SourceOpenCage}
	if err := f.cache.MemoryCache.Set(ctx, cache.Key(geocode.Normalize(query)), cache.NewEntry(stale, time.Now().Add(-25*time.Hour))); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	f.provider.GeocodeResults = []models.OpenCageResult{{Lat: -34.6, Lng: -58.4, Formatted: "Calle Falsa 123"}}

	result, err := f.service.Resolve(ctx, nil, text(query))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Cached {
		t.Error("expected a fresh provider result")
	}
	if result.Lat != -34.6 {
		t.Errorf("expected provider coordinates, got %v", result.Lat)
	}
	if len(f.provider.GeocodeCalls()) != 1 {
		t.Errorf("expected 1 primary call, got %d", len(f.provider.GeocodeCalls()))
	}
	if got := testutil.ToFloat64(f.metrics.DatastoreCacheHits.WithLabelValues("persistent", "stale")); got != 1 {
		t.Errorf("expected 1 stale persistent entry, got %v", got)
	}
}

// TestResolve_CacheReadError tests that a failing cache reads as a miss
func TestResolve_CacheReadError(t *testing.T) {
	f := newFixture(t, testOptions())
	f.cache.GetError = errors.New("connection reset")
	f.provider.GeocodeResults = []models.OpenCageResult{{Lat: -34.6, Lng: -58.4}}

	result, err := f.service.Resolve(context.Background(), nil, text("Calle Falsa 123, Springfield"))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Source != models.SourceOpenCage {
		t.Errorf("expected primary result, got %s", result.Source)
	}
	if got := testutil.ToFloat64(f.metrics.GeocodeErrors.WithLabelValues("cache")); got != 1 {
		t.Errorf("expected 1 cache error, got %v", got)
	}
}

// TestResolve_CityShortcut tests city-only queries against the city table
func TestResolve_CityShortcut(t *testing.T) {
	f := newFixture(t, testOptions())

	result, err := f.service.Resolve(context.Background(), nil, models.AddressQuery{City: "Villa María", Province: "Córdoba"})

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Source != models.SourceCityTable {
		t.Errorf("expected source %s, got %s", models.SourceCityTable, result.Source)
	}
	if result.Score != geocode.CityScore {
		t.Errorf("expected score %v, got %v", geocode.CityScore, result.Score)
	}
	if result.Lat != -32.407 || result.Lon != -63.240 {
		t.Errorf("unexpected coordinates %v,%v", result.Lat, result.Lon)
	}
	if result.DisplayName != "Villa María, Córdoba, Argentina" {
		t.Errorf("unexpected display name %q", result.DisplayName)
	}
	if n := f.provider.TotalCalls(); n != 0 {
		t.Errorf("expected no provider calls, got %d", n)
	}
}

// TestResolve_PrimaryFirstResult tests that the primary provider's first result wins
func TestResolve_PrimaryFirstResult(t *testing.T) {
	f := newFixture(t, testOptions())
	f.provider.GeocodeResults = []models.OpenCageResult{
		{Lat: -31.40, Lng: -64.20, Formatted: "first"},
		{Lat: -31.50, Lng: -64.30, Formatted: "second"},
	}

	result, err := f.service.Resolve(context.Background(), nil, text("San Martín 50, Córdoba"))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.DisplayName != "first" {
		t.Errorf("expected first result, got %q", result.DisplayName)
	}
	if result.Score != geocode.ProviderScore || result.ZoomLevel != geocode.ZoomStreet || result.Type != "address" {
		t.Errorf("unexpected primary result %+v", result)
	}
	if n := len(f.provider.SearchCalls()); n != 0 {
		t.Errorf("expected open index untouched, got %d calls", n)
	}
	if f.cache.Sets() != 1 {
		t.Errorf("expected provider result cached, got %d writes", f.cache.Sets())
	}
}

// TestResolve_VariantFanout tests scoring across the variant answers
func TestResolve_VariantFanout(t *testing.T) {
	f := newFixture(t, testOptions())
	f.provider.GeocodeError = models.ErrProviderStatus

	query := "Bolivia 135, Córdoba, Córdoba"
	road := models.Candidate{
		Lat: -31.41, Lon: -64.18, DisplayName: "Bolivia, Córdoba, Argentina", Type: "road", Importance: 0.4,
		Address: models.CandidateAddress{Road: "Bolivia", City: "Córdoba", Country: "Argentina"},
	}
	house := models.Candidate{
		Lat: -31.4145, Lon: -64.1858, DisplayName: "135, Bolivia, Córdoba, Argentina", Type: "house", Importance: 0.3,
		Address: models.CandidateAddress{Road: "Bolivia", HouseNumber: "135", City: "Córdoba", Country: "Argentina"},
	}
	abroad := models.Candidate{
		Lat: -33.4, Lon: -70.6, DisplayName: "Bolivia 135, Santiago, Chile", Type: "house", Importance: 0.9,
		Address: models.CandidateAddress{Road: "Bolivia", HouseNumber: "135", City: "Córdoba", Country: "Chile"},
	}
	f.provider.SearchResults[query] = []models.Candidate{road}
	f.provider.SearchResults["Bolivia 135, Córdoba, Córdoba, Argentina"] = []models.Candidate{abroad}
	f.provider.SearchResults["Bolivia 135, Córdoba"] = []models.Candidate{house}
	f.provider.SearchErrors["Bolivia, Córdoba, Argentina"] = models.ErrProviderStatus

	result, err := f.service.Resolve(context.Background(), nil, text(query))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Lat != house.Lat || result.Lon != house.Lon {
		t.Errorf("expected house candidate, got %+v", result)
	}
	if result.Source != models.SourceNominatim {
		t.Errorf("expected source %s, got %s", models.SourceNominatim, result.Source)
	}
	if result.Relevance != 130 {
		t.Errorf("expected relevance 130, got %d", result.Relevance)
	}
	if result.Score != house.Importance {
		t.Errorf("expected importance as score, got %v", result.Score)
	}
	if result.ZoomLevel != 19 {
		t.Errorf("expected zoom 19, got %d", result.ZoomLevel)
	}

	variants := geocode.Variants(geocode.Decompose(query), geocode.DefaultCountry, nil)
	if got := len(f.provider.SearchCalls()); got != len(variants) {
		t.Errorf("expected %d variant requests, got %d", len(variants), got)
	}
}

// TestResolve_SlowVariantSettles tests that a timed-out variant does not block the rest
func TestResolve_SlowVariantSettles(t *testing.T) {
	opts := testOptions()
	opts.RequestTimeout = 50 * time.Millisecond
	f := newFixture(t, opts)

	query := "Bolivia 135, Córdoba, Córdoba"
	f.provider.SearchDelay[query] = 10 * time.Second
	f.provider.SearchResults["Bolivia 135, Córdoba"] = []models.Candidate{{
		Lat: -31.4145, Lon: -64.1858, Type: "house",
		Address: models.CandidateAddress{Road: "Bolivia", HouseNumber: "135", Country: "Argentina"},
	}}

	start := time.Now()
	result, err := f.service.Resolve(context.Background(), nil, text(query))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Lat != -31.4145 {
		t.Errorf("unexpected result %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the slow variant to time out, took %v", elapsed)
	}
}

// TestResolve_CityFallback tests the last-resort city centre
func TestResolve_CityFallback(t *testing.T) {
	f := newFixture(t, testOptions())
	sess := NewSession("fallback")

	result, err := f.service.Resolve(context.Background(), sess, text("Calle Inexistente 999, Rosario, Santa Fe"))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Lat != -32.944 || result.Lon != -60.639 {
		t.Errorf("expected Rosario centre, got %v,%v", result.Lat, result.Lon)
	}
	if !result.Fallback {
		t.Error("expected result flagged as fallback")
	}
	if result.Score != geocode.FallbackScore {
		t.Errorf("expected score %v, got %v", geocode.FallbackScore, result.Score)
	}
	if result.Source != models.SourceCityFallback {
		t.Errorf("expected source %s, got %s", models.SourceCityFallback, result.Source)
	}
	if f.cache.Sets() != 0 {
		t.Errorf("expected fallback kept out of the persistent cache, got %d writes", f.cache.Sets())
	}
	if sess.Cache.Len() != 0 {
		t.Errorf("expected fallback kept out of the session cache, got %d entries", sess.Cache.Len())
	}
}

// TestResolve_NotFound tests the error when every step comes up empty
func TestResolve_NotFound(t *testing.T) {
	f := newFixture(t, testOptions())

	_, err := f.service.Resolve(context.Background(), nil, text("Calle Inexistente 999, Ciudad Perdida"))

	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.ResolutionsNotFound); got != 1 {
		t.Errorf("expected 1 not-found resolution, got %v", got)
	}
}

// TestResolve_InvalidQuery tests validation errors
func TestResolve_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query models.AddressQuery
	}{
		{"empty", models.AddressQuery{}},
		{"blank text", models.AddressQuery{Text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testOptions())

			_, err := f.service.Resolve(context.Background(), nil, tt.query)

			if !errors.Is(err, models.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got: %v", err)
			}
			if n := f.provider.TotalCalls(); n != 0 {
				t.Errorf("expected no provider calls, got %d", n)
			}
		})
	}
}

// TestResolve_SessionCache tests reuse of a session's own results
func TestResolve_SessionCache(t *testing.T) {
	f := newFixture(t, testOptions())
	f.service.cache = nil
	f.provider.GeocodeResults = []models.OpenCageResult{{Lat: -31.4, Lng: -64.2}}
	sess := NewSession("")

	first, err := f.service.Resolve(context.Background(), sess, text("San Martín 50, Córdoba"))
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := f.service.Resolve(context.Background(), sess, text("san martin 50, cordoba"))
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if first.Cached {
		t.Error("expected first result from provider")
	}
	if !second.Cached {
		t.Error("expected second result from session cache")
	}
	if n := len(f.provider.GeocodeCalls()); n != 1 {
		t.Errorf("expected 1 primary call, got %d", n)
	}
}

// TestResolve_Superseded tests that a newer resolution on a session cancels the older one
func TestResolve_Superseded(t *testing.T) {
	opts := testOptions()
	opts.RequestTimeout = 10 * time.Second
	f := newFixture(t, opts)
	f.service.primary = nil

	slow := "Calle Lenta 10, Ciudad Perdida"
	f.provider.SearchDelay[slow] = 10 * time.Second
	sess := NewSession("supersede")

	errc := make(chan error, 1)
	go func() {
		_, err := f.service.Resolve(context.Background(), sess, text(slow))
		errc <- err
	}()

	waitFor(t, func() bool { return len(f.provider.SearchCalls()) > 0 })

	result, err := f.service.Resolve(context.Background(), sess, text("Bolivia 133, Córdoba"))
	if err != nil {
		t.Fatalf("newer resolve: %v", err)
	}
	if result.Source != models.SourceKnown {
		t.Errorf("expected known result, got %s", result.Source)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, models.ErrSuperseded) {
			t.Errorf("expected ErrSuperseded, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded resolution did not return")
	}

	waitFor(t, func() bool { return f.service.flights.inflight() == 0 })
	if got := testutil.ToFloat64(f.metrics.ResolutionsSuperseded); got != 1 {
		t.Errorf("expected 1 superseded resolution, got %v", got)
	}
}

// TestResolve_CoalescesIdenticalQueries tests that concurrent identical queries share one run
func TestResolve_CoalescesIdenticalQueries(t *testing.T) {
	f := newFixture(t, testOptions())
	f.service.primary = nil

	query := "Bolivia 135, Córdoba, Córdoba"
	f.provider.SearchDelay[query] = 300 * time.Millisecond
	f.provider.SearchResults["Bolivia 135, Córdoba"] = []models.Candidate{{
		Lat: -31.4145, Lon: -64.1858, Type: "house",
		Address: models.CandidateAddress{Road: "Bolivia", HouseNumber: "135", Country: "Argentina"},
	}}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*models.GeocodeResult, callers)
	errs := make([]error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.service.Resolve(context.Background(), NewSession(""), text(query))
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Lat != -31.4145 {
			t.Errorf("caller %d: unexpected result %+v", i, results[i])
		}
	}

	variants := geocode.Variants(geocode.Decompose(query), geocode.DefaultCountry, nil)
	if got := len(f.provider.SearchCalls()); got != len(variants) {
		t.Errorf("expected one fan-out of %d requests, got %d", len(variants), got)
	}
}

// TestCoalescer_AbandonCancelsRun tests that the run stops once every caller has left
func TestCoalescer_AbandonCancelsRun(t *testing.T) {
	c := newCoalescer()
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	stopped := make(chan struct{})
	errc := make(chan error, 1)

	go func() {
		_, _, err := c.do(ctx, "key", time.Minute, func(runCtx context.Context) (*models.GeocodeResult, error) {
			close(started)
			<-runCtx.Done()
			close(stopped)
			return nil, runCtx.Err()
		})
		errc <- err
	}()

	<-started
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("shared run was not cancelled")
	}
	if n := c.inflight(); n != 0 {
		t.Errorf("expected no flights left, got %d", n)
	}
}

// TestCoalescer_RunSurvivesOneCaller tests that a remaining waiter keeps the run alive
func TestCoalescer_RunSurvivesOneCaller(t *testing.T) {
	c := newCoalescer()
	leaving, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	fn := func(runCtx context.Context) (*models.GeocodeResult, error) {
		close(started)
		select {
		case <-release:
			return &models.GeocodeResult{Lat: 1}, nil
		case <-runCtx.Done():
			return nil, runCtx.Err()
		}
	}

	first := make(chan error, 1)
	go func() {
		_, _, err := c.do(leaving, "key", time.Minute, fn)
		first <- err
	}()
	<-started

	second := make(chan *models.GeocodeResult, 1)
	go func() {
		res, _, _ := c.do(context.Background(), "key", time.Minute, fn)
		second <- res
	}()
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f := c.flights["key"]
		return f != nil && f.waiters == 2
	})

	cancel()
	<-first
	close(release)

	select {
	case res := <-second:
		if res == nil || res.Lat != 1 {
			t.Errorf("expected shared result, got %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining caller got no result")
	}
}

// TestFanoutTracker tests settle counting and best selection
func TestFanoutTracker(t *testing.T) {
	t.Run("finalizes after every settle", func(t *testing.T) {
		tr := newFanoutTracker(3)
		tr.settle(nil)
		tr.settle(&geocode.Scored{Score: 10})

		select {
		case <-tr.Done():
			t.Fatal("finalized before all requests settled")
		default:
		}

		tr.settle(nil)
		select {
		case <-tr.Done():
		default:
			t.Fatal("expected finalized after 3 settles")
		}

		tr.settle(&geocode.Scored{Score: 99})
		if tr.settled() != 3 {
			t.Errorf("expected extra settle ignored, got %d", tr.settled())
		}
		best, ok := tr.result()
		if !ok || best.Score != 10 {
			t.Errorf("expected best score 10, got %d (found=%v)", best.Score, ok)
		}
	})

	t.Run("zero total is final", func(t *testing.T) {
		tr := newFanoutTracker(0)
		select {
		case <-tr.Done():
		default:
			t.Fatal("expected empty tracker finalized")
		}
		if _, ok := tr.result(); ok {
			t.Error("expected no result")
		}
	})

	t.Run("ties keep the first", func(t *testing.T) {
		tr := newFanoutTracker(2)
		tr.settle(&geocode.Scored{Score: 40, Candidate: models.Candidate{DisplayName: "first"}})
		tr.settle(&geocode.Scored{Score: 40, Candidate: models.Candidate{DisplayName: "second"}})

		best, _ := tr.result()
		if best.Candidate.DisplayName != "first" {
			t.Errorf("expected first candidate kept, got %q", best.Candidate.DisplayName)
		}
	})

	t.Run("concurrent settles", func(t *testing.T) {
		const n = 50
		tr := newFanoutTracker(n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr.settle(&geocode.Scored{Score: i})
			}(i)
		}
		wg.Wait()

		<-tr.Done()
		best, _ := tr.result()
		if best.Score != n-1 {
			t.Errorf("expected best %d, got %d", n-1, best.Score)
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
