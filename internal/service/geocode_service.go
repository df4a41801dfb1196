package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/geocoder/internal/cache"
	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/evyataryagoni/geocoder/internal/metrics"
	"github.com/evyataryagoni/geocoder/internal/models"
	"github.com/evyataryagoni/geocoder/internal/provider"
	"github.com/evyataryagoni/geocoder/internal/store"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators of GeocodeService. Known is required; a nil
// provider skips its steps and a nil Cache disables the persistent cache.
type Deps struct {
	Known   store.KnownStore
	Cache   cache.Cache
	Primary provider.PrimaryProvider
	Search  provider.SearchProvider
	Reverse provider.ReverseProvider
	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// Now is the clock (time.Now when nil)
	Now func() time.Time
}

// GeocodeService handles forward and reverse geocoding
// This is the service layer - it sits between handlers and providers/stores
//
// Responsibilities:
//   - Validate input
//   - Walk the resolution steps (known table, caches, city table, providers, fallback)
//   - Keep per-session state and share identical in-flight resolutions
//   - Record metrics and logs
type GeocodeService struct {
	known    store.KnownStore
	cache    cache.Cache
	primary  provider.PrimaryProvider
	search   provider.SearchProvider
	reverse  provider.ReverseProvider
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
	opts     Options
	validate *validator.Validate

	flights      *coalescer
	reverseCache *reverseCache
}

// NewGeocodeService creates a new geocoding service
//
// Parameters:
//   - deps: stores, caches, providers and observability
//   - opts: resolver tuning (zero fields take defaults)
func NewGeocodeService(deps Deps, opts Options) *GeocodeService {
	if deps.Logger == nil {
		deps.Logger = logger.NewDefault()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	opts = opts.withDefaults()

	return &GeocodeService{
		known:        deps.Known,
		cache:        deps.Cache,
		primary:      deps.Primary,
		search:       deps.Search,
		reverse:      deps.Reverse,
		metrics:      deps.Metrics,
		logger:       deps.Logger.WithComponent("GeocodeService"),
		now:          deps.Now,
		opts:         opts,
		validate:     validator.New(),
		flights:      newCoalescer(),
		reverseCache: newReverseCache(opts.ReverseCacheSize),
	}
}

// Options returns the effective options
func (s *GeocodeService) Options() Options {
	return s.opts
}

// Resolve turns an address query into the best known location
//
// Flow:
//  1. Known-address table (exact then substring match)
//  2. Persistent cache (fresh entries only), then the session cache
//  3. City-only shortcut when the query has a city and no street
//  4. Primary provider, first result wins
//  5. Open index fan-out over the query variants, best score wins
//  6. City table as a flagged fallback, else models.ErrNotFound
//
// sess may be nil for one-off resolutions. A newer Resolve on the same
// session cancels this one, which then returns models.ErrSuperseded.
// Concurrent callers asking the same normalized query share steps 3 to 6.
func (s *GeocodeService) Resolve(ctx context.Context, sess *Session, q models.AddressQuery) (*models.GeocodeResult, error) {
	if err := s.validate.Struct(q); err != nil {
		s.countError("validation")
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidQuery, err)
	}

	text := q.String()
	normalized := geocode.Normalize(text)
	if normalized == "" {
		s.countError("validation")
		return nil, models.ErrInvalidQuery
	}

	log := s.logger.WithQuery(text)
	if sess != nil {
		log = log.WithSession(sess.ID)
		var release func()
		ctx, release = sess.begin(ctx)
		defer release()
	}

	parts := geocode.PartsFor(q)
	key := cache.Key(normalized)

	// Step 1: known-address table
	if result := s.findKnownAddress(ctx, parts); result != nil {
		log.Debug().Msg("Resolved from known-address table")
		s.writePersistent(ctx, key, result)
		return s.finish(ctx, sess, key, result)
	}

	// Step 2: persistent cache, then session cache
	if result := s.fromCache(ctx, "persistent", s.cache, key, s.opts.CacheTTL); result != nil {
		log.Debug().Msg("Resolved from persistent cache")
		return s.finish(ctx, sess, key, result)
	}
	if sess != nil {
		if result := s.fromCache(ctx, "session", sess.Cache, key, 0); result != nil {
			log.Debug().Msg("Resolved from session cache")
			return s.finish(ctx, sess, key, result)
		}
	}

	// Steps 3 to 6 are shared between identical concurrent queries
	result, shared, err := s.flights.do(ctx, normalized, s.opts.ResolveTimeout, func(runCtx context.Context) (*models.GeocodeResult, error) {
		return s.resolveRemote(runCtx, log, parts, text, key)
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSuperseded):
			log.Debug().Msg("Resolution superseded")
			if s.metrics != nil {
				s.metrics.ResolutionsSuperseded.Inc()
			}
		case errors.Is(err, models.ErrNotFound):
			log.Info().Msg("Address not found")
			if s.metrics != nil {
				s.metrics.ResolutionsNotFound.Inc()
			}
		default:
			log.Warn().Err(err).Msg("Resolution failed")
			s.countError("resolve")
		}
		return nil, err
	}
	if shared {
		log.Debug().Msg("Resolution shared with a concurrent identical query")
	}

	return s.finish(ctx, sess, key, result)
}

// finish records the outcome and stores it in the session cache.
// Fallback results are never cached.
func (s *GeocodeService) finish(ctx context.Context, sess *Session, key string, result *models.GeocodeResult) (*models.GeocodeResult, error) {
	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	if sess != nil && !result.Fallback && !result.Cached {
		_ = sess.Cache.Set(ctx, key, cache.NewEntry(result, s.now()))
	}
	if s.metrics != nil {
		source := result.Source
		if result.Cached {
			source = models.SourceCache
		}
		s.metrics.ResolutionsTotal.WithLabelValues(source).Inc()
	}
	return result, nil
}

// resolveRemote runs steps 3 to 6
func (s *GeocodeService) resolveRemote(ctx context.Context, log *logger.Logger, parts models.AddressParts, text, key string) (*models.GeocodeResult, error) {
	// Step 3: city-only shortcut
	if parts.City != "" && parts.Street == "" {
		if city := s.findCity(ctx, parts.City); city != nil {
			result := geocode.CityResult(*city, parts, s.opts.Country, false)
			log.Debug().Str("city", parts.City).Msg("Resolved from city table")
			s.writePersistent(ctx, key, result)
			return result, nil
		}
	}

	// Step 4: primary provider
	if result := s.fromPrimary(ctx, log, text); result != nil {
		s.writePersistent(ctx, key, result)
		return result, nil
	}

	// Step 5: open index fan-out
	if result := s.fromVariants(ctx, log, parts); result != nil {
		s.writePersistent(ctx, key, result)
		return result, nil
	}

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	// Step 6: city table as last resort
	if parts.City != "" {
		if city := s.findCity(ctx, parts.City); city != nil {
			log.Info().Str("city", parts.City).Msg("Falling back to city centre")
			return geocode.CityResult(*city, parts, s.opts.Country, true), nil
		}
	}

	return nil, models.ErrNotFound
}

func (s *GeocodeService) findKnownAddress(ctx context.Context, parts models.AddressParts) *models.GeocodeResult {
	key, ok := geocode.KnownAddressKey(parts)
	if !ok || s.known == nil {
		return nil
	}

	start := time.Now()
	loc, err := s.known.FindAddress(ctx, key)
	s.observeStore("find_address", start, err)
	if err != nil {
		if !errors.Is(err, models.ErrStoreNotFound) {
			s.logger.Warn().Err(err).Msg("Known-address lookup failed")
			s.countError("store")
		}
		return nil
	}
	return geocode.KnownResult(*loc)
}

func (s *GeocodeService) findCity(ctx context.Context, name string) *models.KnownCity {
	if s.known == nil {
		return nil
	}

	start := time.Now()
	city, err := s.known.FindCity(ctx, name)
	s.observeStore("find_city", start, err)
	if err != nil {
		if !errors.Is(err, models.ErrStoreNotFound) {
			s.logger.Warn().Err(err).Msg("Known-city lookup failed")
			s.countError("store")
		}
		return nil
	}
	return city
}

// fromCache returns a copy of the cached result marked as cached, or nil.
// A zero ttl accepts entries of any age.
func (s *GeocodeService) fromCache(ctx context.Context, name string, c cache.Cache, key string, ttl time.Duration) *models.GeocodeResult {
	if c == nil {
		return nil
	}

	entry, err := c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
			s.countError("cache")
		}
		s.countCache(name, "miss")
		return nil
	}
	if ttl > 0 && !cache.Fresh(entry, s.now(), ttl) {
		s.countCache(name, "stale")
		return nil
	}
	s.countCache(name, "hit")

	var result models.GeocodeResult
	if entry.Result != nil {
		result = *entry.Result
	} else {
		result = models.GeocodeResult{Lat: entry.Lat, Lon: entry.Lon, Source: models.SourceCache}
	}
	if result.ZoomLevel == 0 {
		result.ZoomLevel = entry.ZoomLevel
	}
	result.Cached = true
	return &result
}

func (s *GeocodeService) writePersistent(ctx context.Context, key string, result *models.GeocodeResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, cache.NewEntry(result, s.now())); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		s.countError("cache")
	}
}

// fromPrimary asks the primary provider and takes its first result as is
func (s *GeocodeService) fromPrimary(ctx context.Context, log *logger.Logger, text string) *models.GeocodeResult {
	if s.primary == nil {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	results, err := s.primary.Geocode(reqCtx, text, s.opts.PrimaryLimit)
	if err != nil {
		log.Debug().Err(err).Msg("Primary provider failed")
		return nil
	}
	if len(results) == 0 {
		log.Debug().Msg("Primary provider returned no results")
		return nil
	}

	first := results[0]
	return &models.GeocodeResult{
		Lat:         first.Lat,
		Lon:         first.Lng,
		DisplayName: first.Formatted,
		Type:        "address",
		Score:       geocode.ProviderScore,
		ZoomLevel:   geocode.ZoomStreet,
		Source:      models.SourceOpenCage,
	}
}

// fromVariants sends every query variant to the open index, launching them
// i*Stagger apart, and returns the best scored candidate once all settled
func (s *GeocodeService) fromVariants(ctx context.Context, log *logger.Logger, parts models.AddressParts) *models.GeocodeResult {
	if s.search == nil {
		return nil
	}

	variants := geocode.Variants(parts, s.opts.Country, s.opts.Regions)
	if s.metrics != nil {
		s.metrics.VariantFanoutSize.Observe(float64(len(variants)))
	}

	tracker := newFanoutTracker(len(variants))
	g, gctx := errgroup.WithContext(ctx)

	for i, variant := range variants {
		delay := time.Duration(i) * s.opts.Stagger
		g.Go(func() error {
			tracker.settle(s.searchVariant(gctx, log, parts, variant, delay))
			return nil
		})
	}

	<-tracker.Done()
	_ = g.Wait()

	best, ok := tracker.result()
	if !ok {
		log.Debug().Int("variants", len(variants)).Msg("No variant produced a candidate")
		return nil
	}

	log.Debug().
		Int("variants", len(variants)).
		Int("score", best.Score).
		Str("display_name", best.Candidate.DisplayName).
		Msg("Resolved from open index")

	return &models.GeocodeResult{
		Lat:         best.Candidate.Lat,
		Lon:         best.Candidate.Lon,
		DisplayName: best.Candidate.DisplayName,
		Type:        best.Candidate.Type,
		Score:       best.Candidate.Importance,
		Relevance:   best.Score,
		ZoomLevel:   best.ZoomLevel,
		Source:      models.SourceNominatim,
	}
}

// searchVariant waits for its launch slot, runs one bounded request and
// returns the best candidate of that answer, or nil
func (s *GeocodeService) searchVariant(ctx context.Context, log *logger.Logger, parts models.AddressParts, variant string, delay time.Duration) *geocode.Scored {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	candidates, err := s.search.Search(reqCtx, variant, s.opts.SearchLimit)
	if err != nil {
		log.Debug().Err(err).Str("variant", variant).Msg("Variant request failed")
		return nil
	}

	candidates = geocode.FilterByCountry(candidates, s.opts.Country)
	best, ok := geocode.Best(candidates, parts, s.opts.Regions)
	if !ok {
		return nil
	}
	return &best
}

func (s *GeocodeService) countError(kind string) {
	if s.metrics != nil {
		s.metrics.GeocodeErrors.WithLabelValues(kind).Inc()
	}
}

// observeStore records one known-table query. A miss is a successful query.
func (s *GeocodeService) observeStore(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, models.ErrStoreNotFound) {
		status = "error"
	}
	s.metrics.DatastoreQueriesTotal.WithLabelValues("known", operation, status).Inc()
	s.metrics.DatastoreQueryDuration.WithLabelValues("known", operation).Observe(time.Since(start).Seconds())
}

func (s *GeocodeService) countCache(name, result string) {
	if s.metrics != nil {
		s.metrics.DatastoreCacheHits.WithLabelValues(name, result).Inc()
	}
}
