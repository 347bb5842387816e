// Package runtime holds the named set of engines and dispatches move requests
// to them.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/chessgate/internal/engine/cache"
	"github.com/felixgeelhaar/chessgate/internal/engine/registry"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/internal/journal"
	"github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

// Markers used by CompareEngines.
const (
	UnavailableMarker = "UNAVAILABLE"
	ErrorPrefix       = "ERROR: "
)

const defaultProbeTimeout = 15 * time.Second

// ErrNoSources is returned by Reload when the manager was built without a loader.
var ErrNoSources = errors.New("no engine configuration sources")

// Options configures a Manager. Every collaborator is optional.
type Options struct {
	// Loader and Sources are used by Reload.
	Loader  *registry.Loader
	Sources []string

	// Cache stores moves of schema-validated engines for CacheTTL.
	Cache    cache.MoveCache
	CacheTTL time.Duration

	Journal   journal.Store
	Publisher eventbus.Publisher
	Metrics   *Metrics
	Breaker   BreakerConfig

	// ProbeTimeout bounds each availability probe.
	ProbeTimeout time.Duration

	Logger *slog.Logger
}

// Manager owns the named engines.
type Manager struct {
	mu           sync.RWMutex
	engines      map[string]sdk.Engine
	fingerprints map[string]string
	available    map[string]bool

	loader       *registry.Loader
	sources      []string
	cache        cache.MoveCache
	cacheTTL     time.Duration
	journal      journal.Store
	publisher    eventbus.Publisher
	metrics      *Metrics
	breakers     *breakerSet
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewManager creates a manager over an initial engine set.
func NewManager(engines map[string]sdk.Engine, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if engines == nil {
		engines = make(map[string]sdk.Engine)
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	m := &Manager{
		engines:      engines,
		fingerprints: fingerprintAll(engines),
		available:    make(map[string]bool),
		loader:       opts.Loader,
		sources:      opts.Sources,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		journal:      opts.Journal,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		breakers:     newBreakerSet(opts.Breaker, opts.Metrics, logger),
		probeTimeout: probeTimeout,
		logger:       logger,
	}
	m.metrics.setEngineCount(len(engines))
	return m
}

// Load builds the engine set from the configured sources.
func Load(opts Options) (*Manager, error) {
	if opts.Loader == nil {
		return nil, ErrNoSources
	}
	engines, err := opts.Loader.LoadSources(opts.Sources)
	if err != nil {
		return nil, err
	}
	return NewManager(engines, opts), nil
}

// Sources returns the configuration sources Reload reads.
func (m *Manager) Sources() []string {
	return append([]string(nil), m.sources...)
}

// GetMove asks the named engine for a move. Unknown engines and engines
// whose last probe failed yield a NotFoundError; engine failures are
// returned as the engine reported them.
func (m *Manager) GetMove(ctx context.Context, name string, req sdk.MoveRequest) (sdk.MoveResult, error) {
	ctx, requestID := observability.EnsureRequestID(ctx)
	start := time.Now()

	m.mu.RLock()
	engine, ok := m.engines[name]
	fingerprint := m.fingerprints[name]
	up, probed := m.available[name]
	m.mu.RUnlock()

	if !ok || (probed && !up) {
		sentinel := sdk.ErrEngineNotFound
		if ok {
			sentinel = sdk.ErrEngineUnavailable
		}
		m.metrics.observeMove(name, OutcomeNotFound, 0)
		return sdk.MoveResult{}, &sdk.NotFoundError{Name: name, Available: m.usableNames(), Err: sentinel}
	}

	desc := engine.Descriptor()
	depth := req.DepthOr(0)
	cacheable := m.cache != nil && desc.ValidationMode == sdk.ValidationSchema && !req.Context.Explanation
	key := cache.Key(name, fingerprint, req.FEN, depth)

	if cacheable {
		move, hit, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.WarnContext(ctx, "move cache read failed", "engine", name, "error", err)
		}
		if hit {
			result := sdk.MoveResult{Move: move, RawResponse: move}
			m.finish(ctx, requestID, desc, req, result, nil, true, time.Since(start))
			return result, nil
		}
	}

	result, err := m.breakers.execute(name, func() (sdk.MoveResult, error) {
		return engine.GetMove(ctx, req)
	})
	m.finish(ctx, requestID, desc, req, result, err, false, time.Since(start))
	if err != nil {
		return sdk.MoveResult{}, err
	}

	if cacheable {
		if err := m.cache.Set(ctx, key, result.Move, m.cacheTTL); err != nil {
			m.logger.WarnContext(ctx, "move cache write failed", "engine", name, "error", err)
		}
	}
	return result, nil
}

// finish records the outcome of a GetMove call. Journal and event failures
// are logged and never change the result.
func (m *Manager) finish(ctx context.Context, requestID string, desc sdk.Descriptor, req sdk.MoveRequest, result sdk.MoveResult, err error, cached bool, d time.Duration) {
	outcome := OutcomeOK
	switch {
	case cached:
		outcome = OutcomeCached
	case sdk.IsCircuitOpen(err):
		outcome = OutcomeCircuitOpen
	case err != nil:
		outcome = OutcomeError
	}
	m.metrics.observeMove(desc.Name, outcome, d)

	log := m.logger.With("engine", desc.Name, "kind", desc.Kind, "protocol", desc.Protocol)
	if err != nil {
		log.WarnContext(ctx, "move failed", "error", err, "duration_ms", d.Milliseconds())
	} else {
		log.InfoContext(ctx, "move computed", "move", result.Move, "cached", cached, "duration_ms", d.Milliseconds())
	}

	var errText string
	if err != nil {
		errText = err.Error()
	}

	if m.journal != nil {
		status := journal.StatusOK
		if err != nil {
			status = journal.StatusError
		}
		entry := journal.Entry{
			RequestID: requestID,
			Engine:    desc.Name,
			FEN:       req.FEN,
			Depth:     req.DepthOr(0),
			Move:      result.Move,
			Status:    status,
			Error:     errText,
			Cached:    cached,
			Duration:  d,
		}
		if jerr := m.journal.Record(ctx, entry); jerr != nil {
			log.WarnContext(ctx, "journal write failed", "error", jerr)
		}
	}

	if m.publisher != nil {
		event := MoveEvent{
			RequestID:  requestID,
			Engine:     desc.Name,
			Kind:       desc.Kind.String(),
			Protocol:   desc.Protocol,
			FEN:        req.FEN,
			Depth:      req.DepthOr(0),
			Move:       result.Move,
			Error:      errText,
			Cached:     cached,
			DurationMS: d.Milliseconds(),
			OccurredAt: time.Now().UTC(),
		}
		if perr := eventbus.PublishJSON(ctx, m.publisher, event.RoutingKey(), event); perr != nil {
			log.WarnContext(ctx, "move event publish failed", "error", perr)
		}
	}
}

// ListEngines returns the engine names in order.
func (m *Manager) ListEngines() []string {
	return registry.Names(m.snapshot())
}

// Engine returns the named engine.
func (m *Manager) Engine(name string) (sdk.Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.engines[name]
	return e, ok
}

// GetEngineInfo summarizes every engine, ordered by name.
func (m *Manager) GetEngineInfo() []sdk.EngineInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := registry.Names(m.engines)
	infos := make([]sdk.EngineInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, sdk.NewEngineInfo(m.engines[name], m.availabilityLocked(name)))
	}
	return infos
}

// EngineInfo summarizes one engine.
func (m *Manager) EngineInfo(name string) (sdk.EngineInfo, error) {
	m.mu.RLock()
	e, ok := m.engines[name]
	var available *bool
	if ok {
		available = m.availabilityLocked(name)
	}
	m.mu.RUnlock()

	if !ok {
		return sdk.EngineInfo{}, &sdk.NotFoundError{Name: name, Available: m.ListEngines(), Err: sdk.ErrEngineNotFound}
	}
	return sdk.NewEngineInfo(e, available), nil
}

// BreakerState reports the circuit breaker state of an engine.
func (m *Manager) BreakerState(name string) string {
	return m.breakers.state(name)
}

// ClassificationMatrix classifies every engine.
func (m *Manager) ClassificationMatrix() []registry.Classification {
	return registry.Matrix(m.snapshot())
}

// FilterByKind returns the names of engines of one kind.
func (m *Manager) FilterByKind(kind sdk.Kind) []string {
	return registry.Names(registry.FilterByKind(m.snapshot(), kind))
}

// FilterByOrigin returns the names of engines of one origin.
func (m *Manager) FilterByOrigin(origin sdk.Origin) []string {
	return registry.Names(registry.FilterByOrigin(m.snapshot(), origin))
}

// FilterByProtocol returns the names of engines speaking a protocol.
func (m *Manager) FilterByProtocol(protocol string) []string {
	return registry.Names(registry.FilterByProtocol(m.snapshot(), protocol))
}

// CompareEngines asks every engine for a move in parallel. The value for
// each engine is its move, UnavailableMarker, or ErrorPrefix plus the error.
func (m *Manager) CompareEngines(ctx context.Context, fen string, depth *int) map[string]string {
	engines := m.snapshot()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(engines))
		g       errgroup.Group
	)
	set := func(name, value string) {
		mu.Lock()
		results[name] = value
		mu.Unlock()
	}

	for name := range engines {
		if m.isUnavailable(name) {
			set(name, UnavailableMarker)
			continue
		}
		g.Go(func() error {
			res, err := m.GetMove(ctx, name, sdk.MoveRequest{FEN: fen, Depth: depth})
			if err != nil {
				set(name, ErrorPrefix+err.Error())
				return nil
			}
			set(name, res.Move)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CheckAllAvailability probes every engine concurrently and records the
// result. One failing probe never affects the others.
func (m *Manager) CheckAllAvailability(ctx context.Context) map[string]sdk.HealthStatus {
	engines := m.snapshot()

	var (
		mu     sync.Mutex
		report = make(map[string]sdk.HealthStatus, len(engines))
		g      errgroup.Group
	)

	for name, engine := range engines {
		g.Go(func() error {
			status := m.probe(ctx, name, engine)

			mu.Lock()
			report[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for name, status := range report {
		if _, ok := m.engines[name]; ok {
			m.available[name] = status.Healthy
		}
	}
	m.mu.Unlock()

	return report
}

func (m *Manager) probe(ctx context.Context, name string, engine sdk.Engine) sdk.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	err := engine.CheckAvailability(ctx)
	elapsed := time.Since(start)
	m.metrics.observeProbe(name, err == nil)

	desc := engine.Descriptor()
	details := map[string]any{
		"kind":        desc.Kind.String(),
		"protocol":    desc.Protocol,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		m.logger.WarnContext(ctx, "engine unavailable", "engine", name, "error", err)
		return sdk.NewHealthStatus(false, err.Error()).WithDetails(details)
	}
	m.logger.DebugContext(ctx, "engine available", "engine", name, "duration_ms", elapsed.Milliseconds())
	return sdk.NewHealthStatus(true, "available").WithDetails(details)
}

// Reload rebuilds the engine set from the configured sources. The new set
// is built before anything is torn down, so a failed reload keeps the
// previous engines in service.
func (m *Manager) Reload(ctx context.Context) error {
	if m.loader == nil {
		return ErrNoSources
	}

	engines, err := m.loader.LoadSources(m.sources)
	if err != nil {
		m.metrics.observeReload(false, 0)
		m.logger.ErrorContext(ctx, "engine reload failed, keeping previous engines", "error", err)
		return fmt.Errorf("reload engines: %w", err)
	}

	fingerprints := fingerprintAll(engines)

	m.mu.Lock()
	previous := m.engines
	stale := changedEngines(m.fingerprints, fingerprints)
	m.engines = engines
	m.fingerprints = fingerprints
	m.available = make(map[string]bool)
	m.mu.Unlock()

	m.invalidate(ctx, stale)
	m.breakers.reset()
	m.cleanup(ctx, previous)

	m.metrics.observeReload(true, len(engines))
	m.logger.InfoContext(ctx, "engines reloaded", "engines", len(engines), "previous", len(previous))
	return nil
}

// invalidate drops cached moves of engines whose configuration changed or
// that are gone. Keys already carry the fingerprint; this reclaims space.
func (m *Manager) invalidate(ctx context.Context, names []string) {
	if m.cache == nil {
		return
	}
	for _, name := range names {
		if err := m.cache.Invalidate(ctx, name); err != nil {
			m.logger.WarnContext(ctx, "move cache invalidation failed", "engine", name, "error", err)
		}
	}
}

// fingerprintAll hashes the configuration of every engine. Engines that do
// not expose their configuration get "".
func fingerprintAll(engines map[string]sdk.Engine) map[string]string {
	out := make(map[string]string, len(engines))
	for name, e := range engines {
		out[name] = ""
		if c, ok := e.(interface{ Config() sdk.EngineConfig }); ok {
			out[name] = cache.Fingerprint(c.Config().Raw)
		}
	}
	return out
}

// changedEngines lists names from before whose fingerprint differs in after,
// is unknown, or that after no longer has.
func changedEngines(before, after map[string]string) []string {
	var names []string
	for name, fp := range before {
		if next, ok := after[name]; !ok || fp == "" || next != fp {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CleanupAll releases every engine's transport. Errors are logged.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.cleanup(ctx, m.snapshot())
}

func (m *Manager) cleanup(ctx context.Context, engines map[string]sdk.Engine) {
	for _, name := range registry.Names(engines) {
		if err := engines[name].Cleanup(ctx); err != nil {
			m.logger.WarnContext(ctx, "engine cleanup failed", "engine", name, "error", err)
		}
	}
}

// Close cleans up the engines and the side-effect sinks.
func (m *Manager) Close(ctx context.Context) error {
	m.CleanupAll(ctx)

	var errs []error
	if m.cache != nil {
		errs = append(errs, m.cache.Close())
	}
	if m.journal != nil {
		errs = append(errs, m.journal.Close())
	}
	if m.publisher != nil {
		errs = append(errs, m.publisher.Close())
	}
	return errors.Join(errs...)
}

// Journal returns the move journal, nil when none is configured.
func (m *Manager) Journal() journal.Store {
	return m.journal
}

func (m *Manager) snapshot() map[string]sdk.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]sdk.Engine, len(m.engines))
	for name, e := range m.engines {
		out[name] = e
	}
	return out
}

func (m *Manager) isUnavailable(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	up, probed := m.available[name]
	return probed && !up
}

func (m *Manager) availabilityLocked(name string) *bool {
	up, probed := m.available[name]
	if !probed {
		return nil
	}
	return &up
}

// usableNames lists engines that are not known to be unavailable.
func (m *Manager) usableNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		if up, probed := m.available[name]; probed && !up {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
