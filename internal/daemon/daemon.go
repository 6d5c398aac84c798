package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sonata-sse/sse-core/internal/activitystrategy"
	"github.com/sonata-sse/sse-core/internal/api"
	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/health"
	"github.com/sonata-sse/sse-core/internal/infra/anomaly"
	"github.com/sonata-sse/sse-core/internal/infra/fabric"
	"github.com/sonata-sse/sse-core/internal/infra/resilience"
	"github.com/sonata-sse/sse-core/internal/infra/satcat"
	"github.com/sonata-sse/sse-core/internal/infra/scheduler"
	"github.com/sonata-sse/sse-core/internal/infra/skyvis"
	"github.com/sonata-sse/sse-core/internal/infra/sqlite"
	"github.com/sonata-sse/sse-core/internal/infra/topology"
	"github.com/sonata-sse/sse-core/internal/infra/tuner"
	"github.com/sonata-sse/sse-core/internal/obshistory"
)

// Daemon is the core runtime. It wires together the component fabric,
// target scheduler, detector tuner, activity strategy/orchestration,
// persistence, and health/status reporting from a single Config.
type Daemon struct {
	Config Config

	DB         *sqlite.DB
	Site       *fabric.Site
	Scheduler  *scheduler.TargetScheduler
	Tuner      *tuner.DetectorTuner
	Strategy   *activitystrategy.Strategy
	History    *obshistory.Store
	Health     *health.Checker
	Quarantine *resilience.QuarantineManager
	Anomaly    *anomaly.Detector
	Server     *api.Server

	cancel context.CancelFunc

	mu      sync.Mutex
	current *domain.Activity
}

// New creates a Daemon from ./sse-core.toml, falling back to
// DefaultConfig() if the file does not exist.
func New() (*Daemon, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat("sse-core.toml"); err == nil {
		loaded, err := LoadConfig("sse-core.toml")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration, opening the
// database, parsing the expected topology, and wiring every service.
func NewWithConfig(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.DB.DataDir)
	if err != nil {
		return nil, fmt.Errorf("daemon: open database: %w", err)
	}

	topo, err := loadTopology(cfg.Topology.File)
	if err != nil {
		db.Close()
		return nil, err
	}

	site := fabric.NewSite(fabric.SiteConfig{
		TelescopeInterfaceVersion: cfg.Site.TelescopeInterfaceVersion,
		IFChainInterfaceVersion:   cfg.Site.IFChainInterfaceVersion,
		TestgenInterfaceVersion:   cfg.Site.TestgenInterfaceVersion,
		DetectorInterfaceVersion:  cfg.Site.DetectorInterfaceVersion,
		DuplicateNamePolicy:       domain.RejectNewProxyWithDuplicateName,
	}, topo, db.Conn())

	catalog := satcat.NewCatalog(satcat.DefaultTagPriorities, cfg.SatCat.GeoSlotsRad, cfg.SatCat.AnnulusHalfWidthRad)
	sky := skyvis.New(skyvis.DefaultConfig(), catalog)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.AllowedRange = cfg.Scheduler.allowedRange()
	schedCfg.MinRemainingOnTarget = cfg.Scheduler.minRemainingOnTarget()
	schedCfg.ReservedFollowupHeadroom = cfg.Scheduler.reservedFollowupHeadroom()
	schedCfg.MinAcceptableRemainingBandMhz = cfg.Scheduler.MinAcceptableRemainingBandMhz
	schedCfg.MinSeparationBeamsizes = cfg.Scheduler.MinSeparationBeamsizes
	schedCfg.RotationWindow = cfg.Scheduler.RotationWindow
	schedCfg.DecMinRad = cfg.Scheduler.DecMinRad
	schedCfg.DecMaxRad = cfg.Scheduler.DecMaxRad
	sched := scheduler.NewTargetScheduler(schedCfg, sky, catalog)

	tun := tuner.NewDetectorTuner(tuner.Config{
		TotalChannels: cfg.Tuner.TotalChannels,
		MhzPerChannel: cfg.Tuner.MhzPerChannel,
		Rounder:       tuner.NoRound{},
	})

	history := obshistory.New(db)
	quarantine := resilience.NewQuarantineManager()

	strategy := activitystrategy.New(
		activitystrategy.Config{
			TargetsPerActivity:   cfg.Scheduler.TargetsPerActivity,
			DetectorsPerActivity: cfg.Scheduler.DetectorsPerActivity,
			DataProductsRoot:     cfg.Scheduler.DataProductsRoot,
		},
		sched,
		&catalogTargetSource{db: db},
		quarantine,
		detectorNames(site.Detectors.GetProxyList()),
	)

	healthChecker := health.New(db, site)
	anomalyDetector := anomaly.New(anomaly.DefaultConfig())

	d := &Daemon{
		Config:     cfg,
		DB:         db,
		Site:       site,
		Scheduler:  sched,
		Tuner:      tun,
		Strategy:   strategy,
		History:    history,
		Health:     healthChecker,
		Quarantine: quarantine,
		Anomaly:    anomalyDetector,
	}

	sub := &fabricSubscriber{daemon: d}
	site.Telescopes.Subscribe(sub)
	site.IFChains.Subscribe(sub)
	site.Testgens.Subscribe(sub)
	site.Detectors.Subscribe(sub)

	d.Server = api.NewServer(healthChecker, sched, d, d)
	if cfg.Telemetry.MetricsEnabled {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// loadTopology reads and parses the expected-topology file at path. A
// missing file yields an empty topology rather than an error — a freshly
// installed site has no components attached yet and builds its topology up
// as hardware registers (operators populate the file before go-live).
func loadTopology(path string) (*domain.ExpectedTopology, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.ExpectedTopology{}, nil
		}
		return nil, fmt.Errorf("daemon: open topology %s: %w", path, err)
	}
	defer f.Close()

	topo, err := topology.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("daemon: parse topology %s: %w", path, err)
	}
	return topo, nil
}

func detectorNames(proxies []domain.Proxy) []string {
	out := make([]string, len(proxies))
	for i, p := range proxies {
		out[i] = p.ProxyName()
	}
	return out
}

// Serve starts the scheduling loop and HTTP status server, and blocks until
// ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.runScheduleLoop(ctx)

	httpServer := &http.Server{
		Addr:         d.Config.API.ListenAddr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Printf("[daemon] site %q serving on %s", d.Config.Site.Name, d.Config.API.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("daemon: serve: %w", err)
	}
	return nil
}

// Close releases every resource the daemon holds. Safe to call after Serve
// has returned, or instead of calling Serve at all.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// catalogTargetSource adapts sqlite.DB.ListTargetCat to
// activitystrategy.TargetSource. Catalog ingestion itself (new rows
// appearing in target_cat) is an external collaborator; this type only
// re-reads whatever is currently there.
type catalogTargetSource struct {
	db *sqlite.DB
}

func (c *catalogTargetSource) CandidateTargets() []*domain.Target {
	targets, err := c.db.ListTargetCat()
	if err != nil {
		log.Printf("[daemon] list target catalog: %v", err)
		return nil
	}
	return targets
}
