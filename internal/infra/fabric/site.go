package fabric

import (
	"database/sql"

	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/topology"
)

// Site aggregates everything scoped to one physical observing site: one
// ComponentManager per remote component category, the parsed expected
// topology, the beam router built from it, and the database handle shared
// by the scheduler and activity orchestrator.
//
// Detector interface version is intentionally a separate config value from
// the others — the detector fleet is upgraded independently of the
// telescope/IF-chain/testgen control software.
type Site struct {
	Telescopes *ComponentManager[domain.Proxy]
	IFChains   *ComponentManager[domain.Proxy]
	Testgens   *ComponentManager[domain.Proxy]
	Detectors  *ComponentManager[domain.Proxy]

	Topology *domain.ExpectedTopology
	Router   *topology.BeamRouter

	DB *sql.DB
}

// SiteConfig carries the expected interface version for each component
// category plus the duplicate-name policy shared across all of them.
type SiteConfig struct {
	TelescopeInterfaceVersion string
	IFChainInterfaceVersion   string
	TestgenInterfaceVersion   string
	DetectorInterfaceVersion  string
	DuplicateNamePolicy       domain.DuplicateNamePolicy
}

// NewSite builds a Site with one manager per component category, wired to
// the supplied expected topology and database handle.
func NewSite(cfg SiteConfig, topo *domain.ExpectedTopology, db *sql.DB) *Site {
	mk := func(ct domain.ComponentType, version string) *ComponentManager[domain.Proxy] {
		c := DefaultConfig(ct, version)
		c.DuplicateNamePolicy = cfg.DuplicateNamePolicy
		return NewComponentManager[domain.Proxy](c)
	}

	return &Site{
		Telescopes: mk(domain.ComponentTelescope, cfg.TelescopeInterfaceVersion),
		IFChains:   mk(domain.ComponentIFChain, cfg.IFChainInterfaceVersion),
		Testgens:   mk(domain.ComponentTestgen, cfg.TestgenInterfaceVersion),
		Detectors:  mk(domain.ComponentDetector, cfg.DetectorInterfaceVersion),
		Topology:   topo,
		Router:     topology.NewBeamRouter(topo),
		DB:         db,
	}
}

// ManagerFor returns the manager responsible for ct, or nil if ct is not a
// remote-proxy category this Site tracks (e.g. Beam and Channelizer are
// topology-only node types with no proxy of their own).
func (s *Site) ManagerFor(ct domain.ComponentType) *ComponentManager[domain.Proxy] {
	switch ct {
	case domain.ComponentTelescope:
		return s.Telescopes
	case domain.ComponentIFChain:
		return s.IFChains
	case domain.ComponentTestgen:
		return s.Testgens
	case domain.ComponentDetector:
		return s.Detectors
	default:
		return nil
	}
}

// ReloadTopology replaces the Site's expected topology and rebuilds the
// beam router from it. Registered proxies are left untouched; callers
// reconcile attachment state separately.
func (s *Site) ReloadTopology(topo *domain.ExpectedTopology) {
	s.Topology = topo
	s.Router.Reload(topo)
}

// DetectorCount returns the number of currently registered detector
// proxies.
func (s *Site) DetectorCount() int {
	return s.Detectors.Size()
}
