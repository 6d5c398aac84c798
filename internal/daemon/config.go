// Package daemon assembles every long-lived service the core runs as one
// process — component fabric, target scheduler, detector tuner, activity
// orchestration, persistence, and health/status reporting — from a single
// TOML config file, mirroring the teacher's own daemon.Config/daemon.Daemon
// split between static configuration and runtime wiring.
package daemon

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// SiteConfig names the local site and the interface version each component
// category must report at registration.
type SiteConfig struct {
	Name                      string `toml:"name"`
	TelescopeInterfaceVersion string `toml:"telescope_interface_version"`
	IFChainInterfaceVersion   string `toml:"ifchain_interface_version"`
	TestgenInterfaceVersion   string `toml:"testgen_interface_version"`
	DetectorInterfaceVersion  string `toml:"detector_interface_version"`
}

// DBConfig points at the SQLite data directory.
type DBConfig struct {
	DataDir string `toml:"data_dir"`
}

// SchedulerConfig bounds the TargetScheduler and, transitively, how many
// targets/detectors ActivityStrategy requests per activity.
type SchedulerConfig struct {
	TargetsPerActivity            int     `toml:"targets_per_activity"`
	DetectorsPerActivity          int     `toml:"detectors_per_activity"`
	RotationWindow                int     `toml:"rotation_window"`
	MinRemainingOnTargetSeconds   int     `toml:"min_remaining_on_target_seconds"`
	ReservedFollowupHeadroomSecs  int     `toml:"reserved_followup_headroom_seconds"`
	MinAcceptableRemainingBandMhz float64 `toml:"min_acceptable_remaining_band_mhz"`
	MinSeparationBeamsizes        float64 `toml:"min_separation_beamsizes"`
	AllowedLowMhz                 float64 `toml:"allowed_low_mhz"`
	AllowedHighMhz                float64 `toml:"allowed_high_mhz"`
	DecMinRad                     float64 `toml:"dec_min_rad"`
	DecMaxRad                     float64 `toml:"dec_max_rad"`
	DataProductsRoot              string  `toml:"data_products_root"`
}

// TunerConfig bounds the DetectorTuner's channel grid.
type TunerConfig struct {
	TotalChannels int     `toml:"total_channels"`
	MhzPerChannel float64 `toml:"mhz_per_channel"`
	MaxSpreadMhz  float64 `toml:"max_spread_mhz"`
}

// TopologyConfig points at the expected-topology description file (spec
// §6's Site->IFChain->Beam->Detector hierarchy grammar).
type TopologyConfig struct {
	File string `toml:"file"`
}

// APIConfig bounds the chi status server.
type APIConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// TelemetryConfig toggles the Prometheus /metrics surface.
type TelemetryConfig struct {
	MetricsEnabled bool `toml:"metrics_enabled"`
}

// SatCatConfig bounds the static catalog-tag priority and GEO-satellite
// exclusion annulus consumed by the scheduler's merit model.
type SatCatConfig struct {
	GeoSlotsRad         []float64 `toml:"geo_slots_rad"`
	AnnulusHalfWidthRad float64   `toml:"annulus_half_width_rad"`
}

// LoggingConfig bounds log verbosity. The core logs through the standard
// library `log` package (see DESIGN.md); this only gates a verbose flag.
type LoggingConfig struct {
	Verbose bool `toml:"verbose"`
}

// Config is the root of the daemon's TOML configuration file.
type Config struct {
	Site      SiteConfig      `toml:"site"`
	DB        DBConfig        `toml:"db"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Tuner     TunerConfig     `toml:"tuner"`
	Topology  TopologyConfig  `toml:"topology"`
	API       APIConfig       `toml:"api"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
	SatCat    SatCatConfig    `toml:"satcat"`
}

// DefaultConfig returns a complete, runnable configuration with a
// single-process development layout: data under ./data, API on :8090, and
// scheduler/tuner defaults matching their respective packages'
// DefaultConfig().
func DefaultConfig() Config {
	return Config{
		Site: SiteConfig{
			Name:                      "default",
			TelescopeInterfaceVersion: "1.0",
			IFChainInterfaceVersion:   "1.0",
			TestgenInterfaceVersion:   "1.0",
			DetectorInterfaceVersion:  "1.0",
		},
		DB: DBConfig{DataDir: "./data"},
		Scheduler: SchedulerConfig{
			TargetsPerActivity:            1,
			DetectorsPerActivity:          4,
			RotationWindow:                10,
			MinRemainingOnTargetSeconds:   600,
			ReservedFollowupHeadroomSecs:  300,
			MinAcceptableRemainingBandMhz: 1.0,
			MinSeparationBeamsizes:        1.0,
			AllowedLowMhz:                 1400,
			AllowedHighMhz:                1720,
			DecMinRad:                     -1.5708,
			DecMaxRad:                     1.5708,
			DataProductsRoot:              "./data/products",
		},
		Tuner: TunerConfig{
			TotalChannels: 1024,
			MhzPerChannel: 0.7,
			MaxSpreadMhz:  100,
		},
		Topology:  TopologyConfig{File: "./topology.txt"},
		API:       APIConfig{ListenAddr: ":8090"},
		Telemetry: TelemetryConfig{MetricsEnabled: true},
		Logging:   LoggingConfig{Verbose: false},
		SatCat:    SatCatConfig{AnnulusHalfWidthRad: 0.0175},
	}
}

// LoadConfig reads path as TOML over DefaultConfig(), so an omitted section
// falls back to its documented default rather than its Go zero value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemon: load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c SchedulerConfig) minRemainingOnTarget() time.Duration {
	return time.Duration(c.MinRemainingOnTargetSeconds) * time.Second
}

func (c SchedulerConfig) reservedFollowupHeadroom() time.Duration {
	return time.Duration(c.ReservedFollowupHeadroomSecs) * time.Second
}

func (c SchedulerConfig) allowedRange() domain.ObservationRange {
	return domain.NewObservationRange(domain.Band{LowMhz: c.AllowedLowMhz, HighMhz: c.AllowedHighMhz})
}
