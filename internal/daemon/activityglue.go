package daemon

import (
	"context"
	"fmt"

	"github.com/sonata-sse/sse-core/internal/activity"
	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/fabric"
	"github.com/sonata-sse/sse-core/internal/infra/resilience"
	"github.com/sonata-sse/sse-core/internal/infra/tuner"
)

// componentStarter implements activity.ComponentStarter over a live Site: it
// sends "start" to every currently registered proxy an activity's Ops bits
// name, and exclusively allocates the named detectors before starting them.
type componentStarter struct {
	site *fabric.Site
}

func (c *componentStarter) StartComponents(ctx context.Context, activityID int64, p activity.Params) (int, error) {
	total := 0

	if p.Ops.Has(domain.UseTscope) {
		n, err := startAll(ctx, c.site.Telescopes, activityID)
		if err != nil {
			return 0, fmt.Errorf("daemon: start telescopes: %w", err)
		}
		total += n
	}
	if p.Ops.Has(domain.UseIfc) {
		n, err := startAll(ctx, c.site.IFChains, activityID)
		if err != nil {
			return 0, fmt.Errorf("daemon: start if chains: %w", err)
		}
		total += n
	}
	if p.Ops.Has(domain.UseTestgen) {
		n, err := startAll(ctx, c.site.Testgens, activityID)
		if err != nil {
			return 0, fmt.Errorf("daemon: start test generators: %w", err)
		}
		total += n
	}
	if p.Ops.Has(domain.UseDetector) {
		proxies, err := c.site.Detectors.AllocateProxyList(p.DetectorNames)
		if err != nil {
			return 0, fmt.Errorf("daemon: allocate detectors: %w", err)
		}
		for _, proxy := range proxies {
			if err := proxy.SendCommand(ctx, startCmd(activityID)); err != nil {
				return 0, fmt.Errorf("daemon: start detector %s: %w", proxy.ProxyName(), err)
			}
		}
		total += len(proxies)
	}
	return total, nil
}

func startAll(ctx context.Context, m *fabric.ComponentManager[domain.Proxy], activityID int64) (int, error) {
	proxies := m.GetProxyList()
	for _, proxy := range proxies {
		if err := proxy.SendCommand(ctx, startCmd(activityID)); err != nil {
			return 0, fmt.Errorf("%s: %w", proxy.ProxyName(), err)
		}
	}
	return len(proxies), nil
}

func startCmd(activityID int64) domain.CommandArgs {
	return domain.CommandArgs{Name: "start", Args: map[string]any{"activity_id": activityID}}
}

// detuner packs detectors onto a bound frequency range and sends a "tune"
// command to each one the DetectorTuner could place. Detectors it could not
// place are released back to FREE, and a send failure quarantines the
// detector rather than retrying inline — the next ActivityStrategy pass
// will simply exclude it.
//
// An Orchestrator's activity.Detuner is bound to one activity's chosen
// range via forActivity, since activity.Detuner's signature carries no
// frequency argument of its own.
type detuner struct {
	site         *fabric.Site
	tune         *tuner.DetectorTuner
	quarantine   *resilience.QuarantineManager
	fallback     domain.ObservationRange
	maxSpreadMhz float64
}

// forActivity returns an activity.Detuner bound to rng — the fallback
// configured range when rng carries no width, as a followup activity names
// its own detectors rather than going through target selection.
func (d *detuner) forActivity(rng domain.Band) activity.Detuner {
	return &boundDetuner{parent: d, rng: rng}
}

type boundDetuner struct {
	parent *detuner
	rng    domain.Band
}

func (b *boundDetuner) TuneDetectors(ctx context.Context, activityID int64, detectorNames []string) (int, error) {
	return b.parent.tuneRange(ctx, activityID, detectorNames, b.rng)
}

func (d *detuner) tuneRange(ctx context.Context, activityID int64, detectorNames []string, rng domain.Band) (int, error) {
	usable := d.fallback
	if rng.Width() > 0 {
		usable = domain.NewObservationRange(rng)
	}

	assignments, err := d.tune.TuneObsRange(detectorNames, usable, d.maxSpreadMhz)
	if err != nil {
		return 0, fmt.Errorf("daemon: tune: %w", err)
	}

	byName := make(map[string]domain.Proxy, len(detectorNames))
	for _, proxy := range d.site.Detectors.GetProxyList() {
		byName[proxy.ProxyName()] = proxy
	}

	var unused []string
	expected := 0
	for _, a := range assignments {
		proxy, ok := byName[a.DxName]
		if !ok || !a.Used {
			unused = append(unused, a.DxName)
			continue
		}
		err := proxy.SendCommand(ctx, domain.CommandArgs{
			Name: "tune",
			Args: map[string]any{
				"activity_id":     activityID,
				"channel":         a.Channel,
				"center_freq_mhz": a.CenterFreqMhz,
			},
		})
		if err != nil {
			d.quarantine.RecordFailure(a.DxName)
			unused = append(unused, a.DxName)
			continue
		}
		expected++
	}
	if len(unused) > 0 {
		d.site.Detectors.ReleaseProxyList(unused)
	}
	return expected, nil
}
