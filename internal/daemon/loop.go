package daemon

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sonata-sse/sse-core/internal/activity"
	"github.com/sonata-sse/sse-core/internal/api"
	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/metrics"
)

// noTargetRetryInterval bounds how long the schedule loop waits before
// asking ActivityStrategy again after a cycle that found nothing to
// observe, so an empty sky doesn't spin the loop.
const noTargetRetryInterval = 30 * time.Second

// runScheduleLoop repeatedly asks Strategy for the next activity and runs
// it to completion. Orchestrator.Start blocks until teardown, so this loop
// naturally runs one activity at a time — matching §5's single event-loop
// ownership of activity state.
func (d *Daemon) runScheduleLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params, err := d.Strategy.Next(time.Now(), false)
		if err != nil {
			if !errors.Is(err, domain.ErrNoTarget) {
				log.Printf("[daemon] schedule: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(noTargetRetryInterval):
			}
			continue
		}

		d.runOneActivity(ctx, params)
	}
}

func (d *Daemon) runOneActivity(ctx context.Context, params activity.Params) {
	id, err := d.History.NewActivityRow(params.Kind)
	if err != nil {
		log.Printf("[daemon] new activity row: %v", err)
		return
	}

	for _, tid := range params.TargetIds {
		d.Scheduler.MarkInUse(tid)
	}

	act := domain.NewActivity(id, params.Kind, params.Ops)
	act.PrimaryTargetId = params.PrimaryTargetId
	act.TargetIds = params.TargetIds
	act.DataProductsDir = params.DataProductsDir

	d.mu.Lock()
	d.current = act
	d.mu.Unlock()

	metrics.ActivitiesStarted.WithLabelValues(string(params.Kind)).Inc()

	starter := &componentStarter{site: d.Site}
	det := &detuner{site: d.Site, tune: d.Tuner, quarantine: d.Quarantine, fallback: d.Config.Scheduler.allowedRange(), maxSpreadMhz: d.Config.Tuner.MaxSpreadMhz}
	cb := &daemonCallbacks{daemon: d, params: params}

	orch := activity.New(act, starter, det.forActivity(params.TuningRange), d.History, cb, activity.DefaultTimeouts())
	if _, err := orch.Start(ctx, params); err != nil {
		log.Printf("[daemon] activity %d: start: %v", id, err)
	}

	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
}

// daemonCallbacks implements activity.Callbacks: it releases the targets
// and quarantine bookkeeping held for one activity exactly once, on
// whichever terminal outcome the orchestrator reaches.
type daemonCallbacks struct {
	daemon *Daemon
	params activity.Params
}

func (c *daemonCallbacks) ActivityComplete(activityID int64) {
	c.release()
	metrics.ActivitiesCompleted.Inc()
}

func (c *daemonCallbacks) ActivityFailed(activityID int64, reason string) {
	c.release()
	stage, _, _ := strings.Cut(reason, ":")
	metrics.ActivitiesFailed.WithLabelValues(stage).Inc()
}

func (c *daemonCallbacks) release() {
	for _, tid := range c.params.TargetIds {
		c.daemon.Scheduler.ReleaseTarget(tid)
	}
	c.daemon.Quarantine.AdvanceActivity()
}

// CurrentActivity implements api.ActivitySource.
func (d *Daemon) CurrentActivity() (api.ActivityView, bool) {
	d.mu.Lock()
	act := d.current
	d.mu.Unlock()
	if act == nil {
		return api.ActivityView{}, false
	}
	return api.ActivityView{
		ActivityId:      act.ActivityId,
		Kind:            act.Kind,
		State:           act.State(),
		PrimaryTargetId: act.PrimaryTargetId,
		Counters:        act.Counters(),
	}, true
}

// FabricSnapshot implements api.FabricSource.
func (d *Daemon) FabricSnapshot() api.FabricView {
	return api.FabricView{
		Telescopes: d.Site.Telescopes.Size(),
		IFChains:   d.Site.IFChains.Size(),
		Testgens:   d.Site.Testgens.Size(),
		Detectors:  d.Site.Detectors.Size(),
	}
}

// fabricSubscriber keeps the detector roster ActivityStrategy sees, the
// anomaly detector's status history, and the fabric Prometheus gauges in
// sync with live proxy registration traffic.
type fabricSubscriber struct {
	daemon *Daemon
}

func (s *fabricSubscriber) OnRegister(p domain.Proxy) {
	st := p.State()
	metrics.FabricRegisteredProxies.WithLabelValues(string(st.ComponentType)).Inc()
	if st.ComponentType == domain.ComponentDetector {
		s.daemon.Strategy.SetAvailableDetectors(detectorNames(s.daemon.Site.Detectors.GetProxyList()))
	}
}

func (s *fabricSubscriber) OnUnregister(p domain.Proxy) {
	st := p.State()
	metrics.FabricRegisteredProxies.WithLabelValues(string(st.ComponentType)).Dec()
	s.daemon.Anomaly.Forget(p.ProxyName())
	if st.ComponentType == domain.ComponentDetector {
		s.daemon.Strategy.SetAvailableDetectors(detectorNames(s.daemon.Site.Detectors.GetProxyList()))
	}
}

func (s *fabricSubscriber) OnStatusChanged(p domain.Proxy, status domain.Status) {
	verdict := s.daemon.Anomaly.Record(p.ProxyName(), status)
	if verdict.Flagged && p.State().ComponentType == domain.ComponentDetector {
		log.Printf("[daemon] %s flagged %s, quarantining", p.ProxyName(), verdict.Reason)
		s.daemon.Quarantine.RecordFailure(p.ProxyName())
	}
}

func (s *fabricSubscriber) OnIntrinsicsReceived(p domain.Proxy, in domain.Intrinsics) {}

var _ domain.Subscriber = (*fabricSubscriber)(nil)
