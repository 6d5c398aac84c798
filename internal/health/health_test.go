package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
	"github.com/sonata-sse/sse-core/internal/infra/fabric"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

type fakeProxy struct {
	name string
}

func (p *fakeProxy) ProxyName() string { return p.name }
func (p *fakeProxy) RequestIntrinsics(ctx context.Context) (domain.Intrinsics, error) {
	return domain.Intrinsics{InterfaceVersion: "v1"}, nil
}
func (p *fakeProxy) RequestStatus(ctx context.Context) (domain.Status, error) {
	return domain.Status{}, nil
}
func (p *fakeProxy) SendCommand(ctx context.Context, args domain.CommandArgs) error { return nil }
func (p *fakeProxy) Shutdown(ctx context.Context) error                            { return nil }
func (p *fakeProxy) State() domain.ComponentProxyState                             { return domain.ComponentProxyState{} }

func newTestSite(t *testing.T) *fabric.Site {
	t.Helper()
	cfg := fabric.SiteConfig{
		TelescopeInterfaceVersion: "v1",
		IFChainInterfaceVersion:   "v1",
		TestgenInterfaceVersion:   "v1",
		DetectorInterfaceVersion:  "v1",
	}
	return fabric.NewSite(cfg, &domain.ExpectedTopology{}, nil)
}

func TestCheckReportsUnhealthyWithNoComponents(t *testing.T) {
	site := newTestSite(t)
	c := New(fakePinger{}, site)
	status := c.Check()
	if status.Healthy() {
		t.Fatal("expected unhealthy with no registered telescope/IFChain")
	}
	if !status.DBReachable {
		t.Fatal("expected DB reachable")
	}
}

func TestCheckReportsHealthyOnceCoreComponentsRegistered(t *testing.T) {
	site := newTestSite(t)
	ctx := context.Background()
	if err := site.Telescopes.RegisterProxy(ctx, &fakeProxy{name: "tscope1"}); err != nil {
		t.Fatalf("register telescope: %v", err)
	}
	if err := site.IFChains.RegisterProxy(ctx, &fakeProxy{name: "ifc1"}); err != nil {
		t.Fatalf("register ifchain: %v", err)
	}

	fixed := time.Unix(1_700_000_000, 0)
	c := NewWithClock(fakePinger{}, site, func() time.Time { return fixed })
	status := c.Check()
	if !status.Healthy() {
		t.Fatal("expected healthy once telescope and IF chain are registered")
	}
	if status.CheckedAt != fixed {
		t.Fatalf("expected injected clock timestamp, got %v", status.CheckedAt)
	}
}

func TestCheckReportsDBUnreachable(t *testing.T) {
	site := newTestSite(t)
	c := New(fakePinger{err: errors.New("disk full")}, site)
	status := c.Check()
	if status.DBReachable {
		t.Fatal("expected DB unreachable")
	}
	if status.Healthy() {
		t.Fatal("expected unhealthy when DB is unreachable")
	}
}
