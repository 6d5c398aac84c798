package fabric

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sonata-sse/sse-core/internal/domain"
)

type mockProxy struct {
	name            string
	version         string
	shutdownCalls   int
	mu              sync.Mutex
}

func (p *mockProxy) ProxyName() string { return p.name }

func (p *mockProxy) RequestIntrinsics(ctx context.Context) (domain.Intrinsics, error) {
	return domain.Intrinsics{Name: p.name, InterfaceVersion: p.version}, nil
}

func (p *mockProxy) RequestStatus(ctx context.Context) (domain.Status, error) {
	return domain.Status{Healthy: true}, nil
}

func (p *mockProxy) SendCommand(ctx context.Context, cmd domain.CommandArgs) error { return nil }

func (p *mockProxy) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownCalls++
	return nil
}

func (p *mockProxy) State() domain.ComponentProxyState {
	return domain.ComponentProxyState{Name: p.name}
}

type recordingSubscriber struct {
	mu          sync.Mutex
	registered  []string
	unregistered []string
}

func (s *recordingSubscriber) OnRegister(p domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, p.ProxyName())
}
func (s *recordingSubscriber) OnUnregister(p domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregistered = append(s.unregistered, p.ProxyName())
}
func (s *recordingSubscriber) OnStatusChanged(p domain.Proxy, st domain.Status)       {}
func (s *recordingSubscriber) OnIntrinsicsReceived(p domain.Proxy, in domain.Intrinsics) {}

func TestRegisterProxy_VersionMismatchRejected(t *testing.T) {
	m := NewComponentManager[*mockProxy](DefaultConfig(domain.ComponentDetector, "2.0"))
	sub := &recordingSubscriber{}
	m.Subscribe(sub)

	p := &mockProxy{name: "dx0", version: "1.0"}
	err := m.RegisterProxy(context.Background(), p)
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if p.shutdownCalls != 1 {
		t.Errorf("expected shutdown to be called once, got %d", p.shutdownCalls)
	}
	if m.Size() != 0 {
		t.Errorf("manager size = %d, want 0", m.Size())
	}
	if len(sub.registered) != 0 {
		t.Errorf("expected no OnRegister notification, got %v", sub.registered)
	}
}

func TestRegisterProxy_Success(t *testing.T) {
	m := NewComponentManager[*mockProxy](DefaultConfig(domain.ComponentDetector, "2.0"))
	sub := &recordingSubscriber{}
	m.Subscribe(sub)

	p := &mockProxy{name: "dx0", version: "2.0"}
	if err := m.RegisterProxy(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Size() != 1 {
		t.Errorf("manager size = %d, want 1", m.Size())
	}
	if len(sub.registered) != 1 || sub.registered[0] != "dx0" {
		t.Errorf("expected OnRegister(dx0), got %v", sub.registered)
	}
}

func TestRegisterProxy_DuplicateNameRejectPolicy(t *testing.T) {
	cfg := DefaultConfig(domain.ComponentDetector, "2.0")
	cfg.DuplicateNamePolicy = domain.RejectNewProxyWithDuplicateName
	m := NewComponentManager[*mockProxy](cfg)

	first := &mockProxy{name: "dx0", version: "2.0"}
	second := &mockProxy{name: "dx0", version: "2.0"}

	if err := m.RegisterProxy(context.Background(), first); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := m.RegisterProxy(context.Background(), second)
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if second.shutdownCalls != 1 {
		t.Errorf("expected incoming proxy shutdown, got %d calls", second.shutdownCalls)
	}
	if m.Size() != 1 {
		t.Errorf("manager size = %d, want 1", m.Size())
	}
}

func TestRegisterProxy_DuplicateNameDiscardOldPolicy(t *testing.T) {
	cfg := DefaultConfig(domain.ComponentDetector, "2.0")
	cfg.DuplicateNamePolicy = domain.DiscardOldProxyWithDuplicateName
	m := NewComponentManager[*mockProxy](cfg)

	first := &mockProxy{name: "dx0", version: "2.0"}
	second := &mockProxy{name: "dx0", version: "2.0"}

	if err := m.RegisterProxy(context.Background(), first); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.RegisterProxy(context.Background(), second); err != nil {
		t.Fatalf("second register: %v", err)
	}
	if first.shutdownCalls != 1 {
		t.Errorf("expected old proxy shutdown, got %d calls", first.shutdownCalls)
	}
	if m.Size() != 1 {
		t.Errorf("manager size = %d, want 1 (single name)", m.Size())
	}
}

func TestAllocateProxyList_AtomicFailure(t *testing.T) {
	m := NewComponentManager[*mockProxy](DefaultConfig(domain.ComponentDetector, "2.0"))
	ctx := context.Background()
	_ = m.RegisterProxy(ctx, &mockProxy{name: "dx0", version: "2.0"})

	_, err := m.AllocateProxyList([]string{"dx0", "dx1"})
	if !errors.Is(err, domain.ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}

	// dx0 must not have been left allocated by the failed bulk call.
	allocated, err := m.AllocateProxyList([]string{"dx0"})
	if err != nil {
		t.Fatalf("unexpected error re-allocating dx0: %v", err)
	}
	if len(allocated) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocated))
	}
}

func TestAllocateProxyList_RejectsDoubleAllocation(t *testing.T) {
	m := NewComponentManager[*mockProxy](DefaultConfig(domain.ComponentDetector, "2.0"))
	ctx := context.Background()
	_ = m.RegisterProxy(ctx, &mockProxy{name: "dx0", version: "2.0"})

	if _, err := m.AllocateProxyList([]string{"dx0"}); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := m.AllocateProxyList([]string{"dx0"}); !errors.Is(err, domain.ErrProxyAlreadyAllocated) {
		t.Fatalf("expected ErrProxyAlreadyAllocated, got %v", err)
	}

	m.ReleaseProxyList([]string{"dx0"})
	if _, err := m.AllocateProxyList([]string{"dx0"}); err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
}

func TestUnregisterProxy_NotifiesAndRemoves(t *testing.T) {
	m := NewComponentManager[*mockProxy](DefaultConfig(domain.ComponentDetector, "2.0"))
	sub := &recordingSubscriber{}
	m.Subscribe(sub)
	ctx := context.Background()
	_ = m.RegisterProxy(ctx, &mockProxy{name: "dx0", version: "2.0"})

	m.UnregisterProxy("dx0")
	if m.Size() != 0 {
		t.Errorf("manager size = %d, want 0", m.Size())
	}
	if len(sub.unregistered) != 1 || sub.unregistered[0] != "dx0" {
		t.Errorf("expected OnUnregister(dx0), got %v", sub.unregistered)
	}
}
