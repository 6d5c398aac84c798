// Package fabric implements the thread-safe component proxy registry:
// interface-version policing, duplicate-name resolution, and
// publish/subscribe notification to the orchestrator. The manager does not
// cache proxy status; status changes are only fanned out to subscribers.
//
// ComponentManager is parameterized over the Proxy capability set
// (requestIntrinsics, requestStatus, sendCommand, shutdown) rather than a
// single base class, so one generic implementation serves every remote
// hardware component type.
package fabric

import (
	"container/list"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sonata-sse/sse-core/internal/domain"
)

type registryEntry[P domain.Proxy] struct {
	proxy   P
	state   domain.AllocationState
	element *list.Element // position in registration order
}

// Config configures a ComponentManager.
type Config struct {
	ComponentType      domain.ComponentType
	ExpectedInterfaceVersion string
	DuplicateNamePolicy domain.DuplicateNamePolicy
}

// DefaultConfig returns RejectNewProxyWithDuplicateName for componentType.
func DefaultConfig(componentType domain.ComponentType, expectedVersion string) Config {
	return Config{
		ComponentType:            componentType,
		ExpectedInterfaceVersion: expectedVersion,
		DuplicateNamePolicy:      domain.RejectNewProxyWithDuplicateName,
	}
}

// ComponentManager is a type-parameterized registry of proxies sharing one
// capability set. It handles register/unregister, duplicate-name policy,
// the intrinsics version handshake, and publish/subscribe fan-out.
type ComponentManager[P domain.Proxy] struct {
	cfg Config

	mu          sync.RWMutex
	entries     map[string]*registryEntry[P]
	order       *list.List // registration order; used by AllocateProxyList
	subscribers []domain.Subscriber
}

// NewComponentManager constructs an empty manager.
func NewComponentManager[P domain.Proxy](cfg Config) *ComponentManager[P] {
	return &ComponentManager[P]{
		cfg:     cfg,
		entries: make(map[string]*registryEntry[P]),
		order:   list.New(),
	}
}

// Subscribe adds sub to the fan-out list. Not safe to call concurrently
// with notifications expecting strict ordering, but safe against
// registration traffic.
func (m *ComponentManager[P]) Subscribe(sub domain.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, sub)
}

// RegisterProxy is called when the remote socket is fully up. It requests
// intrinsics, version-checks the report, and resolves any duplicate name
// before admitting the proxy to the registry.
//
// On version mismatch the manager logs, sends shutdown, and returns
// ErrVersionMismatch without registering the proxy.
func (m *ComponentManager[P]) RegisterProxy(ctx context.Context, p P) error {
	intrinsics, err := p.RequestIntrinsics(ctx)
	if err != nil {
		return fmt.Errorf("fabric: request intrinsics from %s: %w", p.ProxyName(), err)
	}

	if intrinsics.InterfaceVersion != m.cfg.ExpectedInterfaceVersion {
		log.Printf("[fabric] %s reported interface version %q, expected %q; rejecting",
			p.ProxyName(), intrinsics.InterfaceVersion, m.cfg.ExpectedInterfaceVersion)
		_ = p.Shutdown(ctx)
		return fmt.Errorf("fabric: %s: %w", p.ProxyName(), domain.ErrVersionMismatch)
	}

	name := p.ProxyName()

	m.mu.Lock()
	if existing, ok := m.entries[name]; ok {
		switch m.cfg.DuplicateNamePolicy {
		case domain.DiscardOldProxyWithDuplicateName:
			m.order.Remove(existing.element)
			delete(m.entries, name)
			m.mu.Unlock()
			_ = existing.proxy.Shutdown(ctx)
			m.mu.Lock()
		default: // RejectNewProxyWithDuplicateName
			m.mu.Unlock()
			log.Printf("[fabric] rejecting duplicate-name registration for %q", name)
			_ = p.Shutdown(ctx)
			return fmt.Errorf("fabric: %s: %w", name, domain.ErrDuplicateName)
		}
	}

	entry := &registryEntry[P]{proxy: p, state: domain.ProxyFree}
	entry.element = m.order.PushBack(name)
	m.entries[name] = entry
	subs := append([]domain.Subscriber{}, m.subscribers...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.OnRegister(p)
		sub.OnIntrinsicsReceived(p, intrinsics)
	}
	return nil
}

// UnregisterProxy is called on socket close. It removes the proxy from the
// registry and notifies subscribers off-lock.
func (m *ComponentManager[P]) UnregisterProxy(name string) {
	m.mu.Lock()
	entry, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.order.Remove(entry.element)
	delete(m.entries, name)
	subs := append([]domain.Subscriber{}, m.subscribers...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.OnUnregister(entry.proxy)
	}
}

// GetProxyList returns a snapshot of every registered proxy in registration
// order.
func (m *ComponentManager[P]) GetProxyList() []P {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]P, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		name := e.Value.(string)
		out = append(out, m.entries[name].proxy)
	}
	return out
}

// AllocateProxyList exclusively allocates every named proxy, atomically:
// either all succeed or none are allocated. Returns ErrComponentNotFound
// for an unregistered name, ErrProxyAlreadyAllocated if any is already
// held.
func (m *ComponentManager[P]) AllocateProxyList(names []string) ([]P, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		entry, ok := m.entries[name]
		if !ok {
			return nil, fmt.Errorf("fabric: %s: %w", name, domain.ErrComponentNotFound)
		}
		if entry.state == domain.ProxyAllocated {
			return nil, fmt.Errorf("fabric: %s: %w", name, domain.ErrProxyAlreadyAllocated)
		}
	}

	out := make([]P, 0, len(names))
	for _, name := range names {
		entry := m.entries[name]
		entry.state = domain.ProxyAllocated
		out = append(out, entry.proxy)
	}
	return out, nil
}

// ReleaseProxyList returns every named proxy to FREE. Unknown names are
// silently ignored, matching a best-effort teardown pass that may race
// proxy disconnects.
func (m *ComponentManager[P]) ReleaseProxyList(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		if entry, ok := m.entries[name]; ok {
			entry.state = domain.ProxyFree
		}
	}
}

// NotifyStatusChanged fans status out to subscribers without blocking the
// proxy's own I/O thread.
func (m *ComponentManager[P]) NotifyStatusChanged(name string, status domain.Status) {
	m.mu.RLock()
	entry, ok := m.entries[name]
	if !ok {
		m.mu.RUnlock()
		return
	}
	subs := append([]domain.Subscriber{}, m.subscribers...)
	proxy := entry.proxy
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.OnStatusChanged(proxy, status)
	}
}

// Size returns the number of currently registered proxies.
func (m *ComponentManager[P]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
