// Package domain — component proxy identity and status types.
// Every remote hardware component (telescope, IF chain, test generator,
// detector, channelizer) is represented in-process by a ComponentProxy
// holding its identity, cached status, and lifecycle state.
package domain

import "time"

// ComponentType names a closed set of remote hardware component kinds,
// shared between the proxy fabric and the expected-topology parser.
type ComponentType string

const (
	ComponentSite        ComponentType = "Site"
	ComponentIFChain     ComponentType = "IFChain"
	ComponentBeam        ComponentType = "Beam"
	ComponentDetector    ComponentType = "Detector"
	ComponentTelescope   ComponentType = "Telescope"
	ComponentTestgen     ComponentType = "Testgen"
	ComponentChannelizer ComponentType = "Channelizer"
	ComponentArchiver    ComponentType = "Archiver"
)

// ProxyLifecycle tracks a ComponentProxy's connection state.
type ProxyLifecycle string

const (
	ProxyUnconnected ProxyLifecycle = "unconnected"
	ProxyConnected   ProxyLifecycle = "connected"
	ProxyRegistered  ProxyLifecycle = "registered"
	ProxyShutdown    ProxyLifecycle = "shutdown"
)

// Intrinsics is a component's static identity payload, exchanged once at
// registration time.
type Intrinsics struct {
	Name                     string
	InterfaceVersion         string
	Capabilities             []string
	ReceivedAt               time.Time
}

// Status is a component's dynamic state payload, refreshed by heartbeat.
type Status struct {
	Timestamp time.Time
	Healthy   bool
	Detail    map[string]string
}

// ComponentProxyState is the fabric-visible snapshot of one ComponentProxy:
// name, remote host, reported interface version, cached intrinsics/status,
// lifecycle, and the activity (if any) the proxy is attached to.
//
// Two registered proxies of the same ComponentType never share a Name —
// duplicate-name resolution happens at registration.
type ComponentProxyState struct {
	Name                     string
	ComponentType            ComponentType
	RemoteHost               string
	ReportedInterfaceVersion string
	CachedIntrinsics         Intrinsics
	CachedStatus             Status
	Lifecycle                ProxyLifecycle
	AttachedActivityId       int64 // 0 means unattached
	Verbose                  bool
}

// IsAttached reports whether the proxy is currently held by a running
// activity.
func (s ComponentProxyState) IsAttached() bool { return s.AttachedActivityId != 0 }

// AllocationState tracks whether a registered proxy is free for allocation
// or already held by an activity.
type AllocationState string

const (
	ProxyFree      AllocationState = "FREE"
	ProxyAllocated AllocationState = "ALLOCATED"
)

// DuplicateNamePolicy selects how a ComponentManager resolves a newly
// registering proxy whose name collides with an already-registered one.
type DuplicateNamePolicy int

const (
	// RejectNewProxyWithDuplicateName disconnects the incoming proxy,
	// leaving the previously registered proxy in place.
	RejectNewProxyWithDuplicateName DuplicateNamePolicy = iota
	// DiscardOldProxyWithDuplicateName disconnects every previously
	// registered proxy sharing the name and accepts the new one.
	DiscardOldProxyWithDuplicateName
)
