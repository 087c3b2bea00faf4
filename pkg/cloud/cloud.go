// Package cloud defines the provisioning backend contract consumed by
// the launch orchestration. Implementations translate these calls to a
// concrete cloud API; the fakes subpackage provides an in-memory
// implementation for tests.
package cloud

import "context"

// State is the backend-reported lifecycle state of an instance.
type State string

const (
	StateInitializing State = "initializing"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateOff          State = "off"
	StateDeleting     State = "deleting"
	StateMigrating    State = "migrating"
	StateRebuilding   State = "rebuilding"
	// StateGone means the backend no longer knows the instance at all,
	// e.g. it was deleted while we were still waiting for it.
	StateGone    State = "gone"
	StateUnknown State = "unknown"
)

// TerminalFailure reports whether the state means the instance can
// never reach running. Waiters abort immediately on these instead of
// polling until their deadline.
func (s State) TerminalFailure() bool {
	return s == StateDeleting || s == StateGone
}

// InstanceSpec describes the instance to create.
type InstanceSpec struct {
	// Name is the display name. Hostname is the label the instance
	// announces itself with; backends that only support a single name
	// use Name and ignore Hostname.
	Name     string
	Hostname string

	Location   string
	Image      string
	ServerType string

	// Network is the name or ID of the private network to attach, empty
	// for public-only instances.
	Network string

	Labels   map[string]string
	SSHKeys  []string
	UserData string
}

// Instance is the backend's view of a created instance.
type Instance struct {
	ID          string
	DisplayName string
	State       State
}

// NetworkAttachment links an instance to one of its network interfaces.
type NetworkAttachment struct {
	ID string
}

// NetworkInterface carries the addresses of one attachment.
type NetworkInterface struct {
	PrivateAddress string
	PublicAddress  string
	NetworkID      string
}

// Backend is the provisioning API surface the orchestrator needs.
type Backend interface {
	CreateInstance(ctx context.Context, spec InstanceSpec) (Instance, error)
	GetInstanceState(ctx context.Context, id string) (State, error)
	ListNetworkAttachments(ctx context.Context, id string) ([]NetworkAttachment, error)
	GetNetworkInterface(ctx context.Context, attachmentID string) (NetworkInterface, error)
}
