// Package fakes provides an in-memory cloud.Backend for tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"cloudboot/pkg/cloud"
)

// FakeBackend simulates a provisioning backend. States holds the
// sequence of lifecycle states returned by successive GetInstanceState
// calls; once exhausted, the last entry repeats.
type FakeBackend struct {
	mu sync.Mutex

	Instance    cloud.Instance
	CreateErr   error
	States      []cloud.State
	Attachments []cloud.NetworkAttachment
	Interfaces  map[string]cloud.NetworkInterface

	CreatedSpecs    []cloud.InstanceSpec
	StateCalls      int
	AttachmentCalls int
	InterfaceCalls  int
}

// NewFakeBackend returns a backend with a single instance that reports
// the given state sequence and resolves to the given addresses.
func NewFakeBackend(id string, states ...cloud.State) *FakeBackend {
	return &FakeBackend{
		Instance: cloud.Instance{ID: id, DisplayName: "fake-" + id, State: cloud.StateInitializing},
		States:   states,
		Attachments: []cloud.NetworkAttachment{
			{ID: id},
		},
		Interfaces: map[string]cloud.NetworkInterface{
			id: {PrivateAddress: "10.0.0.5", PublicAddress: "203.0.113.7", NetworkID: "net-1"},
		},
	}
}

func (f *FakeBackend) CreateInstance(_ context.Context, spec cloud.InstanceSpec) (cloud.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return cloud.Instance{}, f.CreateErr
	}
	f.CreatedSpecs = append(f.CreatedSpecs, spec)
	inst := f.Instance
	if spec.Name != "" {
		inst.DisplayName = spec.Name
	}
	f.Instance = inst
	return inst, nil
}

func (f *FakeBackend) GetInstanceState(_ context.Context, id string) (cloud.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.Instance.ID {
		return cloud.StateGone, nil
	}
	if len(f.States) == 0 {
		return cloud.StateUnknown, fmt.Errorf("no states scripted")
	}
	i := f.StateCalls
	if i >= len(f.States) {
		i = len(f.States) - 1
	}
	f.StateCalls++
	return f.States[i], nil
}

func (f *FakeBackend) ListNetworkAttachments(_ context.Context, id string) ([]cloud.NetworkAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AttachmentCalls++
	if id != f.Instance.ID {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	return f.Attachments, nil
}

func (f *FakeBackend) GetNetworkInterface(_ context.Context, attachmentID string) (cloud.NetworkInterface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InterfaceCalls++
	nic, ok := f.Interfaces[attachmentID]
	if !ok {
		return cloud.NetworkInterface{}, fmt.Errorf("network interface not found: %s", attachmentID)
	}
	return nic, nil
}
