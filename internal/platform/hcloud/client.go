// Package hcloud adapts the Hetzner Cloud API to the cloud.Backend
// contract. It resolves the symbolic parts of an instance spec (server
// type, image, location, network, SSH keys) against the API and maps
// hcloud server statuses onto the backend-neutral lifecycle states.
package hcloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"cloudboot/internal/util/retry"
	"cloudboot/pkg/cloud"
)

const (
	createTimeout     = 10 * time.Minute
	retryAttempts     = 5
	retryInitialDelay = time.Second
)

// Backend implements cloud.Backend against the Hetzner Cloud API.
type Backend struct {
	client *hcloud.Client
}

// New builds a Backend from an API token.
func New(token string) *Backend {
	return &Backend{
		client: hcloud.NewClient(
			hcloud.WithToken(token),
			hcloud.WithApplication("cloudboot", ""),
		),
	}
}

// CreateInstance creates a server and waits for the create action to
// finish. Invalid-parameter API errors are fatal; transient API errors
// are retried with backoff.
func (b *Backend) CreateInstance(ctx context.Context, spec cloud.InstanceSpec) (cloud.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	opts, err := b.buildCreateOpts(ctx, spec)
	if err != nil {
		return cloud.Instance{}, err
	}

	var result hcloud.ServerCreateResult
	err = retry.Do(ctx, func() error {
		res, _, err := b.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithAttempts(retryAttempts), retry.WithDelay(retryInitialDelay))
	if err != nil {
		return cloud.Instance{}, fmt.Errorf("failed to create server %s: %w", spec.Name, err)
	}

	if err := b.client.Action.WaitFor(ctx, result.Action); err != nil {
		return cloud.Instance{}, fmt.Errorf("failed to wait for server creation: %w", err)
	}

	return cloud.Instance{
		ID:          strconv.FormatInt(result.Server.ID, 10),
		DisplayName: result.Server.Name,
		State:       stateFromStatus(result.Server.Status),
	}, nil
}

// GetInstanceState fetches the current lifecycle state. A server the
// API no longer knows maps to StateGone, which waiters treat as a
// terminal failure.
func (b *Backend) GetInstanceState(ctx context.Context, id string) (cloud.State, error) {
	server, err := b.getServer(ctx, id)
	if err != nil {
		return cloud.StateUnknown, err
	}
	if server == nil {
		return cloud.StateGone, nil
	}
	return stateFromStatus(server.Status), nil
}

// ListNetworkAttachments reports the instance's network interfaces.
// Hetzner servers have exactly one primary interface, so the list has
// a single element whose ID doubles as the interface lookup key.
func (b *Backend) ListNetworkAttachments(ctx context.Context, id string) ([]cloud.NetworkAttachment, error) {
	server, err := b.getServer(ctx, id)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, fmt.Errorf("server not found: %s", id)
	}
	return []cloud.NetworkAttachment{{ID: id}}, nil
}

// GetNetworkInterface resolves an attachment to its addresses.
func (b *Backend) GetNetworkInterface(ctx context.Context, attachmentID string) (cloud.NetworkInterface, error) {
	server, err := b.getServer(ctx, attachmentID)
	if err != nil {
		return cloud.NetworkInterface{}, err
	}
	if server == nil {
		return cloud.NetworkInterface{}, fmt.Errorf("server not found: %s", attachmentID)
	}
	return interfaceFromServer(server), nil
}

func (b *Backend) getServer(ctx context.Context, id string) (*hcloud.Server, error) {
	serverID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid server id: %s", id)
	}
	server, _, err := b.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	return server, nil
}

// buildCreateOpts resolves symbolic spec fields against the API.
func (b *Backend) buildCreateOpts(ctx context.Context, spec cloud.InstanceSpec) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := b.client.ServerType.Get(ctx, spec.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", spec.ServerType)
	}

	image, _, err := b.client.Image.GetForArchitecture(ctx, spec.Image, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("image not found: %s", spec.Image)
	}

	location, _, err := b.client.Location.Get(ctx, spec.Location)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get location: %w", err)
	}
	if location == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("location not found: %s", spec.Location)
	}

	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: serverType,
		Image:      image,
		Location:   location,
		Labels:     spec.Labels,
		UserData:   spec.UserData,
	}

	for _, name := range spec.SSHKeys {
		key, _, err := b.client.SSHKey.Get(ctx, name)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get ssh key %s: %w", name, err)
		}
		if key == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("ssh key not found: %s", name)
		}
		opts.SSHKeys = append(opts.SSHKeys, key)
	}

	if spec.Network != "" {
		network, _, err := b.client.Network.Get(ctx, spec.Network)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get network: %w", err)
		}
		if network == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("network not found: %s", spec.Network)
		}
		opts.Networks = []*hcloud.Network{network}
	}

	return opts, nil
}
