package hcloud

import (
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"cloudboot/pkg/cloud"
)

// stateFromStatus maps hcloud server statuses onto backend-neutral
// lifecycle states. Deleting is the only API status that is a terminal
// failure for a launch; everything else either is the target or keeps
// the waiter polling.
func stateFromStatus(status hcloud.ServerStatus) cloud.State {
	switch status {
	case hcloud.ServerStatusInitializing:
		return cloud.StateInitializing
	case hcloud.ServerStatusStarting:
		return cloud.StateStarting
	case hcloud.ServerStatusRunning:
		return cloud.StateRunning
	case hcloud.ServerStatusStopping:
		return cloud.StateStopping
	case hcloud.ServerStatusOff:
		return cloud.StateOff
	case hcloud.ServerStatusDeleting:
		return cloud.StateDeleting
	case hcloud.ServerStatusMigrating:
		return cloud.StateMigrating
	case hcloud.ServerStatusRebuilding:
		return cloud.StateRebuilding
	default:
		return cloud.StateUnknown
	}
}

// interfaceFromServer extracts the addresses of the server's primary
// interface: the public IPv4 plus the first private network IP when a
// network is attached.
func interfaceFromServer(server *hcloud.Server) cloud.NetworkInterface {
	var nic cloud.NetworkInterface

	if !server.PublicNet.IPv4.IsUnspecified() {
		nic.PublicAddress = server.PublicNet.IPv4.IP.String()
	}
	if len(server.PrivateNet) > 0 {
		first := server.PrivateNet[0]
		if first.IP != nil {
			nic.PrivateAddress = first.IP.String()
		}
		if first.Network != nil {
			nic.NetworkID = strconv.FormatInt(first.Network.ID, 10)
		}
	}

	return nic
}
