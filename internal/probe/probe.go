// Package probe judges whether an SSH endpoint is accepting
// connections, either directly or through an intermediate gateway
// host. A probe is a single attempt; retrying is the caller's job.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	dialTimeout          = 10 * time.Second
	defaultBannerTimeout = 5 * time.Second
)

// Outcome is the judgement of one connectivity attempt. Err records
// the cause of an unreachable judgement for logging; causes are never
// acted on individually, only the caller's deadline ends the retrying.
type Outcome struct {
	Reachable bool
	Err       error
}

func unreachable(err error) Outcome {
	return Outcome{Err: err}
}

// A Prober makes single connection attempts against one endpoint.
type Prober interface {
	Probe(ctx context.Context) Outcome
}

// Endpoint probes a TCP endpoint, through a forwarded tunnel when
// Gateway is set and directly otherwise.
type Endpoint struct {
	Host    string
	Port    int
	Gateway *Gateway

	// BannerTimeout is how long the peer gets to send its first bytes
	// after the connection is established. Zero means the 5s default.
	BannerTimeout time.Duration
}

// Probe attempts one connection and reports whether the peer announced
// itself. Reachable requires both a completed connect and at least one
// byte from the peer before the banner deadline: a listener that stays
// silent, or closes without sending anything, is not a usable SSH
// service yet.
func (e *Endpoint) Probe(ctx context.Context) Outcome {
	if e.Gateway != nil {
		return e.Gateway.probe(ctx, e.Host, e.Port, e.bannerTimeout())
	}
	return probeAddr(ctx, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.bannerTimeout())
}

func (e *Endpoint) bannerTimeout() time.Duration {
	if e.BannerTimeout > 0 {
		return e.BannerTimeout
	}
	return defaultBannerTimeout
}

func probeAddr(ctx context.Context, addr string, bannerTimeout time.Duration) Outcome {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return unreachable(err)
	}
	defer conn.Close()

	return awaitBanner(conn, bannerTimeout)
}

// awaitBanner waits for the peer's first bytes. An empty read or a
// read error within the deadline both count as unreachable.
func awaitBanner(conn net.Conn, bannerTimeout time.Duration) Outcome {
	if err := conn.SetReadDeadline(time.Now().Add(bannerTimeout)); err != nil {
		return unreachable(err)
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if n > 0 {
		return Outcome{Reachable: true}
	}
	if err == nil {
		err = fmt.Errorf("peer sent no data")
	}
	return unreachable(err)
}
