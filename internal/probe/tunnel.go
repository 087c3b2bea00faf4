package probe

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

const gatewayDialTimeout = 10 * time.Second

// probe opens a short-lived forward through the gateway and probes the
// target via a loopback listener. The gateway connection, the listener
// and any forwarded streams live for this one call only and are torn
// down on every exit path. Setup failures are reported as unreachable,
// never as aborts.
func (g *Gateway) probe(ctx context.Context, targetHost string, targetPort int, bannerTimeout time.Duration) Outcome {
	client, err := ssh.Dial("tcp", g.Addr(), g.ClientConfig())
	if err != nil {
		return unreachable(err)
	}
	defer client.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return unreachable(err)
	}
	defer ln.Close()

	go forwardOne(ln, client, net.JoinHostPort(targetHost, strconv.Itoa(targetPort)))

	return probeAddr(ctx, ln.Addr().String(), bannerTimeout)
}

// forwardOne bridges the single probe connection to the target through
// the gateway. It returns as soon as either side closes; closing the
// gateway client unblocks it on every path.
func forwardOne(ln net.Listener, client *ssh.Client, target string) {
	local, err := ln.Accept()
	if err != nil {
		return
	}
	defer local.Close()

	remote, err := client.Dial("tcp", target)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	<-done
}

// Addr returns the gateway's dial address in host:port form.
func (g *Gateway) Addr() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

// ClientConfig builds the SSH client configuration for the gateway
// connection. Keys that cannot be read or parsed are skipped.
func (g *Gateway) ClientConfig() *ssh.ClientConfig {
	var signers []ssh.Signer
	for _, path := range g.Keys {
		pem, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}

	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	return &ssh.ClientConfig{
		User:            g.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // gateway hosts are user-supplied, matching ssh -o StrictHostKeyChecking=no
		Timeout:         gatewayDialTimeout,
	}
}
