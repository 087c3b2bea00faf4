package bootstrap

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"cloudboot/internal/probe"
)

// execRecorder captures the commands an SSH server was asked to run.
type execRecorder struct {
	mu       sync.Mutex
	commands []string
}

func (r *execRecorder) record(cmd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *execRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func hostSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(key)
	require.NoError(t, err)
	return signer
}

// sshServer runs a minimal SSH server that accepts one exec request
// per session, replies with output and the given exit status, and
// records the command.
func sshServer(t *testing.T, cfg *ssh.ServerConfig, output string, exitStatus uint32) (host string, port int, rec *execRecorder) {
	t.Helper()
	cfg.AddHostKey(hostSigner(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	rec = &execRecorder{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveExecConn(conn, cfg, output, exitStatus, rec)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, rec
}

func serveExecConn(conn net.Conn, cfg *ssh.ServerConfig, output string, exitStatus uint32, rec *execRecorder) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go serveExecSession(ch, chReqs, output, exitStatus, rec)
	}
}

func serveExecSession(ch ssh.Channel, reqs <-chan *ssh.Request, output string, exitStatus uint32, rec *execRecorder) {
	defer ch.Close()
	for req := range reqs {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		rec.record(payload.Command)
		_ = req.Reply(true, nil)
		_, _ = io.WriteString(ch, output)
		status := struct{ Status uint32 }{exitStatus}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
		return
	}
}

func passwordConfig(password string) *ssh.ServerConfig {
	return &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, given []byte) (*ssh.Permissions, error) {
			if string(given) == password {
				return nil, nil
			}
			return nil, os.ErrPermission
		},
	}
}

func TestSSHAgent_RunsBootstrapCommand(t *testing.T) {
	t.Parallel()
	host, port, rec := sshServer(t, passwordConfig("hunter2"), "Chef run complete\n", 0)

	var out bytes.Buffer
	agent := &SSHAgent{Output: &out}
	err := agent.Bootstrap(context.Background(), Target{
		Address:  host,
		Port:     port,
		User:     "root",
		Password: "hunter2",
		NodeName: "web-1",
		RunList:  []string{"role[base]", "recipe[nginx]"},
		UseSudo:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"sudo chef-client --node-name 'web-1' --runlist 'role[base],recipe[nginx]'"}, rec.all())
	assert.Contains(t, out.String(), "Chef run complete")
}

func TestSSHAgent_IdentityFileAuth(t *testing.T) {
	t.Parallel()
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(key, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	authorized, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, given ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(given.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, os.ErrPermission
		},
	}
	host, port, rec := sshServer(t, cfg, "ok\n", 0)

	agent := &SSHAgent{Output: io.Discard}
	err = agent.Bootstrap(context.Background(), Target{
		Address:      host,
		Port:         port,
		User:         "root",
		IdentityFile: path,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"chef-client"}, rec.all())
}

func TestSSHAgent_RemoteFailure(t *testing.T) {
	t.Parallel()
	host, port, _ := sshServer(t, passwordConfig("hunter2"), "FATAL: no cookbooks\n", 1)

	var out bytes.Buffer
	agent := &SSHAgent{Output: &out}
	err := agent.Bootstrap(context.Background(), Target{
		Address:  host,
		Port:     port,
		User:     "root",
		Password: "hunter2",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap of "+host+" failed")
	assert.Contains(t, out.String(), "FATAL: no cookbooks")
}

func TestSSHAgent_ThroughGateway(t *testing.T) {
	t.Parallel()
	host, port, rec := sshServer(t, passwordConfig("hunter2"), "ok\n", 0)
	gwHost, gwPort := forwardingGateway(t)

	agent := &SSHAgent{Output: io.Discard}
	err := agent.Bootstrap(context.Background(), Target{
		Address:  host,
		Port:     port,
		Gateway:  &probe.Gateway{Host: gwHost, Port: gwPort, User: "jump"},
		User:     "root",
		Password: "hunter2",
		RunList:  []string{"role[base]"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"chef-client --runlist 'role[base]'"}, rec.all())
}

// forwardingGateway runs an SSH server that bridges direct-tcpip
// channels, standing in for a bastion host.
func forwardingGateway(t *testing.T) (host string, port int) {
	t.Helper()
	cfg := &ssh.ServerConfig{NoClientAuth: true}
	cfg.AddHostKey(hostSigner(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveForwardConn(conn, cfg)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func serveForwardConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "direct-tcpip" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		var msg struct {
			DestAddr string
			DestPort uint32
			OrigAddr string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(newCh.ExtraData(), &msg); err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, "bad payload")
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(msg.DestAddr, strconv.Itoa(int(msg.DestPort))))
		if err != nil {
			_ = newCh.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			_ = target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			defer ch.Close()
			defer target.Close()
			done := make(chan struct{}, 2)
			go func() {
				_, _ = io.Copy(ch, target)
				done <- struct{}{}
			}()
			go func() {
				_, _ = io.Copy(target, ch)
				done <- struct{}{}
			}()
			<-done
		}()
	}
}

func TestSSHAgent_MissingCredentials(t *testing.T) {
	t.Parallel()
	agent := &SSHAgent{}
	err := agent.Bootstrap(context.Background(), Target{Address: "10.0.0.5", User: "root"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SSH credentials")
}

func TestSSHAgent_UnreadableIdentityFile(t *testing.T) {
	t.Parallel()
	agent := &SSHAgent{}
	err := agent.Bootstrap(context.Background(), Target{
		Address:      "10.0.0.5",
		User:         "root",
		IdentityFile: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity file")
}

func TestBootstrapCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		target Target
		want   string
	}{
		{"bare", Target{}, "chef-client"},
		{"sudo", Target{UseSudo: true}, "sudo chef-client"},
		{"node name quoted", Target{NodeName: "web-1"}, "chef-client --node-name 'web-1'"},
		{
			"run list joined",
			Target{RunList: []string{"role[base]", "recipe[nginx]"}},
			"chef-client --runlist 'role[base],recipe[nginx]'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, bootstrapCommand("chef-client", tc.target))
		})
	}
}
