package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/LISSConsulting/LISSTech.Relay/internal/claude"
	"github.com/LISSConsulting/LISSTech.Relay/internal/command"
	"github.com/LISSConsulting/LISSTech.Relay/internal/credential"
	"github.com/LISSConsulting/LISSTech.Relay/internal/sshkey"
)

// SSH runs the CLI on a remote host as a single non-interactive exec
// request over a fresh connection.
type SSH struct {
	Cred credential.SSH
	Log  zerolog.Logger
}

// Execute implements Executor.
func (s *SSH) Execute(ctx context.Context, opts claude.Options) (claude.Result, error) {
	spec, err := command.Build(opts, s.Cred)
	if err != nil {
		return claude.Result{}, err
	}
	return s.run(ctx, command.BuildLine(spec), opts.EffectiveTimeout()).result(opts)
}

// TestAvailability runs `<claude> --version` on the host.
func (s *SSH) TestAvailability(ctx context.Context) bool {
	line := command.BuildLine(command.Spec{Executable: s.Cred.Executable(), Args: []string{"--version"}})
	return s.run(ctx, line, availabilityTimeout).ok()
}

// run executes line under one timer covering dial, handshake and the
// remote command. Expiry or ctx cancellation closes the TCP connection,
// which unblocks whichever step is in progress.
func (s *SSH) run(ctx context.Context, line string, timeout time.Duration) outcome {
	start := time.Now()

	auth, cleanup, err := s.authMethods()
	if err != nil {
		return failed(err.Error(), start)
	}
	defer cleanup()

	hostKey, err := s.hostKeyCallback()
	if err != nil {
		return failed(fmt.Sprintf("ssh connection error: %v", err), start)
	}

	host := strings.TrimSpace(s.Cred.Host)
	if host == "" {
		return failed("ssh connection error: host is required", start)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(s.Cred.EffectivePort()))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(runCtx, "tcp", addr)
	if err != nil {
		if runCtx.Err() != nil {
			return deadline(ctx, start)
		}
		return failed(fmt.Sprintf("ssh connection error: %v", err), start)
	}
	teardown := sync.OnceFunc(func() { _ = conn.Close() })
	defer teardown()
	stop := context.AfterFunc(runCtx, teardown)
	defer stop()

	config := &ssh.ClientConfig{
		User:            s.Cred.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if runCtx.Err() != nil {
			return deadline(ctx, start)
		}
		return failed(fmt.Sprintf("ssh connection error: %v", err), start)
	}
	client := ssh.NewClient(clientConn, chans, reqs)
	defer client.Close()
	s.Log.Debug().Str("addr", addr).Str("user", s.Cred.Username).Msg("connected")

	session, err := client.NewSession()
	if err != nil {
		if runCtx.Err() != nil {
			return deadline(ctx, start)
		}
		return failed(fmt.Sprintf("ssh exec error: %v", err), start)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	stdin, err := session.StdinPipe()
	if err != nil {
		return failed(fmt.Sprintf("ssh exec error: %v", err), start)
	}

	if err := session.Start(line); err != nil {
		if runCtx.Err() != nil {
			return deadline(ctx, start)
		}
		return failed(fmt.Sprintf("ssh exec error: %v", err), start)
	}
	// Some remote shells block on stdin even though the CLI never reads it.
	_ = stdin.Close()

	err = session.Wait()
	if err != nil && runCtx.Err() != nil {
		return deadline(ctx, start)
	}

	o := outcome{raw: claude.RawOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}}
	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		o.raw.ExitCode = exitErr.ExitStatus()
	case errors.As(err, &missing):
		// Channel closed without an exit-status; treated as success.
		s.Log.Debug().Msg("remote closed without exit status")
	default:
		return failed(fmt.Sprintf("ssh exec error: %v", err), start)
	}
	return o
}

// authMethods resolves the single auth path the credential selects. The
// returned cleanup releases any agent connection.
func (s *SSH) authMethods() ([]ssh.AuthMethod, func(), error) {
	noop := func() {}
	switch s.Cred.Method() {
	case credential.AuthPassword:
		return []ssh.AuthMethod{ssh.Password(s.Cred.Password)}, noop, nil
	case credential.AuthAgent:
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, noop, errors.New("ssh connection error: SSH_AUTH_SOCK is not set")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, noop, fmt.Errorf("ssh connection error: agent: %w", err)
		}
		ag := agent.NewClient(conn)
		return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}, func() { _ = conn.Close() }, nil
	case credential.AuthPrivateKey:
		signer, err := s.signer()
		if err != nil {
			return nil, noop, fmt.Errorf("ssh private key error: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, noop, nil
	}
	return nil, noop, fmt.Errorf("ssh connection error: unsupported auth method %q", s.Cred.AuthMethod)
}

func (s *SSH) signer() (ssh.Signer, error) {
	var pemBytes []byte
	switch {
	case strings.TrimSpace(s.Cred.PrivateKey) != "":
		if err := sshkey.Validate(s.Cred.PrivateKey); err != nil {
			return nil, err
		}
		pemBytes = []byte(sshkey.Normalize(s.Cred.PrivateKey))
	case strings.TrimSpace(s.Cred.PrivateKeyPath) != "":
		path, err := expandHome(s.Cred.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		pemBytes, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no private key or key path configured")
	}

	if s.Cred.Passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(s.Cred.Passphrase))
	}
	return ssh.ParsePrivateKey(pemBytes)
}

func (s *SSH) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.Cred.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := strings.TrimSpace(s.Cred.KnownHostsPath)
	if path == "" {
		path = "~/.ssh/known_hosts"
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	return knownhosts.New(path)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}
