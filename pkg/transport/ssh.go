package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

// DialOptions configures SSHTransport.Dial.
type DialOptions struct {
	Host     string
	Port     uint16
	Username string
	Password string // empty triggers agent auth via AgentSocket
	// AgentSocket, when set, is used for SSH agent authentication (the
	// SSH_AUTH_SOCK path). Ignored when Password is non-empty.
	AgentSocket string
	// KnownHostsPath overrides the default TOFU known_hosts location
	// ($XDG_CACHE_HOME/scenex/known_hosts, or $HOME/.cache/scenex otherwise).
	KnownHostsPath string
	ConnectTimeout time.Duration
}

// SSHTransport is the real Transport, backed by a single reused SSH client
// connection: each ExecSudo opens a fresh session on it and each SFTPPut
// opens its own SFTP client on it, per spec.md §5 ("Transport owned
// exclusively by the executing engine").
type SSHTransport struct {
	client *ssh.Client

	mu sync.Mutex
}

// Dial opens the SSH connection, performing TOFU host-key verification
// against a persisted known_hosts file (SPEC_FULL.md §9 Open Question
// resolution).
func Dial(ctx context.Context, opts DialOptions) (*SSHTransport, error) {
	khPath, err := resolveKnownHostsPath(opts.KnownHostsPath)
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "resolve known_hosts path", err)
	}
	hostKeyCallback, err := tofuHostKeyCallback(khPath)
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "prepare known_hosts", err)
	}

	auths, err := authMethods(opts)
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportAuth, "configure authentication", err)
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cfg := &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port)))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, fmt.Sprintf("dial %s", addr), err)
	}

	return &SSHTransport{client: client}, nil
}

func resolveKnownHostsPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "scenex")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "known_hosts"), nil
}

// tofuHostKeyCallback trusts a host key on first contact and persists it;
// subsequent connections to the same host are verified against the saved
// entry and rejected on mismatch.
func tofuHostKeyCallback(khPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(khPath); os.IsNotExist(err) {
		if f, ferr := os.OpenFile(khPath, os.O_CREATE|os.O_WRONLY, 0o600); ferr == nil {
			f.Close()
		}
	}

	cb, err := knownhosts.New(khPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if isKnownHostsKeyError(err, &keyErr) && len(keyErr.Want) == 0 {
			// First contact: trust and persist.
			line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
			f, ferr := os.OpenFile(khPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if ferr != nil {
				return ferr
			}
			defer f.Close()
			if _, werr := f.WriteString(line + "\n"); werr != nil {
				return werr
			}
			return nil
		}
		return err
	}, nil
}

func isKnownHostsKeyError(err error, target **knownhosts.KeyError) bool {
	ke, ok := err.(*knownhosts.KeyError)
	if !ok {
		return false
	}
	*target = ke
	return true
}

func authMethods(opts DialOptions) ([]ssh.AuthMethod, error) {
	if opts.Password != "" {
		return []ssh.AuthMethod{ssh.Password(opts.Password)}, nil
	}
	signers, err := agentSigners(opts.AgentSocket)
	if err != nil {
		return nil, err
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
		return signers, nil
	})}, nil
}

// agentSigners connects to the SSH agent at sock (or $SSH_AUTH_SOCK when
// empty) and returns its available signers.
func agentSigners(sock string) ([]ssh.Signer, error) {
	if sock == "" {
		sock = os.Getenv("SSH_AUTH_SOCK")
	}
	if sock == "" {
		return nil, fmt.Errorf("no password supplied and SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh-agent at %s: %w", sock, err)
	}
	return agent.NewClient(conn).Signers()
}

// ExecSudo runs `sudo -S -p '' <command>` over a fresh session allocated
// with a PTY (sudo commonly refuses to run without one), streaming stdout
// and stderr line-by-line to onOutput.
func (t *SSHTransport) ExecSudo(ctx context.Context, command string, onOutput func(line string, stderr bool)) (*ExecResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, err := t.client.NewSession()
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "open session", err)
	}
	defer session.Close()

	if err := session.RequestPty("xterm", 80, 40, ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "request pty", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "open stdout pipe", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "open stderr pipe", err)
	}

	sudoCmd := "sudo -S -p '' " + command
	if err := session.Start(sudoCmd); err != nil {
		return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "start command", err)
	}

	var wg sync.WaitGroup
	var stdoutBuf, stderrBuf safeBuffer
	wg.Add(2)
	go streamLines(stdout, false, onOutput, &stdoutBuf, &wg)
	go streamLines(stderr, true, onOutput, &stderrBuf, &wg)

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		wg.Wait()
		return nil, scenexerr.Wrap(scenexerr.KindCancelled, "command cancelled", ctx.Err())
	case err := <-done:
		wg.Wait()
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return nil, scenexerr.Wrap(scenexerr.KindTransportConnect, "wait for command", err)
			}
		}
		return &ExecResult{
			Stdout:   stdoutBuf.Bytes(),
			Stderr:   stderrBuf.Bytes(),
			ExitCode: exitCode,
		}, nil
	}
}

// Close closes the underlying SSH client, also terminating any SFTP
// client opened from it.
func (t *SSHTransport) Close() error {
	return t.client.Close()
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func streamLines(r interface {
	Read(p []byte) (int, error)
}, isStderr bool, onOutput func(line string, stderr bool), sink *safeBuffer, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sink.Write([]byte(line + "\n"))
		if onOutput != nil {
			onOutput(line, isStderr)
		}
	}
}
