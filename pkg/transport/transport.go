// Package transport abstracts the single remote connection a Scenario
// execution run owns: a privileged command channel and a file-upload
// channel. Real vs Fake implementations sit behind one interface, so the
// execution engine never depends on an actual SSH session plus SFTP.
package transport

import (
	"context"
)

// ExecResult is the outcome of one ExecSudo call.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// SftpProgress is reported periodically during SFTPPut so the engine can
// publish monotonically increasing progress events (spec.md §8).
type SftpProgress struct {
	BytesSent  int64
	TotalBytes int64
}

// Transport is the single remote connection an execution engine run owns
// exclusively (spec.md §5). Implementations: SSHTransport (real),
// FakeTransport (tests).
type Transport interface {
	// ExecSudo runs command under sudo on the remote host, streaming combined
	// output lines to onOutput as they arrive and returning the final result.
	ExecSudo(ctx context.Context, command string, onOutput func(line string, stderr bool)) (*ExecResult, error)

	// SFTPPut uploads the local file at localPath to remotePath on the
	// remote host, invoking onProgress as bytes are written.
	SFTPPut(ctx context.Context, localPath, remotePath string, onProgress func(SftpProgress)) error

	// Close releases the underlying connection. Safe to call once per run.
	Close() error
}
