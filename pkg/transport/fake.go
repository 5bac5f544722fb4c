package transport

import (
	"context"
	"fmt"
)

// FakeExecResponse is one scripted ExecSudo reply.
type FakeExecResponse struct {
	Command  string // exact match against the command passed to ExecSudo
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error // if set, ExecSudo returns this error instead of a result
}

// FakeTransport implements Transport by matching commands against
// pre-scripted responses, fail-closed: an unscripted command is a test
// bug, not a silently-accepted no-op.
type FakeTransport struct {
	Execs []FakeExecResponse
	used  []bool

	// Uploaded records every SFTPPut call for assertions.
	Uploaded []FakeUpload

	Closed bool
}

// FakeUpload records one SFTPPut invocation against a FakeTransport.
type FakeUpload struct {
	LocalPath  string
	RemotePath string
	TotalBytes int64
}

func NewFakeTransport(execs ...FakeExecResponse) *FakeTransport {
	return &FakeTransport{Execs: execs, used: make([]bool, len(execs))}
}

func (f *FakeTransport) ExecSudo(ctx context.Context, command string, onOutput func(line string, stderr bool)) (*ExecResult, error) {
	for i, resp := range f.Execs {
		if f.used[i] || resp.Command != command {
			continue
		}
		f.used[i] = true
		if resp.Err != nil {
			return nil, resp.Err
		}
		if onOutput != nil {
			if resp.Stdout != "" {
				onOutput(resp.Stdout, false)
			}
			if resp.Stderr != "" {
				onOutput(resp.Stderr, true)
			}
		}
		return &ExecResult{
			Stdout:   []byte(resp.Stdout),
			Stderr:   []byte(resp.Stderr),
			ExitCode: resp.ExitCode,
		}, nil
	}
	return nil, fmt.Errorf("fake transport: no scripted response for command: %s", command)
}

func (f *FakeTransport) SFTPPut(ctx context.Context, localPath, remotePath string, onProgress func(SftpProgress)) error {
	const fakeTotal = int64(1024)
	if onProgress != nil {
		onProgress(SftpProgress{BytesSent: fakeTotal / 2, TotalBytes: fakeTotal})
		onProgress(SftpProgress{BytesSent: fakeTotal, TotalBytes: fakeTotal})
	}
	f.Uploaded = append(f.Uploaded, FakeUpload{LocalPath: localPath, RemotePath: remotePath, TotalBytes: fakeTotal})
	return nil
}

func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}
