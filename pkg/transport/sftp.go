package transport

import (
	"context"
	"io"
	"os"

	"github.com/pkg/sftp"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

// SFTPPut uploads localPath to remotePath over a dedicated SFTP client
// opened from the same SSH connection, reporting progress in 32KiB
// increments so the engine can publish monotonically increasing progress
// events (spec.md §8).
func (t *SSHTransport) SFTPPut(ctx context.Context, localPath, remotePath string, onProgress func(SftpProgress)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	client, err := sftp.NewClient(t.client)
	if err != nil {
		return scenexerr.Wrap(scenexerr.KindSftpFailed, "open sftp client", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return scenexerr.Wrap(scenexerr.KindSftpFailed, "open local file", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return scenexerr.Wrap(scenexerr.KindSftpFailed, "stat local file", err)
	}
	total := info.Size()

	dst, err := client.Create(remotePath)
	if err != nil {
		return scenexerr.Wrap(scenexerr.KindSftpFailed, "create remote file", err)
	}
	defer dst.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return scenexerr.Wrap(scenexerr.KindCancelled, "sftp upload cancelled", err)
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return scenexerr.Wrap(scenexerr.KindSftpFailed, "write remote file", writeErr)
			}
			sent += int64(n)
			if onProgress != nil {
				onProgress(SftpProgress{BytesSent: sent, TotalBytes: total})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return scenexerr.Wrap(scenexerr.KindSftpFailed, "read local file", readErr)
		}
	}

	return nil
}
