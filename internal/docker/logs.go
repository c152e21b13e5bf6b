package docker

import (
	"bufio"
	"context"
	"io"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/client"
)

// StreamLogs follows a container's output starting from the last tail lines.
// The returned stream carries plain text with stdout and stderr merged; it
// ends when ctx is cancelled, the container exits or the stream is closed.
func (c *Client) StreamLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, error) {
	options := client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       tail,
	}

	logs, err := c.cli.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return nil, wrapErr("get logs", TimeoutQuick, err)
	}

	return demuxLogs(logs), nil
}

// stdcopy frames start with an 8 byte header: stream type, three zero bytes
// and a big-endian payload size.
const frameHeaderLen = 8

func isMultiplexed(header []byte) bool {
	if len(header) < frameHeaderLen {
		return false
	}
	if header[0] > byte(stdcopy.Stderr) {
		return false
	}
	return header[1] == 0 && header[2] == 0 && header[3] == 0
}

// demuxLogs strips stdcopy framing when present. Containers with a TTY send
// raw bytes, so the first header decides which copy applies.
func demuxLogs(body io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		br := bufio.NewReader(body)
		header, _ := br.Peek(frameHeaderLen)

		var err error
		if isMultiplexed(header) {
			_, err = stdcopy.StdCopy(pw, pw, br)
		} else {
			_, err = io.Copy(pw, br)
		}
		pw.CloseWithError(err)
	}()

	return &logStream{PipeReader: pr, body: body}
}

type logStream struct {
	*io.PipeReader
	body io.ReadCloser
}

func (s *logStream) Close() error {
	err := s.body.Close()
	_ = s.PipeReader.Close()
	return err
}
