package docker

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/moby/moby/api/pkg/stdcopy"
)

// writeFrame appends one multiplexed log frame the way the daemon sends it.
func writeFrame(buf *bytes.Buffer, stream stdcopy.StdType, payload string) {
	header := make([]byte, frameHeaderLen)
	header[0] = byte(stream)
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	buf.Write(header)
	buf.WriteString(payload)
}

func TestDemuxLogsMultiplexed(t *testing.T) {
	var framed bytes.Buffer
	writeFrame(&framed, stdcopy.Stdout, "hello\n")
	writeFrame(&framed, stdcopy.Stderr, "oops\n")

	out, err := io.ReadAll(demuxLogs(io.NopCloser(&framed)))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(out) != "hello\noops\n" {
		t.Errorf("demuxed output = %q", out)
	}
}

func TestDemuxLogsRawTTY(t *testing.T) {
	raw := "plain tty output\nsecond line\n"

	out, err := io.ReadAll(demuxLogs(io.NopCloser(bytes.NewBufferString(raw))))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(out) != raw {
		t.Errorf("raw output = %q, want %q", out, raw)
	}
}

func TestIsMultiplexed(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   bool
	}{
		{"stdout frame", []byte{1, 0, 0, 0, 0, 0, 0, 5}, true},
		{"stderr frame", []byte{2, 0, 0, 0, 0, 0, 0, 5}, true},
		{"text", []byte("2024-01-"), false},
		{"short", []byte{1, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMultiplexed(tt.header); got != tt.want {
				t.Errorf("isMultiplexed(%v) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}
