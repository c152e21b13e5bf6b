// Package stream runs the long-lived background tasks: following a
// container's logs and pulling images.
package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"dockyard/internal/scheduler"
	"dockyard/internal/store"
	"dockyard/pkg/logging"
)

// maxLineSize bounds a single log line; longer lines are split.
const maxLineSize = 256 * 1024

// LogSource opens a follow-mode log stream.
type LogSource interface {
	StreamLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, error)
}

// LogStreamer follows one container's logs at a time into the store.
type LogStreamer struct {
	ctx   context.Context
	gate  *scheduler.Gate
	src   LogSource
	store *store.Store
	tail  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLogStreamer creates a streamer whose streams end when ctx does.
func NewLogStreamer(ctx context.Context, gate *scheduler.Gate, src LogSource, st *store.Store, tail int) *LogStreamer {
	return &LogStreamer{ctx: ctx, gate: gate, src: src, store: st, tail: tail}
}

// Open cancels any current stream and starts following id. Opening the stream
// goes through the gate; reading it afterwards does not hold a slot.
func (l *LogStreamer) Open(id string) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.cancel = cancel
	l.mu.Unlock()

	gen := l.store.ResetLogs(id)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.follow(ctx, id, gen)
	}()
}

// Close cancels the current stream and clears the log buffer.
func (l *LogStreamer) Close() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()

	l.store.ResetLogs("")
}

// Wait blocks until every stream goroutine has returned.
func (l *LogStreamer) Wait() {
	l.wg.Wait()
}

func (l *LogStreamer) follow(ctx context.Context, id string, gen uint64) {
	var body io.ReadCloser
	err := l.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = l.src.StreamLogs(ctx, id, strconv.Itoa(l.tail))
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			logging.Error("logs", err, "cannot open log stream for %.12s", id)
			l.store.EndLogs(gen, err)
		}
		return
	}
	defer body.Close()

	// Cancelling must unblock a read that is waiting for output.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	logging.Debug("logs", "following %.12s", id)
	err = ReadLines(body, func(line string) {
		l.store.AppendLog(gen, line)
	})

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logging.Warn("logs", "log stream for %.12s ended: %v", id, err)
	}
	l.store.EndLogs(gen, err)
}

// ReadLines calls fn for every line in r, without line terminators.
func ReadLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	err := scanner.Err()
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
