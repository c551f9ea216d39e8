// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package logger

import (
	"container/ring"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Streamer is an io.Writer that keeps the last logged lines and allows to
// stream new ones.
type Streamer interface {
	io.Writer
	http.Handler

	// Lines returns all retained lines, oldest first.
	Lines() []string

	// Stream returns a channel that receives newly logged lines. The returned
	// function deregisters and closes the channel.
	Stream() (<-chan string, func())
}

// NewStreamer returns a new Streamer backed by a ring buffer of the given size.
func NewStreamer(size int) Streamer {
	return &lineRingBuffer{
		size:    size,
		r:       ring.New(size),
		streams: make(map[chan string]struct{}),
	}
}

type lineRingBuffer struct {
	mu        sync.RWMutex
	size      int
	remainder string
	r         *ring.Ring
	streams   map[chan string]struct{}
}

func (lrb *lineRingBuffer) Write(b []byte) (int, error) {
	lrb.mu.Lock()
	defer lrb.mu.Unlock()

	text := lrb.remainder + string(b)
	for {
		idx := strings.IndexByte(text, '\n')
		if idx == -1 {
			break
		}
		line := text[:idx+1]
		lrb.r.Value = line
		for stream := range lrb.streams {
			select {
			case stream <- line:
			default:
				// Slow readers miss lines.
			}
		}
		lrb.r = lrb.r.Next()
		text = text[idx+1:]
	}
	lrb.remainder = text
	return len(b), nil
}

func (lrb *lineRingBuffer) Lines() []string {
	lrb.mu.RLock()
	defer lrb.mu.RUnlock()
	lines := make([]string, 0, lrb.size)
	lrb.r.Do(func(x any) {
		if x != nil {
			lines = append(lines, x.(string))
		}
	})
	return lines
}

func (lrb *lineRingBuffer) Stream() (<-chan string, func()) {
	lrb.mu.Lock()
	defer lrb.mu.Unlock()

	stream := make(chan string, lrb.size+1)
	lrb.streams[stream] = struct{}{}

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			lrb.mu.Lock()
			defer lrb.mu.Unlock()
			delete(lrb.streams, stream)
			close(stream)
		})
	}
}

// ServeHTTP writes the retained lines and then streams new ones until the
// client goes away. Clients that accept text/event-stream get server-sent
// events.
func (lrb *lineRingBuffer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	evtStream := strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream")
	if evtStream {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	stream, closeFunc := lrb.Stream()
	defer closeFunc()

	write := func(line string) {
		if evtStream {
			line = fmt.Sprintf("event: logline\ndata: %s\n", strings.TrimSuffix(line, "\n"))
		}
		fmt.Fprintln(w, line)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	if !evtStream {
		for _, line := range lrb.Lines() {
			fmt.Fprint(w, line)
		}
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case line := <-stream:
			write(line)
		case <-r.Context().Done():
			return
		}
	}
}
