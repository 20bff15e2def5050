package logger

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"
)

var (
	jsonErrorLevel = []byte(`"level":"error"`)
	jsonFatalLevel = []byte(`"level":"fatal"`)
	jsonPanicLevel = []byte(`"level":"panic"`)
)

// SmartWriter buffers log lines in memory and flushes them when the buffer
// fills, when the flush interval elapses, when an error/fatal/panic line is
// written, or on Sync/Close.
type SmartWriter struct {
	bufWriter     *bufio.Writer
	mu            sync.Mutex
	flushInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewSmartWriter creates a new SmartWriter with a 256KB buffer
func NewSmartWriter(w io.Writer, flushInterval time.Duration) *SmartWriter {
	sw := &SmartWriter{
		bufWriter:     bufio.NewWriterSize(w, 256*1024),
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}

	sw.wg.Add(1)
	go sw.runFlusher()

	return sw
}

// Write implements io.Writer
func (sw *SmartWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	n, err := sw.bufWriter.Write(p)
	if err != nil {
		return n, err
	}

	if isUrgent(p) {
		err = sw.bufWriter.Flush()
	}
	return n, err
}

func isUrgent(p []byte) bool {
	return bytes.Contains(p, jsonErrorLevel) ||
		bytes.Contains(p, jsonFatalLevel) ||
		bytes.Contains(p, jsonPanicLevel)
}

// Sync flushes the buffer
func (sw *SmartWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.bufWriter.Flush()
}

// Close stops the background flusher and flushes what is left. Safe to call twice.
func (sw *SmartWriter) Close() error {
	sw.stopOnce.Do(func() {
		close(sw.stopChan)
	})
	sw.wg.Wait()
	return sw.Sync()
}

func (sw *SmartWriter) runFlusher() {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = sw.Sync()
		case <-sw.stopChan:
			return
		}
	}
}
