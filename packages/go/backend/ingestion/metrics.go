package ingestion

import (
	"io"
	"sync/atomic"
)

// StreamMetrics captures aggregated statistics about a decode stream.
type StreamMetrics struct {
	BytesRead  int64
	Reads      int64
	ReadErrors int64
}

type streamCounters struct {
	bytes  atomic.Int64
	reads  atomic.Int64
	errors atomic.Int64
}

func (c *streamCounters) snapshot() StreamMetrics {
	return StreamMetrics{
		BytesRead:  c.bytes.Load(),
		Reads:      c.reads.Load(),
		ReadErrors: c.errors.Load(),
	}
}

// countingReader records every read against the counters. EOF is not an error.
type countingReader struct {
	r        io.Reader
	counters *streamCounters
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.counters.reads.Add(1)
	c.counters.bytes.Add(int64(n))
	if err != nil && err != io.EOF {
		c.counters.errors.Add(1)
	}
	return n, err
}
