package audio

import (
	"fmt"
	"sync"
	"time"
)

// Source supplies captured audio as blocks of floating-point samples in
// [-1.0, 1.0]. Implementations wrap a real capture device or a replayed
// clip. Stop must release the device immediately and unconditionally;
// the sample channel is closed once the source is stopped or exhausted.
type Source interface {
	Start() (<-chan []float32, error)
	Stop()
}

// ClipSource replays an in-memory clip as if it were a live microphone,
// emitting fixed-size blocks on a real-time cadence. A zero interval
// replays as fast as the consumer can read, which tests rely on.
type ClipSource struct {
	samples  []float32
	block    int
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	started bool
}

// NewClipSource creates a clip source emitting blocks of block samples
// every interval.
func NewClipSource(samples []float32, block int, interval time.Duration) *ClipSource {
	if block <= 0 {
		block = 1600
	}
	return &ClipSource{
		samples:  samples,
		block:    block,
		interval: interval,
	}
}

// Start begins emitting sample blocks. It fails if the source is already
// running.
func (c *ClipSource) Start() (<-chan []float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil, fmt.Errorf("clip source already started")
	}
	c.started = true
	c.stop = make(chan struct{})

	out := make(chan []float32, 4)
	go c.pump(out, c.stop)
	return out, nil
}

func (c *ClipSource) pump(out chan<- []float32, stop <-chan struct{}) {
	defer close(out)

	var ticker *time.Ticker
	if c.interval > 0 {
		ticker = time.NewTicker(c.interval)
		defer ticker.Stop()
	}

	for off := 0; off < len(c.samples); off += c.block {
		end := off + c.block
		if end > len(c.samples) {
			end = len(c.samples)
		}
		block := make([]float32, end-off)
		copy(block, c.samples[off:end])

		if ticker != nil {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}

		select {
		case <-stop:
			return
		case out <- block:
		}
	}
}

// Stop releases the source. Safe to call more than once.
func (c *ClipSource) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.started = false
	close(c.stop)
}
