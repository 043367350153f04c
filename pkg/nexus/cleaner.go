package nexus

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/loom/pkg/loadctx"
)

var cleanerLog = commonlog.GetLogger("loom.nexus.cleaner")

// Cleaner drains an accessor's notification queue in the background,
// invoking Clean for every collected context reference so stale
// entries do not accumulate in long-running generators.
type Cleaner struct {
	accessor *Accessor
	queue    <-chan loadctx.Ref

	mu      sync.Mutex // protects start/stop lifecycle
	stop    chan struct{}
	stopped chan struct{}

	cleaned atomic.Uint64
	failed  atomic.Uint64
}

// NewCleaner creates a cleaner draining queue through the accessor.
// The queue should be the same channel the accessor was constructed
// with.
func NewCleaner(accessor *Accessor, queue <-chan loadctx.Ref) *Cleaner {
	return &Cleaner{accessor: accessor, queue: queue}
}

// Start begins the drain goroutine. It is safe to call Start multiple
// times; only one drain loop will run.
func (c *Cleaner) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return // already running
	}

	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	// Capture channels locally so the goroutine does not read c.stop
	// and c.stopped after Stop() has nilled them out.
	stopCh := c.stop
	stoppedCh := c.stopped
	go c.loop(stopCh, stoppedCh)
}

// Stop halts the drain goroutine and waits for it to finish. It is
// safe to call Stop multiple times or on a cleaner that was never
// started.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	stopCh := c.stop
	stoppedCh := c.stopped
	c.stop = nil
	c.stopped = nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// Cleaned returns the number of references cleaned so far.
func (c *Cleaner) Cleaned() uint64 { return c.cleaned.Load() }

// Failed returns the number of clean attempts that failed.
func (c *Cleaner) Failed() uint64 { return c.failed.Load() }

func (c *Cleaner) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	for {
		select {
		case <-stopCh:
			return
		case ref := <-c.queue:
			if err := c.accessor.Clean(ref); err != nil {
				c.failed.Add(1)
				cleanerLog.Errorf("clean failed: %s", err.Error())
				continue
			}
			c.cleaned.Add(1)
		}
	}
}
