package driver

import (
	"sync"

	"github.com/robotalks/firmata.go/pkg/firmata"
)

// snapshotCell holds the latest published state. Publishing never blocks;
// readers that fall behind only see the most recent value.
type snapshotCell struct {
	lock    sync.Mutex
	state   firmata.BoardState
	version uint64
	changed chan struct{}
	closed  bool
}

func newSnapshotCell() *snapshotCell {
	return &snapshotCell{changed: make(chan struct{})}
}

func (c *snapshotCell) publish(state firmata.BoardState) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return
	}
	c.state = state
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
}

// load returns the current state and version together with a channel
// closed on the next publish or close.
func (c *snapshotCell) load() (firmata.BoardState, uint64, <-chan struct{}, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state, c.version, c.changed, c.closed
}

func (c *snapshotCell) close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.closed {
		c.closed = true
		close(c.changed)
	}
}
