package app

import "sync"

// Connectivity tracks whether the backing store is reachable and fans the
// transitions out to interested components: the operation queue replays on
// reconnect, and the broker re-arms failed subscriptions.
type Connectivity struct {
	mu        sync.Mutex
	online    bool
	seq       int
	listeners map[int]func(online bool)
}

// NewConnectivity starts in the online state.
func NewConnectivity() *Connectivity {
	return &Connectivity{
		online:    true,
		listeners: make(map[int]func(bool)),
	}
}

// Online reports the current state.
func (c *Connectivity) Online() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline records a state change. Listeners are only notified on actual
// transitions, not repeated reports of the same state.
func (c *Connectivity) SetOnline(online bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	listeners := make([]func(bool), 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(online)
	}
}

// Subscribe registers fn for transition callbacks and returns a cancel
// function.
func (c *Connectivity) Subscribe(fn func(online bool)) (cancel func()) {
	if c == nil || fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.seq++
	key := c.seq
	c.listeners[key] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}
