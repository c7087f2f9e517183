package checkin

import "sync"

// Connectivity reports whether the device currently has a usable network
// path and notifies interested parties of changes. The sync worker uses it
// to skip passes while offline and to wake immediately on reconnect.
type Connectivity interface {
	Online() bool
	// Changes registers a subscriber. The returned stop function removes it;
	// callers must stop a subscription they no longer drain.
	Changes() (<-chan bool, func())
}

// Monitor is a settable Connectivity implementation. The platform layer
// (or an operator endpoint) flips it; tests drive it directly.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline updates the state and notifies subscribers on a change.
// Notification is non-blocking; a subscriber that has not drained its
// channel keeps the latest pending signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// Changes returns a channel receiving the new state after each transition.
// Each call registers a fresh subscriber; the stop function removes it so
// short-lived callers do not accumulate.
func (m *Monitor) Changes() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan bool, 1)
	m.subs = append(m.subs, ch)
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
	return ch, stop
}
