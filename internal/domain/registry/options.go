package registry

import "time"

// Option configures the Hub.
type Option func(*Hub)

// WithSweepInterval configures how often the janitor scans for idle
// connections.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.sweepInterval = d
	}
}

// WithIdleTimeout defines the quiet period after which a connection is
// force-closed by the janitor. Resource reclamation, not a correctness
// requirement.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.idleTimeout = d
	}
}

// WithReplayDepth bounds the per-room chat replay log.
func WithReplayDepth(n int) Option {
	return func(h *Hub) {
		h.config.replayDepth = n
	}
}

// WithSendBuffer sets the outbound mailbox capacity of each connection.
// The buffer decouples broadcasters from slow consumers.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		h.config.sendBuffer = n
	}
}

// WithSendTimeout bounds how long a broadcast waits on a saturated
// connection mailbox before dropping the frame.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.sendTimeout = d
	}
}
