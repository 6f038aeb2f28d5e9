package capture

import (
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a notice stays visible after its last update.
const DefaultNoticeTTL = 4 * time.Second

// Notice is an advisory banner that hides itself after a quiet period.
// Showing it again restarts the countdown.
type Notice struct {
	mu       sync.Mutex
	text     string
	visible  bool
	ttl      time.Duration
	gen      int
	stop     func() bool
	schedule schedule
	onChange func(text string, visible bool)
}

func NewNotice(ttl time.Duration, onChange func(text string, visible bool)) *Notice {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notice{ttl: ttl, onChange: onChange, schedule: afterFunc}
}

func (n *Notice) Show(text string) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	if n.stop != nil {
		n.stop()
	}
	n.text = text
	n.visible = true
	n.stop = n.schedule(n.ttl, func() { n.expire(gen) })
	n.mu.Unlock()

	n.notify(text, true)
}

func (n *Notice) expire(gen int) {
	n.mu.Lock()
	if n.gen != gen || !n.visible {
		n.mu.Unlock()
		return
	}
	n.visible = false
	n.stop = nil
	text := n.text
	n.mu.Unlock()

	n.notify(text, false)
}

// Hide removes the banner immediately.
func (n *Notice) Hide() {
	n.mu.Lock()
	n.gen++
	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
	wasVisible := n.visible
	n.visible = false
	text := n.text
	n.mu.Unlock()

	if wasVisible {
		n.notify(text, false)
	}
}

// Current returns the banner text and whether it is shown.
func (n *Notice) Current() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text, n.visible
}

func (n *Notice) notify(text string, visible bool) {
	if n.onChange != nil {
		n.onChange(text, visible)
	}
}
