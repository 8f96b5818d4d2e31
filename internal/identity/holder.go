package identity

import "sync"

// Holder tracks the active customer of one session and notifies subscribers
// whenever it changes. An empty id means nobody is signed in.
type Holder struct {
	mu      sync.RWMutex
	current string

	subMu sync.Mutex
	next  uint64
	subs  map[uint64]func(string)
}

func NewHolder() *Holder {
	return &Holder{subs: make(map[uint64]func(string))}
}

func (h *Holder) Current() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.current != ""
}

// Set changes the active customer. Subscribers run synchronously and only
// when the value actually changes.
func (h *Holder) Set(customerID string) {
	h.mu.Lock()
	if h.current == customerID {
		h.mu.Unlock()
		return
	}
	h.current = customerID
	h.mu.Unlock()

	h.subMu.Lock()
	fns := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()

	for _, fn := range fns {
		fn(customerID)
	}
}

// Subscribe registers fn and returns a func that removes it.
func (h *Holder) Subscribe(fn func(string)) func() {
	h.subMu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subs, id)
			h.subMu.Unlock()
		})
	}
}
