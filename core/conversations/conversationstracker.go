package conversations

import (
	"fmt"
	"sync"
	"time"

	"github.com/mudler/xlog"
)

type TrackerKey interface{ ~int | ~int64 | ~string }

// ConversationTracker keeps one value per key and forgets keys that have not
// been touched for longer than the idle duration. A non-positive duration
// keeps values until they are deleted.
type ConversationTracker[K TrackerKey, V any] struct {
	convMutex       sync.Mutex
	values          map[K]V
	lastMessageTime map[K]time.Time
	idle            time.Duration
	now             func() time.Time
}

func NewConversationTracker[K TrackerKey, V any](idle time.Duration, now func() time.Time) *ConversationTracker[K, V] {
	if now == nil {
		now = time.Now
	}
	return &ConversationTracker[K, V]{
		idle:            idle,
		now:             now,
		values:          map[K]V{},
		lastMessageTime: map[K]time.Time{},
	}
}

// Get returns the value stored for key, unless it expired.
func (c *ConversationTracker[K, V]) Get(key K) (V, bool) {
	c.convMutex.Lock()
	defer c.convMutex.Unlock()

	c.cleanup()

	v, ok := c.values[key]
	if !ok {
		xlog.Debug("No conversation state for", "key", fmt.Sprintf("%v", key))
	}
	return v, ok
}

// Set stores the value for key and refreshes its idle timer.
func (c *ConversationTracker[K, V]) Set(key K, value V) {
	c.convMutex.Lock()
	defer c.convMutex.Unlock()

	c.values[key] = value
	c.lastMessageTime[key] = c.now()
}

func (c *ConversationTracker[K, V]) Delete(key K) {
	c.convMutex.Lock()
	defer c.convMutex.Unlock()

	delete(c.values, key)
	delete(c.lastMessageTime, key)
}

func (c *ConversationTracker[K, V]) Len() int {
	c.convMutex.Lock()
	defer c.convMutex.Unlock()

	c.cleanup()
	return len(c.values)
}

// cleanup must be called with convMutex held.
func (c *ConversationTracker[K, V]) cleanup() {
	if c.idle <= 0 {
		return
	}
	now := c.now()
	for k := range c.values {
		last, exists := c.lastMessageTime[k]
		if !exists || last.Add(c.idle).Before(now) {
			xlog.Debug("Cleaning up conversation for", "key", fmt.Sprintf("%v", k))
			delete(c.values, k)
			delete(c.lastMessageTime, k)
		}
	}
}
