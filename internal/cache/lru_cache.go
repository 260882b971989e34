package cache

import (
	"container/list"
	"sync"
)

// entry represents a key-value pair in the cache
type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRUCache is a Least Recently Used cache safe for concurrent use. A cache
// with maxSize <= 0 stores nothing.
type LRUCache[K comparable, V any] struct {
	mu         sync.Mutex
	maxSize    int
	cache      map[K]*list.Element
	doubleList *list.List
	hits       uint64
	misses     uint64
}

// NewLRUCache creates a new LRU cache with the given maximum size
func NewLRUCache[K comparable, V any](maxSize int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		maxSize:    maxSize,
		cache:      make(map[K]*list.Element),
		doubleList: list.New(),
	}
}

// Set adds or updates a key-value pair in the cache
func (l *LRUCache[K, V]) Set(key K, value V) {
	if l.maxSize <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if element, exists := l.cache[key]; exists {
		l.doubleList.MoveToFront(element)
		element.Value.(*entry[K, V]).value = value
		return
	}

	ele := l.doubleList.PushFront(&entry[K, V]{key: key, value: value})
	l.cache[key] = ele

	if l.doubleList.Len() > l.maxSize {
		if oldest := l.doubleList.Back(); oldest != nil {
			l.removeElement(oldest)
		}
	}
}

// Get retrieves a value from the cache by key
func (l *LRUCache[K, V]) Get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	element, exists := l.cache[key]
	if !exists {
		l.misses++
		var zero V
		return zero, false
	}
	l.hits++
	l.doubleList.MoveToFront(element)
	return element.Value.(*entry[K, V]).value, true
}

// Len returns the number of cached entries.
func (l *LRUCache[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doubleList.Len()
}

// Stats returns the hit and miss counters.
func (l *LRUCache[K, V]) Stats() (hits, misses uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits, l.misses
}

// Purge drops every entry.
func (l *LRUCache[K, V]) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[K]*list.Element)
	l.doubleList.Init()
}

// removeElement removes an element from the cache
func (l *LRUCache[K, V]) removeElement(element *list.Element) {
	l.doubleList.Remove(element)
	delete(l.cache, element.Value.(*entry[K, V]).key)
}
