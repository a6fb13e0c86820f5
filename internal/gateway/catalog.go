package gateway

import (
	"sort"
	"sync"
)

// Catalog maps video ids to their bitrate ladders. It is filled at startup and
// read by every request afterwards; the lock keeps late writes safe.
type Catalog struct {
	mu     sync.RWMutex
	videos map[VideoID]Video
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{videos: make(map[VideoID]Video)}
}

// AddVideo inserts or replaces the ladder for id. The last write wins.
func (c *Catalog) AddVideo(id VideoID, bitrates []int) {
	v := Video{ID: id, Bitrates: bitrates}.clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.videos[id] = v
}

// FindVideo returns a copy of the entry for id, or ErrVideoNotFound.
func (c *Catalog) FindVideo(id VideoID) (Video, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.videos[id]
	if !ok {
		return Video{}, ErrVideoNotFound
	}
	return v.clone(), nil
}

// Len returns the number of videos in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.videos)
}

// IDs returns every video id in ascending order.
func (c *Catalog) IDs() []VideoID {
	c.mu.RLock()
	ids := make([]VideoID, 0, len(c.videos))
	for id := range c.videos {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
