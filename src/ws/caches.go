package ws

import (
	"sync"

	"interview-copilot-service/src/ai"
)

// maxScreenshots caps the buffered screenshots retained per session.
const maxScreenshots = 6

// ScreenshotCache holds the last few uploaded screenshots per session. It is
// process-local and intentionally lost on restart; clients rebuild it by
// uploading again.
type ScreenshotCache struct {
	mu     sync.Mutex
	images map[string][]string
}

func NewScreenshotCache() *ScreenshotCache {
	return &ScreenshotCache{images: make(map[string][]string)}
}

// Add appends an image for the session, evicting the oldest beyond the cap,
// and returns the current list.
func (c *ScreenshotCache) Add(sessionID, image string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := append(c.images[sessionID], image)
	if len(next) > maxScreenshots {
		next = next[len(next)-maxScreenshots:]
	}
	c.images[sessionID] = next
	return append([]string(nil), next...)
}

// Get returns the buffered screenshots for the session.
func (c *ScreenshotCache) Get(sessionID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.images[sessionID]...)
}

// Clear drops all screenshots for the session.
func (c *ScreenshotCache) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.images, sessionID)
}

// PendingCodeRequest is a queued CODE completion waiting for screenshots.
type PendingCodeRequest struct {
	Provider string
	Messages []ai.Message
}

// PendingCodeCache holds at most one pending CODE request per session.
type PendingCodeCache struct {
	mu      sync.Mutex
	pending map[string]PendingCodeRequest
}

func NewPendingCodeCache() *PendingCodeCache {
	return &PendingCodeCache{pending: make(map[string]PendingCodeRequest)}
}

// Set stores or replaces the pending request for the session.
func (c *PendingCodeCache) Set(sessionID string, req PendingCodeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[sessionID] = req
}

// Take removes and returns the pending request, if any.
func (c *PendingCodeCache) Take(sessionID string) (PendingCodeRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[sessionID]
	if ok {
		delete(c.pending, sessionID)
	}
	return req, ok
}

// Peek returns the pending request without removing it.
func (c *PendingCodeCache) Peek(sessionID string) (PendingCodeRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[sessionID]
	return req, ok
}

// Clear drops the pending request for the session.
func (c *PendingCodeCache) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, sessionID)
}
