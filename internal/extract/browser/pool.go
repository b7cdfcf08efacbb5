// Package browser wraps go-rod to provide a small pool of headless Chrome
// instances, reused across the URL resolver's browser fallback and the
// extractor's JS-render fallback so neither pays a fresh launch per call.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// Pool manages a fixed number of reusable browser instances.
type Pool struct {
	browsers  []*rod.Browser
	mu        sync.Mutex
	size      int
	launcher  *launcher.Launcher
	logger    *logger.Logger
	launchURL string
	closed    bool
}

// NewPool launches one headless Chrome process with flags matching the
// batch-extraction spec (--no-sandbox --disable-dev-shm-usage --disable-gpu)
// and connects size incognito browser contexts to it. Acquire hands out
// whichever context is free, oldest-released first.
func NewPool(size int, log *logger.Logger) (*Pool, error) {
	poolLogger := log.WithComponent("browser-pool")
	poolLogger.Infof("initializing browser pool with %d instances", size)

	l := launcher.New().
		Headless(true).
		Leakless(true).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("window-size", "1920,1080")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	pool := &Pool{
		browsers:  make([]*rod.Browser, 0, size),
		size:      size,
		launcher:  l,
		launchURL: url,
		logger:    poolLogger,
	}

	for i := 0; i < size; i++ {
		b := rod.New().ControlURL(url).MustConnect().NoDefaultDevice().MustIncognito()
		pool.browsers = append(pool.browsers, b)
	}

	poolLogger.Infof("browser pool ready: %d instances available", size)
	return pool, nil
}

// Acquire blocks until a browser is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				return nil, fmt.Errorf("browser pool is closed")
			}
			if len(p.browsers) > 0 {
				b := p.browsers[0]
				p.browsers = p.browsers[1:]
				p.mu.Unlock()
				return b, nil
			}
			p.mu.Unlock()
		}
	}
}

// Release returns a browser to the pool, or closes it if the pool is shut
// down in the meantime.
func (p *Pool) Release(b *rod.Browser) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		b.MustClose()
		return
	}
	p.browsers = append(p.browsers, b)
}

// Close shuts down every browser instance and the underlying launcher.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, b := range p.browsers {
		b.MustClose()
	}
	p.launcher.Cleanup()
}

// Stats reports point-in-time pool occupancy.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"pool_size": p.size,
		"available": len(p.browsers),
		"in_use":    p.size - len(p.browsers),
		"closed":    p.closed,
	}
}
