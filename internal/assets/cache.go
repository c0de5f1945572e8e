package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle stage of a cached asset.
type State int

const (
	Loading State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Ref names an asset and where to fetch it from.
type Ref struct {
	Key     string `json:"key"`
	Locator string `json:"locator"`
}

// Asset is a decoded raster shared read-only by every frame that draws it.
type Asset struct {
	Key     string
	Locator string
	State   State
	Image   image.Image
	Err     error
}

// Width returns the intrinsic pixel width, or 0 when not Ready.
func (a *Asset) Width() int {
	if a == nil || a.Image == nil {
		return 0
	}
	return a.Image.Bounds().Dx()
}

// Height returns the intrinsic pixel height, or 0 when not Ready.
func (a *Asset) Height() int {
	if a == nil || a.Image == nil {
		return 0
	}
	return a.Image.Bounds().Dy()
}

// Cache loads and memoizes filter art for the lifetime of the process.
//
// Loads of the same key share one in-flight fetch. Ready and Failed assets
// are never evicted, and a failed key is never refetched. Get, AspectRatio
// and Image never block on I/O.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	mu     sync.RWMutex
	assets map[string]*Asset

	group singleflight.Group
	open  Opener
	log   logrus.FieldLogger
}

// NewCache creates an empty cache that fetches through open. A nil open uses
// DefaultOpener.
func NewCache(open Opener, log logrus.FieldLogger) *Cache {
	if open == nil {
		open = DefaultOpener()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		assets: make(map[string]*Asset),
		open:   open,
		log:    log,
	}
}

// Load returns the asset for key, fetching and decoding it from locator on
// first use. Concurrent calls for the same key trigger exactly one fetch.
//
// A failed load is cached: the failure is logged once and every later call
// returns the same error. The returned Asset is never nil.
func (c *Cache) Load(ctx context.Context, key, locator string) (*Asset, error) {
	if a, ok := c.lookup(key); ok && a.State != Loading {
		return a, a.Err
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have settled the key between lookup and DoChan.
		if a, ok := c.lookup(key); ok && a.State != Loading {
			return a, a.Err
		}
		c.store(&Asset{Key: key, Locator: locator, State: Loading})

		// The shared fetch outlives any single caller.
		img, err := c.fetch(context.WithoutCancel(ctx), locator)
		if err != nil {
			a := &Asset{Key: key, Locator: locator, State: Failed, Err: err}
			c.store(a)
			c.log.WithFields(logrus.Fields{
				"asset":   key,
				"locator": locator,
				"error":   err.Error(),
			}).Warn("asset load failed, filter falls back to its glyph")
			return a, err
		}

		a := &Asset{Key: key, Locator: locator, State: Ready, Image: img}
		c.store(a)
		c.log.WithFields(logrus.Fields{
			"asset":  key,
			"width":  a.Width(),
			"height": a.Height(),
		}).Debug("asset ready")
		return a, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Asset), res.Err
	case <-ctx.Done():
		return &Asset{Key: key, Locator: locator, State: Loading}, ctx.Err()
	}
}

// Prefetch starts loading every ref in the background. The returned channel
// is closed once all loads have settled, successfully or not.
func (c *Cache) Prefetch(ctx context.Context, refs []Ref) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref Ref) {
			defer wg.Done()
			// Failures are recorded on the asset and logged by Load.
			_, _ = c.Load(ctx, ref.Key, ref.Locator)
		}(ref)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Get returns the asset for key only if it is Ready.
func (c *Cache) Get(key string) (*Asset, bool) {
	a, ok := c.lookup(key)
	if !ok || a.State != Ready {
		return nil, false
	}
	return a, true
}

// StateOf reports the lifecycle state of key. ok is false for keys never
// requested.
func (c *Cache) StateOf(key string) (State, bool) {
	a, ok := c.lookup(key)
	if !ok {
		return Loading, false
	}
	return a.State, true
}

// AspectRatio returns width/height of a Ready asset.
func (c *Cache) AspectRatio(key string) (float64, bool) {
	a, ok := c.Get(key)
	if !ok || a.Height() == 0 {
		return 0, false
	}
	return float64(a.Width()) / float64(a.Height()), true
}

// Image returns the decoded pixels of a Ready asset.
func (c *Cache) Image(key string) (image.Image, bool) {
	a, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	return a.Image, true
}

func (c *Cache) lookup(key string) (*Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assets[key]
	return a, ok
}

func (c *Cache) store(a *Asset) {
	c.mu.Lock()
	c.assets[a.Key] = a
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context, locator string) (image.Image, error) {
	rc, err := c.open(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("failed to decode asset: truncated data: %w", err)
		}
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("failed to decode asset: empty image")
	}
	return img, nil
}
