// Package assets loads and memoizes the raster art drawn by overlay filters.
//
// The render loop must never wait on I/O, so art is fetched ahead of time with
// Load or Prefetch and read back inside the frame path with the non-blocking
// Get, AspectRatio and Image lookups. A lookup for an asset that is still
// loading, or that failed, simply misses; callers fall back to drawing the
// filter's glyph.
//
// # Locators
//
// Assets are addressed by a key (the filter ID) and a locator:
//   - http:// and https:// URLs are fetched with a 30 second timeout
//   - file:// URIs and plain paths are read from the local filesystem
//
// PNG, JPEG, GIF and WebP are decoded; EXIF orientation is applied.
//
// # Lifetime
//
// Every asset is cached until the process exits. There is no eviction: the
// catalog is small and fixed.
package assets
