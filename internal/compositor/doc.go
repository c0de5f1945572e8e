// Package compositor draws video frames and filter overlays onto a Surface.
//
// Each Draw first copies the frame into the surface at its native resolution,
// then, for a visible placement, composites the filter art: the filter's
// raster asset when the asset cache has it Ready, or the filter's glyph
// otherwise. The overlay is translated to the placement center, rotated by the
// placement angle and scaled to the placement size. Glyphs are sized to
// min(width, height) × 0.9 and get a soft drop shadow.
//
// # Coordinate System
//
// Surface coordinates equal video-frame pixels: (0,0) is the top-left corner,
// X increases rightward, Y increases downward, and positive rotation turns
// clockwise on screen.
//
// # Determinism
//
// Draw keeps no state between calls beyond the immutable glyph font, and the
// frame blit overwrites every surface pixel, so calling Draw repeatedly with
// the same inputs yields identical pixels.
//
// # Encoding
//
// Snapshot and EncodePNG serialize a copy of the surface for previews and
// exports. Take the copy with Surface.Clone while holding whatever lock
// serializes draws, then encode outside it.
package compositor
