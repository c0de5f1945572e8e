// Package session runs the live capture: camera stream in, composited frames
// out.
//
// # Lifecycle
//
//	Idle ──Start──▶ Starting ──granted──▶ Running ──Stop──▶ Stopping ──▶ Idle
//	                   │ camera refused ──▶ Idle (message set, retryable)
//	                   └ detector down ───▶ Failed (terminal)
//
// Start checks the detector before asking for the camera so a session that
// can never draw a filter does not hold the device. Stop cancels the pending
// cycle, stops every media track and waits for the loop goroutine to exit,
// so when it returns no cycle is pending and no track is live.
//
// # Loop
//
// The loop is a single goroutine. Each refresh tick it checks for a new
// decoded frame (skipping otherwise), runs the detector, resolves the active
// filter's placement for the first face and composites. A stop check follows
// the detector call so an in-flight result is dropped rather than drawn after
// Stop. The active filter is an atomic pointer read once per draw; switching
// it never restarts the loop.
//
// Export and Snapshot copy the surface under the same lock the loop draws
// with, so they always see a whole frame.
package session
