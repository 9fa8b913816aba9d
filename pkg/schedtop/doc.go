// Package schedtop implements the periodic task-scheduling snapshot
// sampler behind cmd/schedtop.
//
// A Sampler owns all state: the online CPU mask (fixed at startup), the
// snapshot Cache of last-known per-task attributes, the Renderer and the
// pass-runtime histogram. Each pass enumerates the live task set, reads
// attributes for tasks that are new or whose age counter wrapped at the
// refresh bound, and renders one fixed-width row per such task. Tasks that
// stop being enumerated fall out of the cache on the next pass.
//
// The loop is single-threaded and synchronous: every kernel read is a short
// open/read/close, a failed open is a skip, and the only timing control is
// the delay compensation between passes. If the proc filesystem itself
// blocks, the sampler blocks with it.
//
// Error scope:
//   - fatal (abort the run): unreadable proc root listing, CPU count or
//     uptime.
//   - recoverable (skip the task this pass): any per-task record
//     unreadable because the task exited mid-read.
//   - degraded (field defaults): individual missing records or fields for
//     an otherwise-readable task.
package schedtop
