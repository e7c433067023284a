// Package transport implements the publish transports used by the
// scheduler: the X API v2 client and a dry-run transport that only logs.
//
// Each Submit call is a single attempt bounded by a timeout. Transports never
// retry; a failed or timed out call is reported to the scheduler, which marks
// the item failed.
package transport
