// Package content defines the content item model shared by the store,
// the scheduler and the transports.
//
// An Item is created outside threadpost in status "scheduled". A run only
// ever reads scheduled items and writes one terminal Outcome per item:
// posted (with the external id the platform assigned) or failed (with a
// diagnostic note). Items are never deleted.
//
// Optional fields (ScheduledAt, ParentID, ThreadPosition) are pointers:
// nil means "absent", and the accessor methods apply the defaults.
package content
