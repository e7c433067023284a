// Package scheduler selects due content items, orders them so thread
// parents go before replies, resolves each reply's parent external id and
// drives every item through the publish transport at most once per run.
//
// ARCHITECTURE:
//
// One pass, one goroutine. Items are processed strictly in the order
// returned by Order; a reply must observe its parent's freshly assigned
// external id, so there is no intra-run parallelism.
//
// Ordering:
// Order sorts by (hasParent, threadPosition). Every thread root sorts before
// every reply. The sort is one level deep; a reply whose parent is itself an
// unposted reply is deferred and picked up by a later run.
//
// Parent resolution:
//  1. parent published earlier in this run: use the id from the run map
//  2. otherwise ask the repository; a posted parent supplies its external id
//  3. otherwise defer: the item stays scheduled and is re-evaluated next run
//
// State:
// The only state is the per-run map of item id to external id, discarded
// when Run returns. Everything else is re-derived from the repository, so
// repeated and overlapping runs are safe as long as the repository's
// write-back only ever moves an item out of "scheduled" once.
package scheduler
