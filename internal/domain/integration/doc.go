// Package integration contains the marketplace integration bounded context.
//
// Key concepts:
//   - PlatformAdapter: port implemented once per marketplace (fetch snapshots, push changes)
//   - PlatformSnapshot: one product as a marketplace currently reports it
//   - CanonicalProduct: the merged view of a product with one SourceRecord per marketplace
//   - SyncTask: a queued, retryable push of canonical state to one marketplace
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
