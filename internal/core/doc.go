// Package core holds the inventory domain logic for the pharmacy backend.
//
// Nothing here knows about HTTP or SQL. Persistence goes through the [Store]
// interface; the web layer and the import parser sit on top of [Service].
//
// # Status
//
// An item's stock status is never set by callers. [DeriveStatus] computes it
// from the stock count and the item's low-stock threshold on every write.
//
// # Writes and history
//
// Every create, update, delete, threshold change and sale line runs inside
// [Store.RunInTx] together with its [HistoryEntry], so an item change and its
// audit record are committed or discarded as one. History is append-only and
// survives deletion of the item it describes.
//
// # Import
//
// [Service.ImportBatch] applies rows one at a time. A row that fails
// coercion, validation or storage is reported in [ImportResult.Errors] and
// the remaining rows still run. Rows are not rolled back when a later row
// fails.
//
// # Error Handling
//
// Operations return *ValidationError, *NotFoundError or *StorageError.
// [MapError] turns any error into a coded [UserMessage] for display.
package core
