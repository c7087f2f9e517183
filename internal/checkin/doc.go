// Package checkin implements the core of the offline-first check-in
// engine: scan admission, the deduplication gate, the sync worker, and
// conflict resolution against the remote attendance store.
//
// The pipeline is deliberately asymmetric. Admission (Ingestor.Submit) is
// local-only and fast; it validates the scanned code and appends a Pending
// record to the durable queue. Draining (Worker) is the only path that
// performs network I/O: it reserves each record's (event, attendee) key in
// the DedupIndex, attempts a conditional write with expected revision
// zero, and hands the outcome to the Resolver. First write wins; a losing
// record is Rejected as a duplicate, never retried.
//
// Crash safety comes from ordering, not coordination: the durable queue is
// written before any remote call, terminal statuses are written only after
// the remote outcome is known, and ambiguous outcomes are settled by
// reading the remote record back before retrying.
package checkin
