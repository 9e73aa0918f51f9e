// Package ledger implements the provenance log of an image folder.
//
// Every image committed into a folder gets a Record: its serial number, the
// URL it came from, the file name it was stored under, and metadata from the
// photo resolver. The ordered records are the folder's durable history; the
// next session starts numbering at the last serial plus one.
//
// # Backends
//
// Three interchangeable Log implementations are provided:
//
//   - JSON: one JSON array object (image_log.json) in a gocloud bucket. Works
//     for local folders and remote buckets alike. This is the default.
//   - Bolt: a bbolt file (image_log.db) keyed by big-endian serial.
//   - SQLite: a table in image_log.sqlite, opened through modernc.org/sqlite.
//
// Bolt and SQLite need a local directory.
//
// # Invariants
//
// Records are never rewritten or reordered. Append rejects any serial not
// greater than the current tail with ErrNotMonotonic, so a ledger is always
// strictly increasing. Serials may have gaps.
//
// # Usage
//
//	log, err := ledger.Open(ctx, ledger.JSON, bucket, "")
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	next, err := ledger.NextSerial(ctx, log)
//	// write image_<next>.jpg, then:
//	err = log.Append(ctx, ledger.Record{Serial: next, URL: url, FileName: name})
//
// # Verification
//
// Verify cross-checks a folder listing against the ledger and reports
// records without files and files without records.
package ledger
