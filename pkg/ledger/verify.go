package ledger

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// VerifyResult contains the results of checking a folder against its ledger.
type VerifyResult struct {
	Valid        bool     // true if every record has its file and no tracked file lacks a record
	Records      int      // number of records in the ledger
	FirstSerial  uint64   // lowest recorded serial, 0 if empty
	LastSerial   uint64   // highest recorded serial, 0 if empty
	MissingFiles []string // files named by a record but absent from the folder
	Untracked    []string // files matching the prefix with no record
	SerialGaps   []SerialRange // serials skipped between consecutive records
	Errors       []string      // detailed messages
}

// SerialRange is an inclusive run of serials.
type SerialRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Len returns how many serials the range holds.
func (r SerialRange) Len() uint64 { return r.To - r.From + 1 }

func (r SerialRange) String() string {
	if r.From == r.To {
		return strconv.FormatUint(r.From, 10)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// VerifyOptions narrows the untracked-file scan.
type VerifyOptions struct {
	// FilePrefix limits the untracked scan to files starting with it.
	// Empty means every top-level, non-hidden file is considered.
	FilePrefix string
}

// Verify checks that every record's file exists in bucket and that no
// tracked-looking file exists without a record. It reads only attributes and
// listings, never file contents.
//
// Serial gaps are reported but do not make the folder invalid; a serial may be
// skipped when a ledger append fails after the file was written.
//
// Returns an error if:
//   - The ledger cannot be read
//   - The bucket cannot be listed or an attribute lookup fails for a reason
//     other than the object missing
func Verify(ctx context.Context, bucket *blob.Bucket, log Log, opts VerifyOptions) (*VerifyResult, error) {
	records, err := log.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: verify: %w", err)
	}

	result := &VerifyResult{
		Valid:   true,
		Records: len(records),
		Errors:  make([]string, 0),
	}

	known := make(map[string]bool, len(records))
	for i, rec := range records {
		known[rec.FileName] = true

		if i == 0 {
			result.FirstSerial = rec.Serial
		} else {
			if prev := records[i-1].Serial; rec.Serial > prev+1 {
				result.SerialGaps = append(result.SerialGaps, SerialRange{From: prev + 1, To: rec.Serial - 1})
			}
		}
		result.LastSerial = rec.Serial

		ok, err := bucket.Exists(ctx, rec.FileName)
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return nil, fmt.Errorf("ledger: verify serial %d: %w", rec.Serial, err)
		}
		if !ok {
			result.Valid = false
			result.MissingFiles = append(result.MissingFiles, rec.FileName)
			result.Errors = append(result.Errors,
				fmt.Sprintf("serial %d missing file: %s", rec.Serial, rec.FileName))
		}
	}

	iter := bucket.List(&blob.ListOptions{Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger: list folder: %w", err)
		}
		if obj.IsDir || strings.HasPrefix(obj.Key, ".") || IsLedgerFile(obj.Key) {
			continue
		}
		if !strings.HasPrefix(obj.Key, opts.FilePrefix) || known[obj.Key] {
			continue
		}
		result.Valid = false
		result.Untracked = append(result.Untracked, obj.Key)
		result.Errors = append(result.Errors, fmt.Sprintf("untracked file: %s", obj.Key))
	}
	sort.Strings(result.Untracked)

	return result, nil
}
