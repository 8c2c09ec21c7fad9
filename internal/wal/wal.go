// Package wal implements the write-ahead log that lets twotier accept
// writes durably while L2 is unreachable. Each record is framed as
//
//	[4-byte big-endian length][json payload][4-byte big-endian CRC32 of payload]
//
// A short read or a CRC mismatch on the final record means the previous
// process crashed mid-write; that tail is discarded, never replayed, and
// never treated as fatal — everything before it is still valid.
package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/logging"
	"github.com/kirky-x/twotier/internal/metrics"
)

const defaultChunkSize = 100

// WAL is a single service's append-only log, backed by one file. All
// mutating operations (Append, ReplayInto, Clear) are serialized by one
// mutex: per-chunk locking during replay would let appends interleave
// between chunks, but a single coarse critical section for the whole
// replay is simpler to reason about and still correct — appends during a
// multi-chunk replay simply wait for the whole replay to finish.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	service string
	logger  logging.Logger
	metrics metrics.Hooks
}

// Open opens or creates the WAL file at path.
func Open(path, service string, logger logging.Logger, m metrics.Hooks) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, cerror.Wrap(cerror.ErrWALIO, "wal: open", err)
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &WAL{file: f, path: path, service: service, logger: logger, metrics: m}, nil
}

// Append synchronously writes rec, fsyncing before returning so the entry
// survives a crash immediately after Append returns.
func (w *WAL) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(rec)
}

func (w *WAL) appendLocked(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return cerror.Wrap(cerror.ErrSerialize, "wal: encode record", err)
	}
	if err := writeFrame(w.file, payload); err != nil {
		return cerror.Wrap(cerror.ErrWALIO, "wal: append", err)
	}
	if err := w.file.Sync(); err != nil {
		return cerror.Wrap(cerror.ErrWALIO, "wal: fsync", err)
	}
	w.metrics.WALAppend(w.service)
	return nil
}

func writeFrame(f *os.File, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := f.Write(header[:]); err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		return err
	}
	var checksum [4]byte
	binary.BigEndian.PutUint32(checksum[:], crc32.ChecksumIEEE(payload))
	_, err := f.Write(checksum[:])
	return err
}

// readAllLocked scans the file from the start and returns every
// well-framed record. A truncated or checksum-mismatched final record is
// discarded silently (logged at Warn) rather than treated as fatal — this
// is the expected shape of a crash mid-append.
func (w *WAL) readAllLocked() ([]Record, error) {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, cerror.Wrap(cerror.ErrWALIO, "wal: seek", err)
	}
	r := bufio.NewReader(w.file)

	var records []Record
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			w.logger.Warn("wal: truncated length header, discarding tail", "service", w.service)
			break
		}
		length := binary.BigEndian.Uint32(header[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			w.logger.Warn("wal: truncated payload, discarding tail", "service", w.service)
			break
		}
		var checksum [4]byte
		if _, err := io.ReadFull(r, checksum[:]); err != nil {
			w.logger.Warn("wal: truncated checksum, discarding tail", "service", w.service)
			break
		}
		if binary.BigEndian.Uint32(checksum[:]) != crc32.ChecksumIEEE(payload) {
			w.logger.Warn("wal: checksum mismatch, discarding tail", "service", w.service)
			break
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			w.logger.Warn("wal: undecodable record, discarding tail", "service", w.service, "error", err.Error())
			break
		}
		records = append(records, rec)
	}
	return records, nil
}

// Len reports the number of well-framed records currently persisted.
func (w *WAL) Len() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	records, err := w.readAllLocked()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Empty reports whether the WAL currently holds no records — the
// precondition health.Monitor checks before promoting Recovering to
// Healthy. Any read error is treated as "not empty" (conservative: refuse
// to declare healthy if we can't even confirm the WAL is drained).
func (w *WAL) Empty() bool {
	n, err := w.Len()
	return err == nil && n == 0
}

// Clear truncates the WAL, dropping every record. (ReplayInto truncates
// on its own after a fully successful replay.)
func (w *WAL) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clearLocked()
}

func (w *WAL) clearLocked() error {
	if err := w.file.Truncate(0); err != nil {
		return cerror.Wrap(cerror.ErrWALIO, "wal: truncate", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return cerror.Wrap(cerror.ErrWALIO, "wal: seek", err)
	}
	return nil
}

// rewriteLocked replaces the file's contents with records, used when a
// replay chunk fails partway through and the unreplayed tail must be kept.
func (w *WAL) rewriteLocked(records []Record) error {
	if err := w.clearLocked(); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.appendLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// coalesce keeps, for each key, only the last record written for it,
// preserving the order of each key's first appearance, so a replay never
// applies a stale write after a newer one for the same key.
func coalesce(records []Record) []Record {
	order := make([]string, 0, len(records))
	last := make(map[string]Record, len(records))
	for _, rec := range records {
		if _, seen := last[rec.Key]; !seen {
			order = append(order, rec.Key)
		}
		last[rec.Key] = rec
	}
	out := make([]Record, len(order))
	for i, key := range order {
		out[i] = last[key]
	}
	return out
}

func toChunks(records []Record, chunkSize int) [][]Record {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	var chunks [][]Record
	for i := 0; i < len(records); i += chunkSize {
		end := i + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[i:end])
	}
	return chunks
}

func toPipelineOps(records []Record) []l2.PipelineOp {
	ops := make([]l2.PipelineOp, len(records))
	for i, rec := range records {
		switch rec.Op {
		case OpSet:
			ops[i] = l2.PipelineOp{Key: rec.Key, Value: rec.Value, TTL: rec.TTL, Op: l2.OpSet}
		case OpDelete:
			ops[i] = l2.PipelineOp{Key: rec.Key, Op: l2.OpDelete}
		}
	}
	return ops
}

// ReplayInto drains the WAL into backend in order-preserving chunks of
// chunkSize (default 100 if <=0), returning the count of entries
// successfully replayed. On a chunk failure, already-replayed earlier
// chunks are dropped from the log; the failed chunk and everything after
// it remain, untouched, for a future replay attempt.
func (w *WAL) ReplayInto(ctx context.Context, backend l2.Backend, chunkSize int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.readAllLocked()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	coalesced := coalesce(records)
	chunks := toChunks(coalesced, chunkSize)

	replayed := 0
	for i, chunk := range chunks {
		ops := toPipelineOps(chunk)
		errs, err := backend.Pipeline(ctx, ops)
		if err != nil {
			return replayed, w.failReplay(chunks[i:], err)
		}
		if failed := firstNonNil(errs); failed != nil {
			return replayed, w.failReplay(chunks[i:], failed)
		}
		replayed += len(chunk)
	}

	if err := w.clearLocked(); err != nil {
		return replayed, err
	}
	w.metrics.WALReplay(w.service, replayed)
	return replayed, nil
}

func (w *WAL) failReplay(remainingChunks [][]Record, cause error) error {
	var remaining []Record
	for _, c := range remainingChunks {
		remaining = append(remaining, c...)
	}
	if err := w.rewriteLocked(remaining); err != nil {
		return err
	}
	// A replay abort is a BackendError, not local IO trouble — the WAL
	// file itself is fine, L2 rejected the chunk.
	return cerror.Wrap(cerror.ErrBackendUnavailable, "wal: replay chunk failed", cause)
}

func firstNonNil(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
