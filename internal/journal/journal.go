// Package journal records scheduling operations durably so that an
// interrupted completion or undo is visible after a restart.
//
// Each operation writes an intent entry before touching in-memory state and
// marks it committed afterwards. Entries are CBOR-encoded and stored in
// BadgerDB under keys derived from a BLAKE3 hash of the operation identity,
// so replaying the same operation cannot create a second entry.
package journal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/me/brigade/pkg/model"
)

// Op names an engine operation.
type Op string

const (
	OpComplete Op = "complete"
	OpUndo     Op = "undo"
	OpPurge    Op = "purge"
)

const keyPrefix = "journal/"

var (
	// ErrDuplicate is returned by Begin when the entry key already exists.
	ErrDuplicate = errors.New("journal entry already exists")

	// ErrNotFound is returned by Commit for an unknown key.
	ErrNotFound = errors.New("journal entry not found")
)

// Entry is one recorded operation.
type Entry struct {
	Key         string     `cbor:"key"`
	WorkspaceID string     `cbor:"workspace_id"`
	TaskID      string     `cbor:"task_id"`
	Op          Op         `cbor:"op"`
	Seq         uint64     `cbor:"seq"`
	At          time.Time  `cbor:"at"`
	Task        model.Task `cbor:"task"`
	Committed   bool       `cbor:"committed"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}
}

// Journal is a BadgerDB-backed operation log.
type Journal struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a journal in dir. An empty dir opens an
// in-memory journal, which is what tests use.
func Open(dir string, logger *slog.Logger) (*Journal, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve journal dir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(absPath)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{
		db:     db,
		logger: logger.With("component", "journal"),
	}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Key derives the storage key for an operation. The same (workspace, task,
// op, seq) always yields the same key.
func Key(workspaceID, taskID string, op Op, seq uint64) string {
	h := blake3.New()
	h.Write([]byte(workspaceID))
	h.Write([]byte{0})
	h.Write([]byte(taskID))
	h.Write([]byte{0})
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	sum := h.Sum(nil)
	return keyPrefix + workspaceID + "/" + hex.EncodeToString(sum[:16])
}

// Begin records the intent to perform entry and returns its key.
func (j *Journal) Begin(ctx context.Context, entry Entry) (string, error) {
	entry.Key = Key(entry.WorkspaceID, entry.TaskID, entry.Op, entry.Seq)
	entry.Committed = false
	data, err := encMode.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode journal entry: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(entry.Key)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(entry.Key), data)
	})
	if err != nil {
		return "", err
	}
	j.logger.Debug("journal begin", "key", entry.Key, "op", entry.Op, "task_id", entry.TaskID)
	return entry.Key, nil
}

// Commit marks the entry under key as applied.
func (j *Journal) Commit(ctx context.Context, key string) error {
	err := j.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, key)
		if err != nil {
			return err
		}
		entry.Committed = true
		data, err := encMode.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode journal entry: %w", err)
		}
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return err
	}
	j.logger.Debug("journal commit", "key", key)
	return nil
}

// Abort drops an intent whose operation was rolled back.
func (j *Journal) Abort(ctx context.Context, key string) error {
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Pending returns entries that were begun but never committed, across all
// workspaces. A non-empty result after a restart means an operation was
// interrupted.
func (j *Journal) Pending(ctx context.Context) ([]Entry, error) {
	return j.scan(keyPrefix, func(e Entry) bool { return !e.Committed })
}

func (j *Journal) scan(prefix string, keep func(Entry) bool) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e Entry
			if err := decMode.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode journal entry %s: %w", it.Item().Key(), err)
			}
			if keep(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out, nil
}

// Prune deletes committed entries recorded before cutoff and returns how
// many were removed. Uncommitted entries are always kept.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := j.scan(keyPrefix, func(e Entry) bool {
		return e.Committed && e.At.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range stale {
		if err := wb.Delete([]byte(e.Key)); err != nil {
			return 0, fmt.Errorf("prune %s: %w", e.Key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	j.logger.Debug("journal pruned", "entries", len(stale), "cutoff", cutoff)
	return len(stale), nil
}

// RunGC reclaims value-log space. Having nothing to collect is not an error.
func (j *Journal) RunGC() error {
	err := j.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func getEntry(txn *badger.Txn, key string) (*Entry, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := decMode.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode journal entry %s: %w", key, err)
	}
	return &entry, nil
}
