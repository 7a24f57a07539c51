package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/repository"
)

const testPrefix = "test_"

// Ledger stores each partition as a file of newline-delimited JSON objects.
type Ledger struct {
	dir    string
	prefix string

	mu    sync.Mutex
	locks map[repository.Partition]*sync.Mutex
}

// Open prepares a ledger rooted at dir, creating the directory if needed.
// In test mode every partition file name carries the "test_" prefix.
func Open(dir string, testMode bool) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	l := &Ledger{
		dir:   dir,
		locks: make(map[repository.Partition]*sync.Mutex),
	}
	if testMode {
		l.prefix = testPrefix
	}
	return l, nil
}

// Path returns the file backing a partition.
func (l *Ledger) Path(partition repository.Partition) string {
	return filepath.Join(l.dir, l.prefix+string(partition)+".json")
}

func (l *Ledger) ReadAll(_ context.Context, partition repository.Partition) iter.Seq2[json.RawMessage, error] {
	path := l.Path(partition)
	return func(yield func(json.RawMessage, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			yield(nil, &domain.StorageError{Op: "read " + string(partition), Err: err})
			return
		}
		defer f.Close()

		reader := bufio.NewReader(f)
		for {
			line, readErr := reader.ReadBytes('\n')
			line = bytes.TrimSpace(line)
			if len(line) > 0 && json.Valid(line) {
				if !yield(json.RawMessage(line), nil) {
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(nil, &domain.StorageError{Op: "read " + string(partition), Err: readErr})
				return
			}
		}
	}
}

func (l *Ledger) Append(_ context.Context, partition repository.Partition, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')

	lock := l.partitionLock(partition)
	lock.Lock()
	defer lock.Unlock()

	op := "append " + string(partition)
	f, err := os.OpenFile(l.Path(partition), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return &domain.StorageError{Op: op, Err: err}
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return &domain.StorageError{Op: op, Err: fmt.Errorf("lock: %w", err)}
	}

	writeErr := writeLine(f, data)
	unlockErr := unlockFile(f)
	closeErr := f.Close()
	switch {
	case writeErr != nil:
		return &domain.StorageError{Op: op, Err: writeErr}
	case unlockErr != nil:
		return &domain.StorageError{Op: op, Err: fmt.Errorf("unlock: %w", unlockErr)}
	case closeErr != nil:
		return &domain.StorageError{Op: op, Err: closeErr}
	}
	return nil
}

func (l *Ledger) Close() error { return nil }

// writeLine appends data as a single write. A torn last line left by an
// earlier crash is terminated first so the new record stays parseable.
func writeLine(f *os.File, data []byte) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return fmt.Errorf("read tail: %w", err)
		}
		if last[0] != '\n' {
			data = append([]byte{'\n'}, data...)
		}
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (l *Ledger) partitionLock(partition repository.Partition) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[partition]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[partition] = lock
	}
	return lock
}

var _ repository.Ledger = (*Ledger)(nil)
