package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/repository"
)

const createLedgerTable = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	partition TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_entries_partition ON ledger_entries (partition, id);
`

// Ledger keeps every partition as rows of one append-only table.
type Ledger struct {
	db     *sql.DB
	prefix string
}

// NewLedger wraps db. In test mode partition names carry the "test_" prefix
// so test data never mixes with real records.
func NewLedger(db *sql.DB, testMode bool) *Ledger {
	l := &Ledger{db: db}
	if testMode {
		l.prefix = "test_"
	}
	return l
}

func (l *Ledger) Init(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createLedgerTable); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// ReadAll holds the only connection while ranging, so callers must finish
// (or break) the range before appending.
func (l *Ledger) ReadAll(ctx context.Context, partition repository.Partition) iter.Seq2[json.RawMessage, error] {
	name := l.prefix + string(partition)
	return func(yield func(json.RawMessage, error) bool) {
		rows, err := l.db.QueryContext(ctx, `
SELECT payload
FROM ledger_entries
WHERE partition = ?
ORDER BY id`,
			name,
		)
		if err != nil {
			yield(nil, &domain.StorageError{Op: "read " + string(partition), Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				yield(nil, &domain.StorageError{Op: "scan " + string(partition), Err: err})
				return
			}
			if !json.Valid([]byte(payload)) {
				continue
			}
			if !yield(json.RawMessage(payload), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, &domain.StorageError{Op: "read " + string(partition), Err: err})
		}
	}
}

func (l *Ledger) Append(ctx context.Context, partition repository.Partition, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, `
INSERT INTO ledger_entries (partition, payload, created_at)
VALUES (?, ?, ?)`,
		l.prefix+string(partition),
		string(data),
		time.Now().UTC(),
	); err != nil {
		return &domain.StorageError{Op: "append " + string(partition), Err: err}
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

var _ repository.Ledger = (*Ledger)(nil)
