package store

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var mistakeColumns = []string{
	"id",
	"timestamp",
	"native_language",
	"target_language",
	"error_sentence",
	"corrected_sentence",
	"error_type",
}

// MistakeRepo reads and appends rows of the mistakes table. Rows are never
// updated or deleted.
type MistakeRepo struct {
	db      *sql.DB
	dialect string
}

// Insert stores m and fills in its ID and Timestamp.
func (r *MistakeRepo) Insert(ctx context.Context, m *MistakeRecord) error {
	ts := time.Now().UTC()
	query, args := entsql.Dialect(r.dialect).
		Insert(MistakesTable.Name).
		Columns(mistakeColumns[1:]...).
		Values(ts, m.NativeLanguage, m.TargetLanguage, m.ErrorSentence, m.CorrectedSentence, m.ErrorType).
		Returning("id").
		Query()

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return &StorageError{Op: "insert mistake", Err: err}
	}
	m.ID = id
	m.Timestamp = ts
	return nil
}

// Recent returns up to limit mistakes, newest first. A limit <= 0 returns
// every row.
func (r *MistakeRepo) Recent(ctx context.Context, limit int) ([]MistakeRecord, error) {
	t := entsql.Dialect(r.dialect).Table(MistakesTable.Name)
	sel := entsql.Dialect(r.dialect).Select(mistakeColumns...).From(t)
	orderDesc(sel, "timestamp", "id")
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query recent mistakes", Err: err}
	}
	defer rows.Close()

	var records []MistakeRecord
	for rows.Next() {
		var m MistakeRecord
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.NativeLanguage, &m.TargetLanguage,
			&m.ErrorSentence, &m.CorrectedSentence, &m.ErrorType); err != nil {
			return nil, &StorageError{Op: "scan mistake", Err: err}
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query recent mistakes", Err: err}
	}
	return records, nil
}

// CountByType returns the number of mistakes per error type over the whole
// table.
func (r *MistakeRepo) CountByType(ctx context.Context) (map[string]int, error) {
	t := entsql.Dialect(r.dialect).Table(MistakesTable.Name)
	sel := entsql.Dialect(r.dialect).
		Select("error_type", entsql.As(entsql.Count("*"), "n")).
		From(t).
		GroupBy("error_type")

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "count mistakes by type", Err: err}
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, &StorageError{Op: "scan mistake count", Err: err}
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "count mistakes by type", Err: err}
	}
	return counts, nil
}

// Count returns the total number of logged mistakes.
func (r *MistakeRepo) Count(ctx context.Context) (int, error) {
	t := entsql.Dialect(r.dialect).Table(MistakesTable.Name)
	query, args := entsql.Dialect(r.dialect).Select(entsql.Count("*")).From(t).Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count mistakes", Err: err}
	}
	return n, nil
}

// orderDesc appends descending ORDER BY terms quoted for the selector's
// dialect. entsql.Desc quotes without a dialect and breaks on postgres.
func orderDesc(sel *entsql.Selector, columns ...string) {
	for _, c := range columns {
		col := sel.C(c)
		sel.OrderExprFunc(func(b *entsql.Builder) {
			b.WriteString(col).WriteString(" DESC")
		})
	}
}
