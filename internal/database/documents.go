package database

import (
	"context"
	"fmt"
	"time"

	"github.com/grasdvirus/double-words-sub000/internal/docstore"
)

// Documents persists docstore documents in the documents table.
type Documents struct {
	db *DB
}

// NewDocuments returns a docstore.Persister over db.
func NewDocuments(db *DB) *Documents { return &Documents{db: db} }

func (d *Documents) Save(ctx context.Context, rec docstore.Record) error {
	q := d.db.dialect.Upsert("documents", []string{"collection", "id"}, []string{"body", "updated_at"})
	_, err := d.db.ExecContext(ctx, q, rec.Collection, rec.ID, string(rec.Body), rec.UpdatedAt.UnixMilli())
	return err
}

func (d *Documents) Delete(ctx context.Context, coll, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, coll, id)
	return err
}

func (d *Documents) Load(ctx context.Context) ([]docstore.Record, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT collection, id, body, updated_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []docstore.Record
	for rows.Next() {
		var (
			rec  docstore.Record
			body string
			ms   int64
		)
		if err := rows.Scan(&rec.Collection, &rec.ID, &body, &ms); err != nil {
			return nil, err
		}
		rec.Body = []byte(body)
		rec.UpdatedAt = time.UnixMilli(ms)
		out = append(out, rec)
	}
	return out, rows.Err()
}
