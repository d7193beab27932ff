package database

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"lerngruppe/pkg/document"
)

type documentRow struct {
	RowKey string
	Fields []byte
}

func rowsToDocuments(rows pgx.Rows) ([]document.Document, error) {
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByPos[documentRow])
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	out := make([]document.Document, len(collected))
	for i, r := range collected {
		fields, err := document.Decode(r.Fields)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", r.RowKey, err)
		}
		out[i] = document.Document{Key: r.RowKey, Fields: fields}
	}
	return out, nil
}
