package database

import (
	"fmt"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// buildRangeWhere returns the created_at filter for q, its arguments and the next placeholder index
func buildRangeWhere(q models.RangeQuery) (string, []interface{}, int) {
	whereClause := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if q.Start != nil {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *q.Start)
		argCount++
	}

	if q.End != nil {
		whereClause += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *q.End)
		argCount++
	}

	return whereClause, args, argCount
}

// buildRangeQuery appends ORDER BY id DESC and an optional LIMIT/OFFSET to a select
func buildRangeQuery(selectClause string, q models.RangeQuery, limit int, offset int) (string, []interface{}) {
	whereClause, args, argCount := buildRangeWhere(q)

	query := selectClause + whereClause + " ORDER BY id DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, limit)
		argCount++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, offset)
	}

	return query, args
}
