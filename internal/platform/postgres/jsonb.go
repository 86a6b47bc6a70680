package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// toJSONB encodes v for a jsonb parameter. A nil slice is stored as [].
func toJSONB[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode jsonb: %w", err)
	}
	return string(b), nil
}

// fromJSONB decodes a scanned jsonb array. Empty arrays decode to nil.
func fromJSONB[T any](raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v []T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode jsonb: %w", err)
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
