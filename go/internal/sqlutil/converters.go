package sqlutil

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Helper functions for converting between Go types and sql.Null* types

// ToSqlString converts a Go string pointer to sql.NullString
func ToSqlString(val *string) sql.NullString {
	if val == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *val, Valid: true}
}

// FromSqlStringPtr converts sql.NullString to Go string pointer
func FromSqlStringPtr(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	s := val.String
	return &s
}

// ToNullUUID converts a Go UUID pointer to uuid.NullUUID
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// FromNullUUID converts uuid.NullUUID to Go UUID pointer
func FromNullUUID(val uuid.NullUUID) *uuid.UUID {
	if !val.Valid {
		return nil
	}
	id := val.UUID
	return &id
}

// ToMillis stores a time as unix milliseconds, for engines without a time type
func ToMillis(val time.Time) int64 {
	return val.UTC().UnixMilli()
}

// FromMillis converts unix milliseconds back to a UTC time
func FromMillis(val int64) time.Time {
	return time.UnixMilli(val).UTC()
}

// ToNullMillis converts a Go time pointer to nullable unix milliseconds
func ToNullMillis(val *time.Time) sql.NullInt64 {
	if val == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: ToMillis(*val), Valid: true}
}

// FromNullMillis converts nullable unix milliseconds to a Go time pointer
func FromNullMillis(val sql.NullInt64) *time.Time {
	if !val.Valid {
		return nil
	}
	t := FromMillis(val.Int64)
	return &t
}
