// Package cursor encodes ascending history positions as opaque strings.
package cursor

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit    = 50
	MaxLimit        = 100
	DefaultPageSize = 20
)

// Position is the (created_at, id) tuple of the last row a client has seen.
type Position struct {
	CreatedAt time.Time
	ID        uint64
}

// Encode renders p as URL-safe text.
func Encode(p Position) string {
	raw := p.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatUint(p.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor produced by Encode. Anything unparseable yields nil,
// which callers treat as "start from the beginning".
func Decode(s string) *Position {
	if s == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil
	}
	tsPart, idPart, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, tsPart)
	if err != nil {
		return nil
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	return &Position{CreatedAt: ts.UTC(), ID: id}
}

// After reports whether a row at (createdAt, id) sorts strictly after p.
func (p Position) After(createdAt time.Time, id uint64) bool {
	return createdAt.After(p.CreatedAt) || (createdAt.Equal(p.CreatedAt) && id > p.ID)
}

// Less orders rows by (created_at, id) ascending.
func Less(aCreated time.Time, aID uint64, bCreated time.Time, bID uint64) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}
	return aID < bID
}

// ClampLimit applies the default and the upper bound for cursor pages.
func ClampLimit(limit, def, max int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// PageMeta is the envelope for descending page mode.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

func NewPageMeta(page, perPage int, total int64) PageMeta {
	last := 1
	if perPage > 0 && total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return PageMeta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}

// Offset converts a 1-based page into a row offset.
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}
