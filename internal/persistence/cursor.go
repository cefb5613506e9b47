// Package persistence holds the list paging token shared by the repositories and the HTTP
// layer.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/activityplanner/internal/domain"
)

const cursorVersion = 1

// ErrCursorFilter is returned when a cursor is replayed against a different filter than the
// one that produced it.
var ErrCursorFilter = errors.New("cursor was issued for another filter")

var filterNamespace = uuid.MustParse("6f1d3c52-0b7e-4a5e-9c1f-2d8a7e4b9a10")

type cursorToken struct {
	Version   int       `json:"v"`
	StartTime time.Time `json:"s"`
	ID        string    `json:"id"`
	Filter    string    `json:"f"`
}

// FilterKey identifies a normalised list filter. Bounds are compared as instants.
func FilterKey(f domain.ListFilter) string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	canonical := strings.Join([]string{
		string(f.View),
		strings.ToLower(strings.TrimSpace(f.Query)),
		string(f.Status),
		string(f.Type),
		f.Unit,
		bound(f.From),
		bound(f.To),
	}, "\x1f")
	return uuid.NewSHA1(filterNamespace, []byte(canonical)).String()
}

// EncodeCursor returns the token for the page after c under filter. A nil cursor means the
// last page and encodes to "".
func EncodeCursor(c *domain.Cursor, filter domain.ListFilter) string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(cursorToken{
		Version:   cursorVersion,
		StartTime: c.StartTime.UTC(),
		ID:        c.ID,
		Filter:    FilterKey(filter),
	})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses token and checks that it was issued under filter. An empty token
// decodes to nil.
func DecodeCursor(token string, filter domain.ListFilter) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	switch {
	case tok.Version != cursorVersion:
		return nil, fmt.Errorf("unsupported cursor version %d", tok.Version)
	case tok.ID == "" || tok.StartTime.IsZero():
		return nil, errors.New("cursor is incomplete")
	case tok.Filter != FilterKey(filter):
		return nil, ErrCursorFilter
	}
	return &domain.Cursor{StartTime: tok.StartTime, ID: tok.ID}, nil
}
