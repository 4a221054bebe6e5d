package store

import (
	"encoding/base64"
	"encoding/json"

	"github.com/halcyonsec/triage-console/internal/pagination"
)

// cursorData is the decoded position a cursor token points at: the creation
// time (unix nanoseconds) and id of the last record on the previous page.
// Records are ordered by (created_at DESC, id DESC), so this pair uniquely
// identifies a position in the result set.
type cursorData struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"id"`
}

// encodeCursor produces the opaque token handed to clients.
func encodeCursor(createdAt int64, id string) string {
	raw, _ := json.Marshal(cursorData{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor parses a client-supplied token. Tampered or foreign tokens
// fail with a ValidationError.
func decodeCursor(token string) (cursorData, error) {
	var data cursorData
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return data, &pagination.ValidationError{Reason: "malformed cursor"}
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.ID == "" {
		return data, &pagination.ValidationError{Reason: "malformed cursor"}
	}
	return data, nil
}
