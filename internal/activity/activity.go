package activity

import (
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ActionBorrow        = "borrow"
	ActionReturn        = "return"
	ActionRenew         = "renew"
	ActionPayFine       = "pay_fine"
	ActionReconcile     = "reconcile"
	ActionCatalogCreate = "catalog_create"
	ActionCatalogUpdate = "catalog_update"
	ActionCatalogDelete = "catalog_delete"
)

// Entry is one audit record. UserID is the actor, empty for system jobs.
type Entry struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"userId,omitempty" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entityType" db:"entity_type"`
	EntityID   string    `json:"entityId" db:"entity_id"`
	Details    string    `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Cursor marks the last entry of a page; the next page starts after it.
type Cursor struct {
	AfterID   string `json:"after_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EncodeCursor encodes cursor data to a base64 string
func EncodeCursor(c Cursor) string {
	if c.AfterID == "" {
		return ""
	}
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// DecodeCursor decodes a base64 cursor string to Cursor
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, err
	}

	var c Cursor
	if err := json.Unmarshal(decoded, &c); err != nil {
		return Cursor{}, err
	}
	if _, err := time.Parse(time.RFC3339Nano, c.CreatedAt); err != nil {
		return Cursor{}, err
	}
	return c, nil
}

func cursorOf(e Entry) Cursor {
	return Cursor{AfterID: e.ID, CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano)}
}

// Filter selects a page of the log, newest first.
type Filter struct {
	UserID string
	After  Cursor
	Limit  int
}
