package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is free-form activity context stored as a JSON object.
type Metadata map[string]any

func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decoding metadata: %w", err)
		}
	}
	*m = out
	return nil
}

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type ActivityLog struct {
	ID          string         `db:"id" json:"id"`
	CompanyID   sql.NullString `db:"company_id" json:"-"`
	UserID      sql.NullString `db:"user_id" json:"-"`
	Action      string         `db:"action" json:"action"`
	EntityType  string         `db:"entity_type" json:"entityType"`
	EntityID    string         `db:"entity_id" json:"entityId"`
	Description string         `db:"description" json:"description"`
	Metadata    Metadata       `db:"metadata" json:"metadata"`
	IP          string         `db:"ip" json:"ip"`
	UserAgent   string         `db:"user_agent" json:"userAgent"`
	Browser     string         `db:"browser" json:"browser"`
	OS          string         `db:"os" json:"os"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UserName    string         `db:"user_name" json:"userName"`
	CompanyName string         `db:"company_name" json:"companyName"`
}

// MarshalJSON flattens the nullable columns for API clients.
func (a ActivityLog) MarshalJSON() ([]byte, error) {
	type alias ActivityLog
	return json.Marshal(struct {
		alias
		CompanyID string `json:"companyId,omitempty"`
		UserID    string `json:"userId,omitempty"`
	}{
		alias:     alias(a),
		CompanyID: a.CompanyID.String,
		UserID:    a.UserID.String,
	})
}
