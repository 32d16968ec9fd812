package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a raw JSON column. json.RawMessage alone cannot scan the string
// values some drivers hand back for jsonb columns, so this type carries its
// own Scanner and Valuer.
type JSON json.RawMessage

// Value implements driver.Valuer. Empty values persist as an empty object so
// the column never holds invalid JSON.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner
func (j *JSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = JSON(`{}`)
	case string:
		*j = JSON(v)
	case []byte:
		*j = JSON(append([]byte(nil), v...))
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}
	return nil
}

// MarshalJSON keeps raw JSON semantics in API payloads
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw bytes
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("cannot unmarshal into nil JSON")
	}
	*j = append((*j)[0:0], data...)
	return nil
}
