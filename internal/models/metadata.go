package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// Metadata is the open-ended payload bag carried by pipelines and steps.
// Stored as jsonb; it is the only state that survives the gap between
// pipeline initiation and resumption, so writers must keep it self-sufficient.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, m)
	case string:
		return json.Unmarshal([]byte(data), m)
	default:
		return errors.Errorf("unsupported metadata column type %T", value)
	}
}

func (Metadata) GormDataType() string {
	return "jsonb"
}

// Decode remarshals a metadata value into a typed destination.
func (m Metadata) Decode(key string, dest interface{}) error {
	value, ok := m[key]
	if !ok {
		return errors.Errorf("metadata key %q is missing", key)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "Failed to remarshal metadata key %q", key)
	}
	return errors.Wrapf(json.Unmarshal(raw, dest), "Failed to decode metadata key %q", key)
}
