package acl

import (
	"encoding/json"
	"fmt"
)

// FieldLevel is the access level of a field for one action.
type FieldLevel string

const (
	FieldNo  FieldLevel = "no"
	FieldYes FieldLevel = "yes"
)

func parseFieldLevel(s string) FieldLevel {
	if s == string(FieldYes) {
		return FieldYes
	}
	return FieldNo
}

// CombineField returns the more permissive of two field levels.
func CombineField(a, b FieldLevel) FieldLevel {
	if a == FieldYes || b == FieldYes {
		return FieldYes
	}
	return FieldNo
}

// FieldData holds the read and edit levels of a field.
type FieldData struct {
	Read FieldLevel `json:"read"`
	Edit FieldLevel `json:"edit"`
}

// FullFieldAccess is the level of a field no role restricts.
var FullFieldAccess = FieldData{Read: FieldYes, Edit: FieldYes}

// ParseFieldData converts a decoded value to FieldData. Strings are the
// shorthand forms "no", "read" and "yes". Missing actions of a map are no.
func ParseFieldData(raw any) (FieldData, error) {
	switch v := raw.(type) {
	case nil:
		return FieldData{Read: FieldNo, Edit: FieldNo}, nil
	case FieldData:
		return v, nil
	case string:
		switch v {
		case "yes":
			return FullFieldAccess, nil
		case "read":
			return FieldData{Read: FieldYes, Edit: FieldNo}, nil
		default:
			return FieldData{Read: FieldNo, Edit: FieldNo}, nil
		}
	case map[string]string:
		return FieldData{Read: parseFieldLevel(v["read"]), Edit: parseFieldLevel(v["edit"])}, nil
	case map[string]any:
		fd := FieldData{Read: FieldNo, Edit: FieldNo}
		if s, ok := v["read"].(string); ok {
			fd.Read = parseFieldLevel(s)
		}
		if s, ok := v["edit"].(string); ok {
			fd.Edit = parseFieldLevel(s)
		}
		return fd, nil
	}
	return FieldData{}, fmt.Errorf("invalid field data type %T", raw)
}

// Get returns the level for an action. Actions other than edit are treated
// as reads.
func (f FieldData) Get(action Action) FieldLevel {
	if action == ActionEdit {
		return f.Edit
	}
	return f.Read
}

// Combine merges two field grants per action.
func (f FieldData) Combine(other FieldData) FieldData {
	return FieldData{Read: CombineField(f.Read, other.Read), Edit: CombineField(f.Edit, other.Edit)}
}

func (f *FieldData) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseFieldData(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
