package entity

// Record is a map-backed Entity.
type Record struct {
	Type       string
	ID         string
	Attributes map[string]any
}

// NewRecord creates a record of the given type.
func NewRecord(entityType, id string, attributes map[string]any) *Record {
	if attributes == nil {
		attributes = make(map[string]any)
	}
	return &Record{Type: entityType, ID: id, Attributes: attributes}
}

func (r *Record) EntityType() string { return r.Type }

func (r *Record) GetID() string { return r.ID }

func (r *Record) Get(attribute string) any {
	if attribute == AttrID {
		return r.ID
	}
	return r.Attributes[attribute]
}

func (r *Record) Has(attribute string) bool {
	if attribute == AttrID {
		return true
	}
	_, ok := r.Attributes[attribute]
	return ok
}

// Set sets an attribute value.
func (r *Record) Set(attribute string, value any) {
	if attribute == AttrID {
		if s, ok := value.(string); ok {
			r.ID = s
		}
		return
	}
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[attribute] = value
}
