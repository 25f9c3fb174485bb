// Package query is a small select-query model: a builder, where-conditions,
// Postgres rendering and in-memory evaluation of the same conditions.
package query

// Condition is a where-clause item.
type Condition interface {
	condition()
}

// Operator is a comparison operator.
type Operator string

const (
	OpEq        Operator = "="
	OpNotEq     Operator = "!="
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Comparison compares an attribute with a value or a list of values.
type Comparison struct {
	Attribute string
	Operator  Operator
	Value     any
	Values    []any
}

// Group joins conditions with AND, or with OR when Or is set.
type Group struct {
	Or    bool
	Items []Condition
}

// Link describes a many-to-many relation through a junction table.
// EntityType is set for junctions shared by several entity types, such as
// the team junction.
type Link struct {
	Name       string
	Relation   string
	NearKey    string
	FarKey     string
	EntityType string
}

// LinkContains matches records linked to any of the ids.
type LinkContains struct {
	Link Link
	IDs  []string
}

// InSubquery matches records whose attribute is among the values selected
// by a subquery.
type InSubquery struct {
	Attribute string
	Query     *Select
}

func (Comparison) condition()   {}
func (Group) condition()        {}
func (LinkContains) condition() {}
func (InSubquery) condition()   {}

// Eq matches attribute = value. A nil value matches NULL.
func Eq(attribute string, value any) Condition {
	if value == nil {
		return IsNull(attribute)
	}
	return Comparison{Attribute: attribute, Operator: OpEq, Value: value}
}

// NotEq matches attribute != value.
func NotEq(attribute string, value any) Condition {
	return Comparison{Attribute: attribute, Operator: OpNotEq, Value: value}
}

// In matches attribute IN values. An empty list matches nothing.
func In(attribute string, values ...any) Condition {
	return Comparison{Attribute: attribute, Operator: OpIn, Values: values}
}

// NotIn matches non-null attributes outside values.
func NotIn(attribute string, values ...any) Condition {
	return Comparison{Attribute: attribute, Operator: OpNotIn, Values: values}
}

// InStrings is In for string values.
func InStrings(attribute string, values []string) Condition {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In(attribute, vals...)
}

// IsNull matches attribute IS NULL.
func IsNull(attribute string) Condition {
	return Comparison{Attribute: attribute, Operator: OpIsNull}
}

// IsNotNull matches attribute IS NOT NULL.
func IsNotNull(attribute string) Condition {
	return Comparison{Attribute: attribute, Operator: OpIsNotNull}
}

// And joins conditions with AND. An empty group matches everything.
func And(items ...Condition) Condition {
	return Group{Items: items}
}

// Or joins conditions with OR. An empty group matches nothing.
func Or(items ...Condition) Condition {
	return Group{Or: true, Items: items}
}

// HasLinked matches records linked through link to any of the ids.
func HasLinked(link Link, ids []string) Condition {
	return LinkContains{Link: link, IDs: ids}
}

// InQuery matches records whose attribute is selected by q.
func InQuery(attribute string, q *Select) Condition {
	return InSubquery{Attribute: attribute, Query: q}
}

// Nothing matches no record.
func Nothing() Condition {
	return IsNull("id")
}
