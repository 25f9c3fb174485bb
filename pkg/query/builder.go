package query

// Order sorts by an attribute.
type Order struct {
	Attribute string
	Desc      bool
}

// Select is a built select query. Where items are joined with AND.
type Select struct {
	From     string
	Columns  []string
	Where    []Condition
	Orders   []Order
	Offset   int
	Limit    int
	Distinct bool
}

// SelectBuilder accumulates a Select. Builders are not safe for concurrent
// use.
type SelectBuilder struct {
	q Select
}

// NewSelectBuilder creates an empty builder.
func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{}
}

// From sets the entity type to select from.
func (b *SelectBuilder) From(entityType string) *SelectBuilder {
	b.q.From = entityType
	return b
}

// Select sets the selected attributes. No attributes selects all.
func (b *SelectBuilder) Select(attributes ...string) *SelectBuilder {
	b.q.Columns = append(b.q.Columns, attributes...)
	return b
}

// Where adds conditions joined with AND to what is already there.
func (b *SelectBuilder) Where(conds ...Condition) *SelectBuilder {
	b.q.Where = append(b.q.Where, conds...)
	return b
}

// OrderBy adds a sort order.
func (b *SelectBuilder) OrderBy(attribute string, desc bool) *SelectBuilder {
	b.q.Orders = append(b.q.Orders, Order{Attribute: attribute, Desc: desc})
	return b
}

// Limit sets offset and limit. A zero limit means no limit.
func (b *SelectBuilder) Limit(offset, limit int) *SelectBuilder {
	b.q.Offset = offset
	b.q.Limit = limit
	return b
}

// Distinct selects distinct rows.
func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.q.Distinct = true
	return b
}

// EntityType returns the entity type being selected from.
func (b *SelectBuilder) EntityType() string {
	return b.q.From
}

// Conditions returns the where items added so far.
func (b *SelectBuilder) Conditions() []Condition {
	return append([]Condition(nil), b.q.Where...)
}

// Build returns a copy of the query.
func (b *SelectBuilder) Build() *Select {
	q := b.q
	q.Columns = append([]string(nil), b.q.Columns...)
	q.Where = append([]Condition(nil), b.q.Where...)
	q.Orders = append([]Order(nil), b.q.Orders...)
	return &q
}
