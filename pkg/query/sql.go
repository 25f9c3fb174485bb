package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/lib/pq"
)

// TableName maps an entity type or relation name to its table,
// e.g. KnowledgeBaseArticle becomes knowledge_base_article.
func TableName(name string) string {
	return toSnake(name)
}

// ColumnName maps an attribute to its column, e.g. assignedUserId becomes
// assigned_user_id.
func ColumnName(attribute string) string {
	return toSnake(attribute)
}

// AttributeName maps a column back to its attribute, e.g. assigned_user_id
// becomes assignedUserId.
func AttributeName(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type renderer struct {
	args    []any
	aliases int
}

func (r *renderer) arg(v any) string {
	r.args = append(r.args, v)
	return "$" + strconv.Itoa(len(r.args))
}

// ToSQL renders a select as a Postgres statement with $N placeholders.
// Records flagged deleted are excluded.
func ToSQL(q *Select) (string, []any, error) {
	r := &renderer{}
	sql, err := r.selectSQL(q)
	if err != nil {
		return "", nil, err
	}
	return sql, r.args, nil
}

func (r *renderer) selectSQL(q *Select) (string, error) {
	if q.From == "" {
		return "", fmt.Errorf("select has no entity type")
	}
	table := TableName(q.From)
	qt := pq.QuoteIdentifier(table)

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(q.Columns) == 0 {
		b.WriteString(qt + ".*")
	} else {
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = qt + "." + pq.QuoteIdentifier(ColumnName(c))
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM " + qt)

	where := []string{qt + `."deleted" = FALSE`}
	for _, c := range q.Where {
		s, err := r.condition(table, c)
		if err != nil {
			return "", err
		}
		where = append(where, s)
	}
	b.WriteString(" WHERE " + strings.Join(where, " AND "))

	if len(q.Orders) > 0 {
		orders := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			orders[i] = qt + "." + pq.QuoteIdentifier(ColumnName(o.Attribute)) + " " + dir
		}
		b.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + r.arg(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET " + r.arg(q.Offset))
	}
	return b.String(), nil
}

func (r *renderer) condition(table string, c Condition) (string, error) {
	qt := pq.QuoteIdentifier(table)

	switch c := c.(type) {
	case Comparison:
		col := qt + "." + pq.QuoteIdentifier(ColumnName(c.Attribute))
		switch c.Operator {
		case OpEq, OpNotEq:
			if c.Operator == OpNotEq {
				return col + " <> " + r.arg(c.Value), nil
			}
			return col + " = " + r.arg(c.Value), nil
		case OpIsNull, OpIsNotNull:
			return col + " " + string(c.Operator), nil
		case OpIn, OpNotIn:
			if len(c.Values) == 0 {
				if c.Operator == OpIn {
					return "FALSE", nil
				}
				return "TRUE", nil
			}
			ph := make([]string, len(c.Values))
			for i, v := range c.Values {
				ph[i] = r.arg(v)
			}
			return col + " " + string(c.Operator) + " (" + strings.Join(ph, ", ") + ")", nil
		}
		return "", fmt.Errorf("unsupported operator %q", c.Operator)

	case Group:
		if len(c.Items) == 0 {
			if c.Or {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		parts := make([]string, 0, len(c.Items))
		for _, item := range c.Items {
			s, err := r.condition(table, item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		sep := " AND "
		if c.Or {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil

	case LinkContains:
		if len(c.IDs) == 0 {
			return "FALSE", nil
		}
		if c.Link.Relation == "" || c.Link.NearKey == "" || c.Link.FarKey == "" {
			return "", fmt.Errorf("link %q has no junction definition", c.Link.Name)
		}
		r.aliases++
		alias := pq.QuoteIdentifier("l" + strconv.Itoa(r.aliases))
		ph := make([]string, len(c.IDs))
		for i, id := range c.IDs {
			ph[i] = r.arg(id)
		}
		s := "EXISTS (SELECT 1 FROM " + pq.QuoteIdentifier(TableName(c.Link.Relation)) + " AS " + alias +
			" WHERE " + alias + "." + pq.QuoteIdentifier(ColumnName(c.Link.NearKey)) + " = " + qt + `."id"` +
			" AND " + alias + "." + pq.QuoteIdentifier(ColumnName(c.Link.FarKey)) + " IN (" + strings.Join(ph, ", ") + ")" +
			" AND " + alias + `."deleted" = FALSE`
		if c.Link.EntityType != "" {
			s += " AND " + alias + `."entity_type" = ` + r.arg(c.Link.EntityType)
		}
		return s + ")", nil

	case InSubquery:
		if c.Query == nil {
			return "", fmt.Errorf("subquery on %q is nil", c.Attribute)
		}
		sub, err := r.selectSQL(c.Query)
		if err != nil {
			return "", err
		}
		return qt + "." + pq.QuoteIdentifier(ColumnName(c.Attribute)) + " IN (" + sub + ")", nil
	}

	return "", fmt.Errorf("unsupported condition %T", c)
}
