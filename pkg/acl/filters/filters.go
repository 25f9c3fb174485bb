package filters

import (
	"github.com/platinummonkey/crmacl/pkg/query"
)

// Filter adds where-conditions to a select.
type Filter interface {
	Apply(qb *query.SelectBuilder)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(qb *query.SelectBuilder)

func (f FilterFunc) Apply(qb *query.SelectBuilder) { f(qb) }

// where returns a filter adding c, or matching nothing when c is nil.
func where(c query.Condition) Filter {
	return FilterFunc(func(qb *query.SelectBuilder) {
		if c == nil {
			c = query.Nothing()
		}
		qb.Where(c)
	})
}

// anyOf returns a filter matching records any non-nil condition matches.
func anyOf(conds ...query.Condition) Filter {
	var items []query.Condition
	for _, c := range conds {
		if c != nil {
			items = append(items, c)
		}
	}
	switch len(items) {
	case 0:
		return where(nil)
	case 1:
		return where(items[0])
	}
	return where(query.Or(items...))
}

// No matches nothing.
func No() Filter {
	return where(nil)
}

// OnlyOwn matches the records the user owns.
func OnlyOwn(c Conditions, p Params) Filter {
	return where(c.Own(p))
}

// OnlyTeam matches owned records and records of the user's teams.
func OnlyTeam(c Conditions, p Params) Filter {
	return anyOf(c.Own(p), c.Teams(p))
}

// PortalOnlyOwn matches the records a portal user created.
func PortalOnlyOwn(c Conditions, p Params) Filter {
	return where(c.Own(p))
}

// PortalOnlyContact matches owned records and records of the user's contact.
func PortalOnlyContact(c Conditions, p Params) Filter {
	return anyOf(c.Own(p), c.Contact(p))
}

// PortalOnlyAccount matches owned records and records of the user's accounts
// and contact.
func PortalOnlyAccount(c Conditions, p Params) Filter {
	return anyOf(c.Own(p), c.Account(p), c.Contact(p))
}
