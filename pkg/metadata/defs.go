package metadata

import (
	"sort"
	"strings"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

// Well-known field and link names.
const (
	FieldAssignedUser  = "assignedUser"
	FieldAssignedUsers = "assignedUsers"
	FieldCreatedBy     = "createdBy"
	FieldTeams         = "teams"
)

// Defs answers typed questions about scopes and entity definitions. It
// implements acl.ScopeCatalog and acl.FieldHelper.
type Defs struct {
	p Provider
}

// NewDefs wraps a provider.
func NewDefs(p Provider) *Defs {
	return &Defs{p: p}
}

func (d *Defs) get(path ...string) any {
	return d.p.Get(path)
}

func (d *Defs) getString(path ...string) string {
	s, _ := d.get(path...).(string)
	return s
}

func (d *Defs) getBool(path ...string) bool {
	return truthy(d.get(path...))
}

func (d *Defs) getStrings(path ...string) []string {
	return toStrings(d.get(path...))
}

func (d *Defs) getMap(path ...string) map[string]any {
	m, _ := d.get(path...).(map[string]any)
	return m
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case nil:
		return false
	}
	return true
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// HasScope reports whether the scope is defined and subject to access
// control.
func (d *Defs) HasScope(scope string) bool {
	return d.get("scopes", scope) != nil && d.getBool("scopes", scope, "acl")
}

// ScopeExists reports whether the scope is defined at all.
func (d *Defs) ScopeExists(scope string) bool {
	return d.get("scopes", scope) != nil
}

// ScopeList returns the scopes subject to access control in sorted order.
func (d *Defs) ScopeList() []string {
	var out []string
	for scope := range d.getMap("scopes") {
		if d.HasScope(scope) {
			out = append(out, scope)
		}
	}
	sort.Strings(out)
	return out
}

// IsBooleanScope reports whether the scope is granted as a whole instead of
// per action.
func (d *Defs) IsBooleanScope(scope string) bool {
	return d.getString("scopes", scope, "acl") == "boolean" ||
		d.getString("scopes", scope, "aclType") == "boolean"
}

// IsPortalScope reports whether portal users can be granted the scope.
func (d *Defs) IsPortalScope(scope string) bool {
	return d.getBool("scopes", scope, "aclPortal")
}

// PortalScopeList returns the scopes available to portal roles.
func (d *Defs) PortalScopeList() []string {
	var out []string
	for _, scope := range d.ScopeList() {
		if d.IsPortalScope(scope) {
			out = append(out, scope)
		}
	}
	return out
}

// ActionList returns the actions a scope supports.
func (d *Defs) ActionList(scope string) []acl.Action {
	if list := d.getStrings("scopes", scope, "aclActionList"); len(list) > 0 {
		out := make([]acl.Action, 0, len(list))
		for _, s := range list {
			if a, ok := acl.ParseAction(s); ok {
				out = append(out, a)
			}
		}
		return out
	}
	out := []acl.Action{acl.ActionCreate, acl.ActionRead, acl.ActionEdit, acl.ActionDelete}
	if d.getBool("scopes", scope, "stream") {
		out = append(out, acl.ActionStream)
	}
	return out
}

// PermissionList returns the value permissions without the "Permission"
// suffix, e.g. assignmentPermission becomes assignment.
func (d *Defs) PermissionList() []string {
	list := d.getStrings("app", "acl", "valuePermissionList")
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, strings.TrimSuffix(item, "Permission"))
	}
	return out
}

// PermissionDefault returns the level a permission has when no role grants
// it.
func (d *Defs) PermissionDefault(permission string) acl.Level {
	if s := d.getString("app", "acl", "permissionDefaults", permission+"Permission"); s != "" {
		return acl.ParseLevel(s)
	}
	if s := d.getString("app", "acl", "permissionDefaults", permission); s != "" {
		return acl.ParseLevel(s)
	}
	return acl.LevelNo
}

// HasField reports whether an entity type defines a field.
func (d *Defs) HasField(entityType, field string) bool {
	return d.get("entityDefs", entityType, "fields", field) != nil
}

// FieldType returns the type of a field.
func (d *Defs) FieldType(entityType, field string) string {
	return d.getString("entityDefs", entityType, "fields", field, "type")
}

// FieldList returns the fields of an entity type in sorted order.
func (d *Defs) FieldList(entityType string) []string {
	fields := d.getMap("entityDefs", entityType, "fields")
	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FieldActiveOptions returns the options of an enum field that count as
// active, e.g. published statuses.
func (d *Defs) FieldActiveOptions(entityType, field string) []string {
	return d.getStrings("entityDefs", entityType, "fields", field, "activeOptions")
}

// Link returns the definition of a link of an entity type.
func (d *Defs) Link(entityType, link string) (acl.LinkRef, bool) {
	def := d.getMap("entityDefs", entityType, "links", link)
	if def == nil {
		return acl.LinkRef{}, false
	}
	ref := acl.LinkRef{Name: link}
	ref.Entity, _ = def["entity"].(string)
	ref.RelationName, _ = def["relationName"].(string)
	if keys := toStrings(def["midKeys"]); len(keys) == 2 {
		ref.MidKeys = [2]string{keys[0], keys[1]}
	}
	switch t, _ := def["type"].(string); t {
	case "belongsTo":
		ref.Kind = acl.LinkBelongsTo
	case "belongsToParent":
		ref.Kind = acl.LinkParent
		if list := toStrings(def["entityList"]); len(list) > 0 && ref.Entity == "" {
			ref.Entity = list[0]
		}
	case "hasMany", "manyMany":
		ref.Kind = acl.LinkMultiple
	default:
		return acl.LinkRef{}, false
	}
	return ref, true
}

// MandatoryFieldRestrictions returns fields of a scope restricted for every
// non-admin user regardless of roles.
func (d *Defs) MandatoryFieldRestrictions(scope string) map[string]acl.FieldData {
	fields := d.getMap("entityAcl", scope, "fields")
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]acl.FieldData, len(fields))
	for field, raw := range fields {
		m, _ := raw.(map[string]any)
		switch {
		case truthy(m["forbidden"]), truthy(m["internal"]):
			out[field] = acl.FieldData{Read: acl.FieldNo, Edit: acl.FieldNo}
		case truthy(m["readOnly"]):
			out[field] = acl.FieldData{Read: acl.FieldYes, Edit: acl.FieldNo}
		}
	}
	return out
}

func (d *Defs) HasAssignedUsersField(entityType string) bool {
	return d.FieldType(entityType, FieldAssignedUsers) == "linkMultiple"
}

func (d *Defs) HasAssignedUserField(entityType string) bool {
	return d.HasField(entityType, FieldAssignedUser)
}

func (d *Defs) HasCreatedByField(entityType string) bool {
	return d.HasField(entityType, FieldCreatedBy)
}

func (d *Defs) HasTeamsField(entityType string) bool {
	return d.FieldType(entityType, FieldTeams) == "linkMultiple"
}

// AccountLink returns how records of the type refer to accounts. It reads
// aclDefs.<type>.accountLink, falling back to the account/accounts links.
func (d *Defs) AccountLink(entityType string) (acl.LinkRef, bool) {
	return d.ownerLink(entityType, "accountLink", "Account", "account", "accounts")
}

// ContactLink returns how records of the type refer to contacts.
func (d *Defs) ContactLink(entityType string) (acl.LinkRef, bool) {
	return d.ownerLink(entityType, "contactLink", "Contact", "contact", "contacts")
}

func (d *Defs) ownerLink(entityType, key, foreign string, candidates ...string) (acl.LinkRef, bool) {
	name := d.getString("aclDefs", entityType, key)
	if name == "id" || (name == "" && entityType == foreign) {
		return acl.LinkRef{Name: "id", Kind: acl.LinkSelf, Entity: foreign}, true
	}
	if name != "" {
		return d.Link(entityType, name)
	}
	for _, c := range candidates {
		if ref, ok := d.Link(entityType, c); ok {
			return ref, true
		}
	}
	return acl.LinkRef{}, false
}
