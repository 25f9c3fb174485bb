package api

import (
	"net/http"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/audit"
	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/httputil"
	"github.com/platinummonkey/crmacl/pkg/observability"
	"github.com/platinummonkey/crmacl/pkg/query"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// currentUser returns the acting user or answers 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*entity.User, bool) {
	user := contextkeys.GetUser(r.Context())
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return user, true
}

func parseAction(w http.ResponseWriter, r *http.Request, def acl.Action) (acl.Action, bool) {
	raw := httputil.ParseQueryString(r, "action", string(def))
	if raw == "" {
		return "", true
	}
	action, ok := acl.ParseAction(raw)
	if !ok {
		httputil.WriteBadRequest(w, "unknown action: "+raw)
		return "", false
	}
	return action, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch httputil.StatusFor(err) {
	case http.StatusInternalServerError:
		observability.FromContext(r.Context(), s.log).WithError(err).Error("Request failed")
	case http.StatusForbidden:
		if event := audit.DenialEvent(r.Context(), err); event != nil {
			s.record(r, event)
		}
	}
	httputil.WriteError(w, err)
}

// record writes an audit event. Audit failures never fail the request.
func (s *Server) record(r *http.Request, event *audit.Event) {
	if err := s.audit.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context(), s.log).WithError(err).
			WithField("event_type", event.EventType).Warn("Failed to write audit event")
	}
}

func (s *Server) getACL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	m, err := s.acl.GetMap(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) checkScope(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	scope, _ := httputil.ParsePathString(r, "scope")
	action, ok := parseAction(w, r, "")
	if !ok {
		return
	}

	allowed, err := s.acl.CheckScope(r.Context(), user, scope, action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fieldAction := action
	if fieldAction != acl.ActionEdit {
		fieldAction = acl.ActionRead
	}
	forbidden, err := s.acl.GetScopeForbiddenFieldList(r.Context(), user, scope, fieldAction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if forbidden == nil {
		forbidden = []string{}
	}

	httputil.WriteJSON(w, http.StatusOK, ScopeCheckResponse{
		Scope:           scope,
		Action:          action,
		Allowed:         allowed,
		ForbiddenFields: forbidden,
	})
}

func (s *Server) checkRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	scope, _ := httputil.ParsePathString(r, "scope")
	id, _ := httputil.ParsePathString(r, "id")
	action, ok := parseAction(w, r, acl.ActionRead)
	if !ok {
		return
	}

	e, err := s.records.GetByID(r.Context(), scope, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.acl.EnsureEntity(r.Context(), user, e, action); err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RecordCheckResponse{
		Scope:   scope,
		ID:      id,
		Action:  action,
		Allowed: true,
	})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	scope, _ := httputil.ParsePathString(r, "scope")
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	ctx := r.Context()
	if err := s.acl.EnsureScope(ctx, user, scope, acl.ActionRead); err != nil {
		s.writeError(w, r, err)
		return
	}

	qb := query.NewSelectBuilder().From(scope).OrderBy(entity.AttrID, false).Limit(offset, limit)
	if err := s.filter.Apply(ctx, user, qb); err != nil {
		s.writeError(w, r, err)
		return
	}
	found, err := s.records.Find(ctx, qb.Build())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	forbidden, err := s.acl.GetScopeForbiddenFieldList(ctx, user, scope, acl.ActionRead)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records := make([]map[string]any, 0, len(found))
	for _, e := range found {
		records = append(records, exportRecord(e, forbidden))
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Scope:   scope,
		Offset:  offset,
		Limit:   limit,
		Records: records,
	})
}

// exportRecord returns the attributes of e without the forbidden fields.
func exportRecord(e entity.Entity, forbidden []string) map[string]any {
	out := map[string]any{entity.AttrID: e.GetID()}
	rec, ok := e.(*entity.Record)
	if !ok {
		return out
	}
	for k, v := range rec.Attributes {
		out[k] = v
	}
	for _, field := range forbidden {
		delete(out, field)
		delete(out, field+"Id")
		delete(out, field+"Ids")
		delete(out, field+"Name")
		delete(out, field+"Names")
	}
	return out
}

func (s *Server) unlink(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	scope, _ := httputil.ParsePathString(r, "scope")
	id, _ := httputil.ParsePathString(r, "id")
	link, _ := httputil.ParsePathString(r, "link")
	foreignID, _ := httputil.ParsePathString(r, "foreignId")

	if err := s.service.Unlink(r.Context(), user, scope, id, link, foreignID); err != nil {
		s.writeError(w, r, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTypeUnlink, audit.EventStatusSuccess)
	event.Scope = scope
	event.Action = string(acl.ActionEdit)
	event.ResourceID = id
	event.Metadata["link"] = link
	event.Metadata["foreignId"] = foreignID
	s.record(r, event)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveRole(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, _ := httputil.ParsePathString(r, "id")

	var req RoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	role, err := table.ParseRole(id, req.Name, req.Data, req.FieldData, req.Permissions)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := s.service.SaveRole(r.Context(), user, role); err != nil {
		s.writeError(w, r, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTypeRoleSave, audit.EventStatusSuccess)
	event.Scope = "Role"
	event.Action = string(acl.ActionEdit)
	event.ResourceID = role.ID
	event.Metadata["name"] = role.Name
	s.record(r, event)

	httputil.WriteJSON(w, http.StatusOK, role)
}

func (s *Server) purgeCache(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !user.IsAdmin() {
		s.writeError(w, r, &acl.ForbiddenError{Scope: "acl", Action: "purge"})
		return
	}

	if err := s.cache.Purge(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.FromContext(r.Context(), s.log).Info("Permission table cache purged")
	s.record(r, audit.NewEvent(r.Context(), audit.EventTypeCachePurge, audit.EventStatusSuccess))
	w.WriteHeader(http.StatusNoContent)
}
