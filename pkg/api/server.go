package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/audit"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// ACL answers access questions.
type ACL interface {
	GetMap(ctx context.Context, user *entity.User) (map[string]any, error)
	CheckScope(ctx context.Context, user *entity.User, scope string, action acl.Action) (bool, error)
	EnsureScope(ctx context.Context, user *entity.User, scope string, action acl.Action) error
	EnsureEntity(ctx context.Context, user *entity.User, e entity.Entity, action acl.Action) error
	GetScopeForbiddenFieldList(ctx context.Context, user *entity.User, scope string, action acl.Action) ([]string, error)
}

// Records loads records.
type Records interface {
	GetByID(ctx context.Context, entityType, id string) (entity.Entity, error)
	Find(ctx context.Context, q *query.Select) ([]entity.Entity, error)
}

// QueryFilter restricts a select to the records a user may read.
type QueryFilter interface {
	Apply(ctx context.Context, user *entity.User, qb *query.SelectBuilder) error
}

// RecordService changes records on behalf of a user.
type RecordService interface {
	Unlink(ctx context.Context, user *entity.User, entityType, id, link, foreignID string) error
	SaveRole(ctx context.Context, user *entity.User, role table.Role) error
}

// CachePurger drops cached permission tables.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Dependencies wires the server.
type Dependencies struct {
	ACL     ACL
	Records Records
	Filter  QueryFilter
	Service RecordService
	Cache   CachePurger
	Audit   audit.Logger
	Logger  *logrus.Logger
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	acl     ACL
	records Records
	filter  QueryFilter
	service RecordService
	cache   CachePurger
	audit   audit.Logger
	log     *logrus.Logger
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}
	s := &Server{
		router:  mux.NewRouter(),
		acl:     deps.ACL,
		records: deps.Records,
		filter:  deps.Filter,
		service: deps.Service,
		cache:   deps.Cache,
		audit:   deps.Audit,
		log:     deps.Logger,
	}
	s.setupRoutes()
	return s
}

// Router returns the router so that callers can add middleware and
// operational routes.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(aclScope)
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/acl", s.getACL).Methods(http.MethodGet)
	v1.HandleFunc("/acl/purge", s.purgeCache).Methods(http.MethodPost)
	v1.HandleFunc("/acl/{scope}", s.checkScope).Methods(http.MethodGet)

	v1.HandleFunc("/Role/{id}", s.saveRole).Methods(http.MethodPut)

	v1.HandleFunc("/{scope}", s.listRecords).Methods(http.MethodGet)
	v1.HandleFunc("/{scope}/{id}/access", s.checkRecord).Methods(http.MethodGet)
	v1.HandleFunc("/{scope}/{id}/{link}/{foreignId}/unlink", s.unlink).Methods(http.MethodPost)
}

// aclScope resolves each user's permission table at most once per request.
func aclScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(acl.WithRequestScope(r.Context())))
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
