package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// LinkSource lists the link-multiples whose ids are loaded onto records.
type LinkSource interface {
	Links(entityType string) []query.Link
}

// Relation is the junction table of a link.
type Relation struct {
	Table   string
	NearKey string
	FarKey  string
}

// Repository reads records for access checks and runs ACL-filtered lists.
// Reads go to a replica, writes to the primary.
type Repository struct {
	conns     *ConnectionManager
	links     LinkSource
	relations map[string]Relation
	log       *logrus.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLinkSource loads the ids of the listed link-multiples onto records.
func WithLinkSource(links LinkSource) RepositoryOption {
	return func(r *Repository) { r.links = links }
}

// WithRelation registers the junction of a link for Unlink.
func WithRelation(entityType, link string, rel Relation) RepositoryOption {
	return func(r *Repository) { r.relations[entityType+"."+link] = rel }
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(log *logrus.Logger) RepositoryOption {
	return func(r *Repository) { r.log = log }
}

// NewRepository creates a repository. Team/User membership links are
// registered by default.
func NewRepository(conns *ConnectionManager, opts ...RepositoryOption) *Repository {
	r := &Repository{
		conns: conns,
		relations: map[string]Relation{
			"Team.users": {Table: "team_user", NearKey: "team_id", FarKey: "user_id"},
			"User.teams": {Table: "team_user", NearKey: "user_id", FarKey: "team_id"},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.New()
	}
	return r
}

// GetByID loads a record. Users are loaded as *entity.User.
func (r *Repository) GetByID(ctx context.Context, entityType, id string) (entity.Entity, error) {
	if entityType == entity.EntityTypeUser {
		return r.GetUser(ctx, id)
	}

	q := query.NewSelectBuilder().
		From(entityType).
		Where(query.Eq(entity.AttrID, id)).
		Limit(0, 1).
		Build()
	records, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, entity.ErrNotFound)
	}
	return records[0], nil
}

// Find runs a select, typically one the ACL filters have been applied to.
func (r *Repository) Find(ctx context.Context, q *query.Select) ([]entity.Entity, error) {
	records, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Entity, len(records))
	for i, rec := range records {
		out[i] = rec
	}
	return out, nil
}

func (r *Repository) find(ctx context.Context, q *query.Select) ([]*entity.Record, error) {
	stmt, args, err := query.ToSQL(q)
	if err != nil {
		return nil, fmt.Errorf("failed to render query: %w", err)
	}

	db := r.conns.Replica()
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.From, err)
	}
	defer rows.Close()

	records, err := scanRecords(q.From, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", q.From, err)
	}
	if err := r.loadLinks(ctx, db, q.From, records); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecords(entityType string, rows *sql.Rows) ([]*entity.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []*entity.Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := entity.NewRecord(entityType, "", nil)
		for i, col := range columns {
			if col == entity.AttrDeleted {
				continue
			}
			rec.Set(query.AttributeName(col), columnValue(values[i]))
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func columnValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// loadLinks sets <link>Ids on every record, empty when nothing is linked.
func (r *Repository) loadLinks(ctx context.Context, db *sql.DB, entityType string, records []*entity.Record) error {
	if r.links == nil || len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	byID := make(map[string]*entity.Record, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		byID[rec.ID] = rec
	}

	for _, link := range r.links.Links(entityType) {
		linked := make(map[string][]string, len(records))

		near := pq.QuoteIdentifier(query.ColumnName(link.NearKey))
		far := pq.QuoteIdentifier(query.ColumnName(link.FarKey))
		args := make([]any, 0, len(ids)+1)
		stmt := "SELECT " + near + ", " + far + " FROM " + pq.QuoteIdentifier(query.TableName(link.Relation)) +
			" WHERE " + near + " IN (" + placeholders(len(ids), 1) + ") AND deleted = FALSE"
		for _, id := range ids {
			args = append(args, id)
		}
		if link.EntityType != "" {
			args = append(args, link.EntityType)
			stmt += " AND entity_type = $" + strconv.Itoa(len(args))
		}

		rows, err := db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("failed to load link %s of %s: %w", link.Name, entityType, err)
		}
		for rows.Next() {
			var nearID, farID string
			if err := rows.Scan(&nearID, &farID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan link %s of %s: %w", link.Name, entityType, err)
			}
			linked[nearID] = append(linked[nearID], farID)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to load link %s of %s: %w", link.Name, entityType, err)
		}

		for id, rec := range byID {
			farIDs := linked[id]
			sort.Strings(farIDs)
			if farIDs == nil {
				farIDs = []string{}
			}
			rec.Set(entity.LinkAttribute(link.Name), farIDs)
		}
	}
	return nil
}

// GetUser loads a user with team and portal account memberships.
func (r *Repository) GetUser(ctx context.Context, id string) (*entity.User, error) {
	db := r.conns.Replica()

	var (
		u                                          entity.User
		userType                                   string
		portalID, defaultTeamID, contactID, author sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_name, type, portal_id, default_team_id, contact_id, created_by_id
		FROM "user"
		WHERE id = $1 AND deleted = FALSE
	`, id).Scan(&u.ID, &u.UserName, &userType, &portalID, &defaultTeamID, &contactID, &author)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Type = entity.UserType(userType)
	u.PortalID = portalID.String
	u.DefaultTeamID = defaultTeamID.String
	u.ContactID = contactID.String
	u.CreatedByID = author.String

	u.TeamIDs, err = queryIDs(ctx, db, `
		SELECT team_id FROM team_user
		WHERE user_id = $1 AND deleted = FALSE
		ORDER BY team_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of user %s: %w", id, err)
	}

	if u.IsPortal() {
		u.AccountIDs, err = queryIDs(ctx, db, `
			SELECT account_id FROM account_portal_user
			WHERE user_id = $1 AND deleted = FALSE
			ORDER BY account_id
		`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts of user %s: %w", id, err)
		}
	}
	return &u, nil
}

// SaveUser persists the scalar attributes of a user. Memberships are changed
// through links. Placeholders are numbered in order of appearance, which is
// how SQLite binds them.
func (r *Repository) SaveUser(ctx context.Context, u *entity.User) error {
	res, err := r.conns.Primary().ExecContext(ctx, `
		UPDATE "user"
		SET user_name = $1, type = $2, portal_id = $3, default_team_id = $4, contact_id = $5
		WHERE id = $6 AND deleted = FALSE
	`, u.UserName, string(u.Type), nullString(u.PortalID), nullString(u.DefaultTeamID), nullString(u.ContactID), u.ID)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, entity.ErrNotFound)
	}
	return nil
}

// Unlink removes the link between a record and a foreign record. Unlinking
// records that are not linked is a no-op.
func (r *Repository) Unlink(ctx context.Context, entityType, id, link, foreignID string) error {
	rel, ok := r.relations[entityType+"."+link]
	if !ok {
		return fmt.Errorf("unknown link %s of %s", link, entityType)
	}

	stmt := "UPDATE " + pq.QuoteIdentifier(rel.Table) + " SET deleted = TRUE WHERE " +
		pq.QuoteIdentifier(rel.NearKey) + " = $1 AND " + pq.QuoteIdentifier(rel.FarKey) + " = $2 AND deleted = FALSE"
	res, err := r.conns.Primary().ExecContext(ctx, stmt, id, foreignID)
	if err != nil {
		return fmt.Errorf("failed to unlink %s %s from %s %s: %w", link, foreignID, entityType, id, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		r.log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"id":          id,
			"link":        link,
			"foreign_id":  foreignID,
			"rows":        n,
		}).Debug("Unlinked records")
	}
	return nil
}

func queryIDs(ctx context.Context, db *sql.DB, stmt string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders returns n comma-separated placeholders starting at $start.
func placeholders(n, start int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(ph, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
