// Package postgres implements contacts.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/i474232898/contact-manager/internal/contacts"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var contactColumns = []string{
	"c.id", "c.first_name", "c.last_name", "c.phone_number", "c.email", "c.city",
	"c.status_id", "s.name", "c.date_added", "c.created_at", "c.updated_at",
}

var statusColumns = []string{"id", "name", "COALESCE(description, '')", "created_at"}

const statusNameSQL = "(SELECT name FROM contact_statuses WHERE id = status_id)"

// Repo stores contacts and statuses in PostgreSQL.
type Repo struct {
	db Querier
}

var _ contacts.Repository = (*Repo)(nil)

func New(db Querier) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateContact(ctx context.Context, c *contacts.Contact) error {
	query, args, err := psql.Insert("contacts").
		Columns("first_name", "last_name", "phone_number", "email", "city", "status_id", "date_added", "created_at", "updated_at").
		Values(c.FirstName, c.LastName, c.PhoneNumber, c.Email, c.City, c.StatusID, c.DateAdded, c.CreatedAt, c.UpdatedAt).
		Suffix("RETURNING id, " + statusNameSQL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert contact: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.StatusName); err != nil {
		return mapError(err, "insert contact")
	}
	return nil
}

func (r *Repo) UpdateContact(ctx context.Context, c *contacts.Contact) error {
	query, args, err := psql.Update("contacts").
		Set("first_name", c.FirstName).
		Set("last_name", c.LastName).
		Set("phone_number", c.PhoneNumber).
		Set("email", c.Email).
		Set("city", c.City).
		Set("status_id", c.StatusID).
		Set("date_added", c.DateAdded).
		Set("updated_at", c.UpdatedAt).
		Where(sq.Eq{"id": c.ID}).
		Suffix("RETURNING " + statusNameSQL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update contact: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&c.StatusName); err != nil {
		return mapError(err, "update contact")
	}
	return nil
}

func (r *Repo) GetContact(ctx context.Context, id int64) (contacts.Contact, error) {
	query, args, err := selectContacts().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return contacts.Contact{}, fmt.Errorf("build get contact: %w", err)
	}

	c, err := scanContact(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return contacts.Contact{}, mapError(err, "get contact")
	}
	return c, nil
}

func (r *Repo) DeleteContact(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("contacts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete contact: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "delete contact")
	}
	if tag.RowsAffected() == 0 {
		return contacts.ErrNotFound
	}
	return nil
}

// ListContacts runs a count query and a page query with the same filter.
func (r *Repo) ListContacts(ctx context.Context, f contacts.Filter) ([]contacts.Contact, int, error) {
	where := filterConditions(f)

	countQuery, countArgs, err := psql.Select("COUNT(*)").
		From("contacts c").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count contacts: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count contacts")
	}

	column, desc := contacts.ParseSort(string(f.Sort)).Column()
	direction := " ASC"
	if desc {
		direction = " DESC"
	}
	sel := selectContacts().Where(where).OrderBy("c."+column+direction, "c.id"+direction)
	if f.Limit > 0 {
		sel = sel.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		sel = sel.Offset(uint64(f.Offset))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list contacts: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err, "list contacts")
	}
	defer rows.Close()

	list := make([]contacts.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "list contacts")
	}
	return list, total, nil
}

func selectContacts() sq.SelectBuilder {
	return psql.Select(contactColumns...).
		From("contacts c").
		Join("contact_statuses s ON s.id = c.status_id")
}

func filterConditions(f contacts.Filter) sq.And {
	where := sq.And{}
	if f.StatusID != 0 {
		where = append(where, sq.Eq{"c.status_id": f.StatusID})
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"c.first_name": pattern},
			sq.ILike{"c.last_name": pattern},
			sq.ILike{"c.email": pattern},
			sq.ILike{"c.phone_number": pattern},
			sq.ILike{"c.city": pattern},
		})
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanContact(row pgx.Row) (contacts.Contact, error) {
	var c contacts.Contact
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email, &c.City,
		&c.StatusID, &c.StatusName, &c.DateAdded, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *Repo) CreateStatus(ctx context.Context, st *contacts.Status) error {
	query, args, err := psql.Insert("contact_statuses").
		Columns("name", "description").
		Values(st.Name, st.Description).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert status: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&st.ID, &st.CreatedAt); err != nil {
		return mapError(err, "insert status")
	}
	return nil
}

func (r *Repo) GetStatus(ctx context.Context, id int64) (contacts.Status, error) {
	return r.getStatus(ctx, sq.Eq{"id": id})
}

func (r *Repo) getStatus(ctx context.Context, where sq.Eq) (contacts.Status, error) {
	query, args, err := psql.Select(statusColumns...).From("contact_statuses").Where(where).ToSql()
	if err != nil {
		return contacts.Status{}, fmt.Errorf("build get status: %w", err)
	}

	st, err := scanStatus(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return contacts.Status{}, mapError(err, "get status")
	}
	return st, nil
}

// GetOrCreateStatus inserts with ON CONFLICT DO NOTHING and falls back to a
// lookup when another writer got there first.
func (r *Repo) GetOrCreateStatus(ctx context.Context, name, description string) (contacts.Status, bool, error) {
	query, args, err := psql.Insert("contact_statuses").
		Columns("name", "description").
		Values(name, description).
		Suffix("ON CONFLICT (name) DO NOTHING RETURNING " + strings.Join(statusColumns, ", ")).
		ToSql()
	if err != nil {
		return contacts.Status{}, false, fmt.Errorf("build upsert status: %w", err)
	}

	st, err := scanStatus(r.db.QueryRow(ctx, query, args...))
	switch {
	case err == nil:
		return st, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return contacts.Status{}, false, mapError(err, "upsert status")
	}

	st, err = r.getStatus(ctx, sq.Eq{"name": name})
	if err != nil {
		return contacts.Status{}, false, err
	}
	return st, false, nil
}

func (r *Repo) ListStatuses(ctx context.Context) ([]contacts.Status, error) {
	query, args, err := psql.Select(statusColumns...).From("contact_statuses").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list statuses: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list statuses")
	}
	defer rows.Close()

	list := make([]contacts.Status, 0)
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		list = append(list, st)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list statuses")
	}
	return list, nil
}

func (r *Repo) DeleteStatus(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("contact_statuses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete status: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return contacts.ErrProtected
		}
		return mapError(err, "delete status")
	}
	if tag.RowsAffected() == 0 {
		return contacts.ErrNotFound
	}
	return nil
}

func scanStatus(row pgx.Row) (contacts.Status, error) {
	var st contacts.Status
	err := row.Scan(&st.ID, &st.Name, &st.Description, &st.CreatedAt)
	return st, err
}
