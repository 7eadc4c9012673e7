package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store for one table over pgx.
type Store struct {
	q      querier
	pool   *pgxpool.Pool
	table  store.Table
	cols   []string
	logger *slog.Logger
}

func newStore(pool *pgxpool.Pool, table store.Table, logger *slog.Logger) *Store {
	cols := make([]string, 0, len(table.Columns))
	for name := range table.Columns {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return &Store{q: pool, pool: pool, table: table, cols: cols, logger: logger}
}

// uniqueViolation is the PostgreSQL error code for a unique constraint.
const uniqueViolation = "23505"

func mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicateKey
	}
	return store.WrapErr(op, err)
}

// paramValue converts a wire-form attribute into a typed query parameter.
func paramValue(kind store.ColumnKind, value string) (any, error) {
	switch kind {
	case store.KindInt:
		if value == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(value, 10, 64)
	case store.KindDate:
		if value == "" {
			return nil, nil
		}
		return domain.ParseDate(value)
	case store.KindBool:
		if value == "" {
			return false, nil
		}
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}

// scanTargets builds one scan destination per column plus id and
// timestamps, in the store's column order. The returned read function
// converts the scanned values back into the wire-form attribute map.
func (s *Store) scanTargets() (dests []any, row *store.Row, read func()) {
	row = &store.Row{Attrs: make(map[string]string, len(s.cols))}

	dests = []any{&row.ID}
	targets := make([]any, len(s.cols))
	for i, col := range s.cols {
		switch s.table.Columns[col] {
		case store.KindInt:
			targets[i] = new(int64)
		case store.KindDate:
			targets[i] = new(*time.Time)
		case store.KindBool:
			targets[i] = new(bool)
		default:
			targets[i] = new(string)
		}
		dests = append(dests, targets[i])
	}
	dests = append(dests, &row.CreatedAt, &row.UpdatedAt)

	read = func() {
		for i, col := range s.cols {
			switch v := targets[i].(type) {
			case *int64:
				row.Attrs[col] = strconv.FormatInt(*v, 10)
			case **time.Time:
				if *v == nil {
					row.Attrs[col] = ""
				} else {
					row.Attrs[col] = domain.FormatDate(**v)
				}
			case *bool:
				row.Attrs[col] = strconv.FormatBool(*v)
			case *string:
				row.Attrs[col] = *v
			}
		}
	}
	return dests, row, read
}

func (s *Store) selectClause() string {
	return "SELECT id, " + strings.Join(s.cols, ", ") + ", created_at, updated_at FROM " + s.table.Name
}

// whereClause renders criteria into SQL, appending parameters to args.
func (s *Store) whereClause(criteria store.Criteria, args *[]any) (string, error) {
	if len(criteria) == 0 {
		return "", nil
	}
	fields := make([]string, 0, len(criteria))
	for field := range criteria {
		if _, ok := s.table.Columns[field]; !ok {
			return "", store.WrapErr("query", fmt.Errorf("unknown criteria field %q", field))
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conds := make([]string, 0, len(fields))
	for _, field := range fields {
		kind := s.table.Columns[field]
		switch w := criteria[field].(type) {
		case []string:
			list, err := inList(kind, w)
			if err != nil {
				return "", store.WrapErr("query", err)
			}
			*args = append(*args, list)
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", field, len(*args)))
		case string:
			p, err := paramValue(kind, w)
			if err != nil {
				return "", store.WrapErr("query", err)
			}
			*args = append(*args, p)
			conds = append(conds, fmt.Sprintf("%s = $%d", field, len(*args)))
		case store.NotEq:
			p, err := paramValue(kind, string(w))
			if err != nil {
				return "", store.WrapErr("query", err)
			}
			*args = append(*args, p)
			conds = append(conds, fmt.Sprintf("%s <> $%d", field, len(*args)))
		default:
			*args = append(*args, fmt.Sprint(w))
			conds = append(conds, fmt.Sprintf("%s::text = $%d", field, len(*args)))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func inList(kind store.ColumnKind, values []string) (any, error) {
	if kind == store.KindInt {
		out := make([]int64, 0, len(values))
		for _, v := range values {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	return values, nil
}

func (s *Store) optionsClause(opts store.Options) (string, error) {
	var b strings.Builder
	if opts.OrderBy != "" {
		if _, ok := s.table.Columns[opts.OrderBy]; !ok {
			return "", store.WrapErr("query", fmt.Errorf("unknown order field %q", opts.OrderBy))
		}
		b.WriteString(" ORDER BY " + opts.OrderBy)
		if opts.Descending {
			b.WriteString(" DESC")
		}
		b.WriteString(", id")
	} else {
		b.WriteString(" ORDER BY id")
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(opts.Offset))
	}
	return b.String(), nil
}

func (s *Store) queryRows(ctx context.Context, sql string, args []any) ([]store.Row, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr("query", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		dests, row, read := s.scanTargets()
		if err := rows.Scan(dests...); err != nil {
			return nil, mapErr("scan", err)
		}
		read()
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("query", err)
	}
	return out, nil
}

// FindByID returns the row with the synthetic key, or nil when absent.
func (s *Store) FindByID(ctx context.Context, id int64) (*store.Row, error) {
	dests, row, read := s.scanTargets()
	err := s.q.QueryRow(ctx, s.selectClause()+" WHERE id = $1", id).Scan(dests...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapErr("find", err)
	}
	read()
	return row, nil
}

// Query returns the rows matching criteria, shaped by opts.
func (s *Store) Query(ctx context.Context, criteria store.Criteria, opts store.Options) ([]store.Row, error) {
	var args []any
	where, err := s.whereClause(criteria, &args)
	if err != nil {
		return nil, err
	}
	suffix, err := s.optionsClause(opts)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, s.selectClause()+where+suffix, args)
}

// QueryDateRange returns rows whose date column falls inside [from, to].
func (s *Store) QueryDateRange(ctx context.Context, field string, from, to time.Time, opts store.Options) ([]store.Row, error) {
	if s.table.Columns[field] != store.KindDate {
		return nil, store.WrapErr("query", fmt.Errorf("field %q is not a date column", field))
	}
	suffix, err := s.optionsClause(opts)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("%s WHERE %s BETWEEN $1 AND $2%s", s.selectClause(), field, suffix)
	return s.queryRows(ctx, sql, []any{from, to})
}

// QuerySpecialNeeds returns rows carrying medical or dietary notes.
func (s *Store) QuerySpecialNeeds(ctx context.Context) ([]store.Row, error) {
	sql := s.selectClause() + " WHERE medical_conditions <> '' OR dietary_needs <> '' ORDER BY id"
	return s.queryRows(ctx, sql, nil)
}

// Count returns the number of rows matching criteria.
func (s *Store) Count(ctx context.Context, criteria store.Criteria) (int, error) {
	var args []any
	where, err := s.whereClause(criteria, &args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table.Name+where, args...).Scan(&n); err != nil {
		return 0, mapErr("count", err)
	}
	return n, nil
}

// Insert stores a new row and returns its synthetic key.
func (s *Store) Insert(ctx context.Context, attrs map[string]string) (int64, error) {
	cols := make([]string, 0, len(s.cols)+2)
	placeholders := make([]string, 0, len(s.cols)+2)
	args := make([]any, 0, len(s.cols)+1)

	for _, col := range s.cols {
		p, err := paramValue(s.table.Columns[col], attrs[col])
		if err != nil {
			return 0, store.WrapErr("insert", fmt.Errorf("column %s: %w", col, err))
		}
		args = append(args, p)
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	args = append(args, time.Now())
	now := fmt.Sprintf("$%d", len(args))
	cols = append(cols, "created_at", "updated_at")
	placeholders = append(placeholders, now, now)

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		s.table.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	var id int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, mapErr("insert", err)
	}
	return id, nil
}

// UpdateByID writes only the changed columns; false when no row matches.
func (s *Store) UpdateByID(ctx context.Context, id int64, changes map[string]string) (bool, error) {
	if len(changes) == 0 {
		return true, nil
	}
	fields := make([]string, 0, len(changes))
	for field := range changes {
		if _, ok := s.table.Columns[field]; !ok {
			return false, store.WrapErr("update", fmt.Errorf("unknown field %q", field))
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, field := range fields {
		p, err := paramValue(s.table.Columns[field], changes[field])
		if err != nil {
			return false, store.WrapErr("update", fmt.Errorf("column %s: %w", field, err))
		}
		args = append(args, p)
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", s.table.Name, strings.Join(sets, ", "), len(args))
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return false, mapErr("update", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByID removes one row; false when absent.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	tag, err := s.q.Exec(ctx, "DELETE FROM "+s.table.Name+" WHERE id = $1", id)
	if err != nil {
		return false, mapErr("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByCriteria removes matching rows and returns the count.
func (s *Store) DeleteByCriteria(ctx context.Context, criteria store.Criteria) (int, error) {
	var args []any
	where, err := s.whereClause(criteria, &args)
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, "DELETE FROM "+s.table.Name+where, args...)
	if err != nil {
		return 0, mapErr("delete", err)
	}
	return int(tag.RowsAffected()), nil
}

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.pool == nil {
		// Already transactional: join the enclosing transaction.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr("begin", err)
	}
	txStore := &Store{q: tx, table: s.table, cols: s.cols, logger: s.logger}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr("commit", err)
	}
	return nil
}
