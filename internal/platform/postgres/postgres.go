// Package postgres implements the platform on top of a PostgreSQL database,
// for deployments that host the tables and identities themselves.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

// Platform implements platform.Platform using PostgreSQL.
type Platform struct {
	db       *pgxpool.Pool
	verifier platform.TokenVerifier
}

// New creates a platform backed by db. verifier resolves bearer tokens to identity ids.
func New(db *pgxpool.Pool, verifier platform.TokenVerifier) *Platform {
	return &Platform{db: db, verifier: verifier}
}

// Select returns the rows of table matching all filters.
func (p *Platform) Select(ctx context.Context, table string, filters ...platform.Filter) (platform.Result, error) {
	where, args, err := buildWhere(filters, 1)
	if err != nil {
		return platform.Result{}, err
	}
	query := fmt.Sprintf("SELECT * FROM %s%s", ident(table), where)
	return p.query(ctx, "select "+table, query, args...)
}

// Insert adds row to table and returns the stored row.
func (p *Platform) Insert(ctx context.Context, table string, row platform.Row) (platform.Result, error) {
	if len(row) == 0 {
		return platform.Result{}, fmt.Errorf("insert %s: empty row", table)
	}

	columns := sortedKeys(row)
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		names[i] = ident(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		ident(table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	return p.query(ctx, "insert "+table, query, args...)
}

// Update applies patch to the rows matching all filters and returns them.
func (p *Platform) Update(ctx context.Context, table string, patch platform.Row, filters ...platform.Filter) (platform.Result, error) {
	if len(patch) == 0 {
		return platform.Result{}, fmt.Errorf("update %s: empty patch", table)
	}

	columns := sortedKeys(patch)
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(filters))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", ident(c), i+1)
		args = append(args, patch[c])
	}

	where, whereArgs, err := buildWhere(filters, len(columns)+1)
	if err != nil {
		return platform.Result{}, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", ident(table), strings.Join(sets, ", "), where)
	return p.query(ctx, "update "+table, query, args...)
}

// Ping checks database connectivity.
func (p *Platform) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %v", platform.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Platform) Close() {
	p.db.Close()
}

// SignInWithPassword verifies the password against the stored bcrypt hash.
func (p *Platform) SignInWithPassword(ctx context.Context, email, password string) (*platform.AuthUser, error) {
	query := `
		SELECT id, email, password_hash, user_metadata
		FROM auth_identities
		WHERE lower(email) = lower($1)
	`
	var (
		user platform.AuthUser
		hash string
	)
	err := p.db.QueryRow(ctx, query, email).Scan(&user.ID, &user.Email, &hash, &user.UserMetadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("sign in", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil
	}
	return &user, nil
}

// GetUser resolves a bearer token to the identity named by its subject.
func (p *Platform) GetUser(ctx context.Context, token string) (*platform.AuthUser, error) {
	if p.verifier == nil {
		return nil, fmt.Errorf("get user: %w: no token verifier configured", platform.ErrUnavailable)
	}
	subject, err := p.verifier.VerifySubject(token)
	if err != nil {
		return nil, nil
	}

	query := `
		SELECT id, email, user_metadata
		FROM auth_identities
		WHERE id = $1
	`
	var user platform.AuthUser
	err = p.db.QueryRow(ctx, query, subject).Scan(&user.ID, &user.Email, &user.UserMetadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get user", err)
	}
	return &user, nil
}

// CreateIdentity stores a sign-in account with a bcrypt-hashed password.
func (p *Platform) CreateIdentity(ctx context.Context, email, password string, metadata map[string]any) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
		INSERT INTO auth_identities (email, password_hash, user_metadata)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id string
	if err := p.db.QueryRow(ctx, query, email, string(hash), metadata).Scan(&id); err != nil {
		return "", classify("create identity", err)
	}
	return id, nil
}

func (p *Platform) query(ctx context.Context, op, query string, args ...any) (platform.Result, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return platform.Result{}, classify(op, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return platform.Result{}, classify(op, err)
	}

	res := platform.Result{Rows: make([]platform.Row, 0, len(maps))}
	for _, m := range maps {
		res.Rows = append(res.Rows, platform.Row(m))
	}
	return res, nil
}

func buildWhere(filters []platform.Filter, first int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		switch f.Op {
		case platform.OpEq:
			conds[i] = fmt.Sprintf("%s = $%d", ident(f.Column), first+i)
		case platform.OpIn:
			conds[i] = fmt.Sprintf("%s = ANY($%d)", ident(f.Column), first+i)
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args[i] = f.Value
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w: %s", op, platform.ErrConflict, pgErr.ConstraintName)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, platform.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys(row platform.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
