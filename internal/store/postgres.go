package store

import (
	"context"
	_ "embed"
	stderrors "errors"
	"time"

	"medpassport/internal/config"
	"medpassport/internal/errors"
	"medpassport/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// migrationLockID serializes concurrent migrate runs.
const migrationLockID = 746295115

const uniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *errors.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects and pings the database.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *errors.Logger) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid database URL", err)
	}

	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, dbError("connect", err)
	}

	pingCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, dbError("ping", err)
	}

	logger.Info("Connected to database",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"max_conns", pcfg.MaxConns)

	return &Postgres{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema under an advisory lock. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return dbError("acquire", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return dbError("lock", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return dbError("migrate", err)
	}

	p.logger.Info("Database schema applied")
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	user.Email = NormalizeEmail(user.Email)

	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING created_at`,
		user.Email, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return types.User{}, userExists(user.Email)
		}
		return types.User{}, dbError("create user", err)
	}
	return user, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	err := p.pool.QueryRow(ctx,
		`SELECT email, password_hash, created_at FROM users WHERE email = $1`,
		NormalizeEmail(email),
	).Scan(&user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return types.User{}, notFound("user")
		}
		return types.User{}, dbError("get user", err)
	}
	return user, nil
}

func (p *Postgres) UpsertProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UserEmail = NormalizeEmail(profile.UserEmail)
	if profile.SelectedCountries == nil {
		profile.SelectedCountries = []string{}
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO profiles (user_email, global_tier, selected_countries, summary, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_email) DO UPDATE SET
			global_tier        = EXCLUDED.global_tier,
			selected_countries = EXCLUDED.selected_countries,
			summary            = EXCLUDED.summary,
			updated_at         = now()
		RETURNING updated_at`,
		profile.UserEmail, profile.GlobalTier, profile.SelectedCountries, profile.Summary,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		return types.Profile{}, dbError("upsert profile", err)
	}
	return profile, nil
}

func (p *Postgres) GetProfile(ctx context.Context, email string) (types.Profile, error) {
	var profile types.Profile
	err := p.pool.QueryRow(ctx,
		`SELECT user_email, global_tier, selected_countries, summary, updated_at FROM profiles WHERE user_email = $1`,
		NormalizeEmail(email),
	).Scan(&profile.UserEmail, &profile.GlobalTier, &profile.SelectedCountries, &profile.Summary, &profile.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return types.Profile{}, notFound("profile")
		}
		return types.Profile{}, dbError("get profile", err)
	}
	if profile.SelectedCountries == nil {
		profile.SelectedCountries = []string{}
	}
	return profile, nil
}

func (p *Postgres) AddRotation(ctx context.Context, r types.Rotation) (types.Rotation, error) {
	r.UserEmail = NormalizeEmail(r.UserEmail)
	r.ID = uuid.NewString()

	err := p.pool.QueryRow(ctx, `
		INSERT INTO rotations (id, user_email, hospital, specialty, dates, grade, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		r.ID, r.UserEmail, r.Hospital, r.Specialty, r.Dates, r.Grade, r.Description,
	).Scan(&r.CreatedAt)
	if err != nil {
		return types.Rotation{}, dbError("add rotation", err)
	}
	return r, nil
}

func (p *Postgres) ListRotations(ctx context.Context, email string) ([]types.Rotation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_email, hospital, specialty, dates, grade, description, created_at
		FROM rotations WHERE user_email = $1 ORDER BY seq`,
		NormalizeEmail(email),
	)
	if err != nil {
		return nil, dbError("list rotations", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Rotation, error) {
		var r types.Rotation
		err := row.Scan(&r.ID, &r.UserEmail, &r.Hospital, &r.Specialty, &r.Dates, &r.Grade, &r.Description, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, dbError("scan rotations", err)
	}
	return nonNil(out), nil
}

func (p *Postgres) AddProcedure(ctx context.Context, pr types.Procedure) (types.Procedure, error) {
	pr.UserEmail = NormalizeEmail(pr.UserEmail)
	pr.ID = uuid.NewString()

	err := p.pool.QueryRow(ctx, `
		INSERT INTO procedures (id, user_email, procedure, level, count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		pr.ID, pr.UserEmail, pr.Procedure, pr.Level, pr.Count,
	).Scan(&pr.CreatedAt)
	if err != nil {
		return types.Procedure{}, dbError("add procedure", err)
	}
	return pr, nil
}

func (p *Postgres) ListProcedures(ctx context.Context, email string) ([]types.Procedure, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_email, procedure, level, count, created_at
		FROM procedures WHERE user_email = $1 ORDER BY seq`,
		NormalizeEmail(email),
	)
	if err != nil {
		return nil, dbError("list procedures", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Procedure, error) {
		var pr types.Procedure
		err := row.Scan(&pr.ID, &pr.UserEmail, &pr.Procedure, &pr.Level, &pr.Count, &pr.CreatedAt)
		return pr, err
	})
	if err != nil {
		return nil, dbError("scan procedures", err)
	}
	return nonNil(out), nil
}

func (p *Postgres) AddProject(ctx context.Context, pj types.Project) (types.Project, error) {
	pj.UserEmail = NormalizeEmail(pj.UserEmail)
	pj.ID = uuid.NewString()

	err := p.pool.QueryRow(ctx, `
		INSERT INTO projects (id, user_email, type, title, role, year)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		pj.ID, pj.UserEmail, pj.Type, pj.Title, pj.Role, pj.Year,
	).Scan(&pj.CreatedAt)
	if err != nil {
		return types.Project{}, dbError("add project", err)
	}
	return pj, nil
}

func (p *Postgres) ListProjects(ctx context.Context, email string) ([]types.Project, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_email, type, title, role, year, created_at
		FROM projects WHERE user_email = $1 ORDER BY seq`,
		NormalizeEmail(email),
	)
	if err != nil {
		return nil, dbError("list projects", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Project, error) {
		var pj types.Project
		err := row.Scan(&pj.ID, &pj.UserEmail, &pj.Type, &pj.Title, &pj.Role, &pj.Year, &pj.CreatedAt)
		return pj, err
	})
	if err != nil {
		return nil, dbError("scan projects", err)
	}
	return nonNil(out), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return dbError("ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func dbError(op string, err error) error {
	return errors.NewInternalError(errors.ErrCodeDatabaseFailed, "Database "+op+" failed", err)
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
