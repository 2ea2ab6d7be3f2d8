// internal/store/postgres.go
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same query
// methods run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Queries implements Querier against a DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to the given connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// DB is the pool-backed Store used by the application.
type DB struct {
	*Queries
	pool *pgxpool.Pool
}

// NewDB wraps a pgx pool into a Store.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{Queries: New(pool), pool: pool}
}

// InTx runs fn inside a single transaction.
func (d *DB) InTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // No-op once committed.

	if err := fn(New(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const userColumns = `id, email, password_hash, name, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.Name))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

const repositoryColumns = `id, owner, name, full_name, description, language,
	stars, forks, watchers, url, user_id, created_at, updated_at`

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.FullName, &r.Description, &r.Language,
		&r.Stars, &r.Forks, &r.Watchers, &r.URL, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// UpsertRepository inserts the repository or, when the full name already
// exists, refreshes its mutable metadata. The single ON CONFLICT statement
// makes concurrent first-time analyses of the same repository race-free: the
// loser updates instead of failing on the unique constraint.
func (q *Queries) UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error) {
	return scanRepository(q.db.QueryRow(ctx, `
		INSERT INTO repositories (owner, name, full_name, description, language,
			stars, forks, watchers, url, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (full_name) DO UPDATE SET
			description = EXCLUDED.description,
			language    = EXCLUDED.language,
			stars       = EXCLUDED.stars,
			forks       = EXCLUDED.forks,
			watchers    = EXCLUDED.watchers,
			url         = EXCLUDED.url,
			updated_at  = now()
		RETURNING `+repositoryColumns,
		arg.Owner, arg.Name, arg.FullName, arg.Description, arg.Language,
		arg.Stars, arg.Forks, arg.Watchers, arg.URL, arg.UserID))
}

func (q *Queries) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	return scanRepository(q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE full_name = $1`, fullName))
}

func (q *Queries) GetRepositoryForUser(ctx context.Context, id, userID int64) (model.Repository, error) {
	return scanRepository(q.db.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories WHERE id = $1 AND user_id = $2`, id, userID))
}

const repositoryWithCountsQuery = `
	SELECT r.id, r.owner, r.name, r.full_name, r.description, r.language,
		r.stars, r.forks, r.watchers, r.url, r.user_id, r.created_at, r.updated_at,
		(SELECT count(*) FROM commits c WHERE c.repository_id = r.id),
		(SELECT count(*) FROM contributors ct WHERE ct.repository_id = r.id),
		(SELECT count(*) FROM issues i WHERE i.repository_id = r.id),
		(SELECT count(*) FROM pull_requests p WHERE p.repository_id = r.id)
	FROM repositories r`

func scanRepositoriesWithCounts(rows pgx.Rows) ([]model.RepositoryWithCounts, error) {
	defer rows.Close()
	var out []model.RepositoryWithCounts
	for rows.Next() {
		var r model.RepositoryWithCounts
		err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.FullName, &r.Description, &r.Language,
			&r.Stars, &r.Forks, &r.Watchers, &r.URL, &r.UserID, &r.CreatedAt, &r.UpdatedAt,
			&r.Counts.Commits, &r.Counts.Contributors, &r.Counts.Issues, &r.Counts.PullRequests)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error) {
	rows, err := q.db.Query(ctx, repositoryWithCountsQuery+`
		WHERE r.user_id = $1 ORDER BY r.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanRepositoriesWithCounts(rows)
}

func (q *Queries) GetRepositoryCounts(ctx context.Context, repositoryID int64) (model.RepositoryCounts, error) {
	var c model.RepositoryCounts
	err := q.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM commits WHERE repository_id = $1),
			(SELECT count(*) FROM contributors WHERE repository_id = $1),
			(SELECT count(*) FROM issues WHERE repository_id = $1),
			(SELECT count(*) FROM pull_requests WHERE repository_id = $1)`,
		repositoryID).Scan(&c.Commits, &c.Contributors, &c.Issues, &c.PullRequests)
	return c, err
}

// runBatch sends a batch and sums affected rows. With ON CONFLICT DO NOTHING
// statements the sum is the number of rows actually inserted.
func (q *Queries) runBatch(ctx context.Context, b *pgx.Batch) (int64, error) {
	br := q.db.SendBatch(ctx, b)
	defer br.Close()

	var inserted int64
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// CreateCommits bulk-inserts commits, silently skipping rows whose
// (repository_id, sha) already exists.
func (q *Queries) CreateCommits(ctx context.Context, arg []CreateCommitParams) (int64, error) {
	b := &pgx.Batch{}
	for _, c := range arg {
		b.Queue(`
			INSERT INTO commits (repository_id, sha, message, author, author_email, date, url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (repository_id, sha) DO NOTHING`,
			c.RepositoryID, c.SHA, c.Message, c.Author, c.AuthorEmail, c.Date, c.URL)
	}
	return q.runBatch(ctx, b)
}

func (q *Queries) CreateContributors(ctx context.Context, arg []CreateContributorParams) (int64, error) {
	b := &pgx.Batch{}
	for _, c := range arg {
		b.Queue(`
			INSERT INTO contributors (repository_id, username, avatar_url, commits)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (repository_id, username) DO NOTHING`,
			c.RepositoryID, c.Username, c.AvatarURL, c.Commits)
	}
	return q.runBatch(ctx, b)
}

func (q *Queries) CreateLanguages(ctx context.Context, arg []CreateLanguageParams) (int64, error) {
	b := &pgx.Batch{}
	for _, l := range arg {
		b.Queue(`
			INSERT INTO languages (repository_id, name, bytes, percentage)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (repository_id, name) DO NOTHING`,
			l.RepositoryID, l.Name, l.Bytes, l.Percentage)
	}
	return q.runBatch(ctx, b)
}

func (q *Queries) CreateIssues(ctx context.Context, arg []CreateIssueParams) (int64, error) {
	b := &pgx.Batch{}
	for _, i := range arg {
		b.Queue(`
			INSERT INTO issues (repository_id, number, title, body, state, labels,
				created_at, updated_at, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (repository_id, number) DO NOTHING`,
			i.RepositoryID, i.Number, i.Title, i.Body, i.State, i.Labels,
			i.CreatedAt, i.UpdatedAt, i.ClosedAt)
	}
	return q.runBatch(ctx, b)
}

func (q *Queries) CreatePullRequests(ctx context.Context, arg []CreatePullRequestParams) (int64, error) {
	b := &pgx.Batch{}
	for _, p := range arg {
		b.Queue(`
			INSERT INTO pull_requests (repository_id, number, title, body, state, merged,
				created_at, updated_at, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (repository_id, number) DO NOTHING`,
			p.RepositoryID, p.Number, p.Title, p.Body, p.State, p.Merged,
			p.CreatedAt, p.UpdatedAt, p.ClosedAt)
	}
	return q.runBatch(ctx, b)
}

const analysisColumns = `id, repository_id, type, data, created_at`

func scanAnalysis(row pgx.Row) (model.Analysis, error) {
	var a model.Analysis
	err := row.Scan(&a.ID, &a.RepositoryID, &a.Type, &a.Data, &a.CreatedAt)
	return a, err
}

// CreateAnalyses inserts analysis rows and returns them with ids and
// timestamps populated. Rows accumulate: there is no per-type upsert.
func (q *Queries) CreateAnalyses(ctx context.Context, arg []CreateAnalysisParams) ([]model.Analysis, error) {
	b := &pgx.Batch{}
	for _, a := range arg {
		b.Queue(`
			INSERT INTO analyses (repository_id, type, data)
			VALUES ($1, $2, $3)
			RETURNING `+analysisColumns,
			a.RepositoryID, a.Type, a.Data)
	}

	br := q.db.SendBatch(ctx, b)
	defer br.Close()

	out := make([]model.Analysis, 0, len(arg))
	for range arg {
		a, err := scanAnalysis(br.QueryRow())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (q *Queries) ListAnalysesByRepository(ctx context.Context, repositoryID int64, typeFilter string) ([]model.Analysis, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		WHERE repository_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, id DESC`, repositoryID, typeFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, repository_id, sha, message, author, author_email, date, url, created_at
		FROM commits WHERE repository_id = $1 ORDER BY date DESC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Commit
	for rows.Next() {
		var c model.Commit
		err := rows.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.Author,
			&c.AuthorEmail, &c.Date, &c.URL, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) ListContributorsByRepository(ctx context.Context, repositoryID int64) ([]model.Contributor, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, repository_id, username, avatar_url, commits
		FROM contributors WHERE repository_id = $1 ORDER BY commits DESC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contributor
	for rows.Next() {
		var c model.Contributor
		err := rows.Scan(&c.ID, &c.RepositoryID, &c.Username, &c.AvatarURL, &c.Commits)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) ListLanguagesByRepository(ctx context.Context, repositoryID int64) ([]model.Language, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, repository_id, name, bytes, percentage
		FROM languages WHERE repository_id = $1 ORDER BY bytes DESC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Language
	for rows.Next() {
		var l model.Language
		err := rows.Scan(&l.ID, &l.RepositoryID, &l.Name, &l.Bytes, &l.Percentage)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) ListIssuesByRepository(ctx context.Context, repositoryID int64) ([]model.Issue, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, repository_id, number, title, body, state, labels,
			created_at, updated_at, closed_at
		FROM issues WHERE repository_id = $1 ORDER BY created_at DESC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Issue
	for rows.Next() {
		var i model.Issue
		err := rows.Scan(&i.ID, &i.RepositoryID, &i.Number, &i.Title, &i.Body, &i.State,
			&i.Labels, &i.CreatedAt, &i.UpdatedAt, &i.ClosedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (q *Queries) ListPullRequestsByRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, repository_id, number, title, body, state, merged,
			created_at, updated_at, closed_at
		FROM pull_requests WHERE repository_id = $1 ORDER BY created_at DESC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PullRequest
	for rows.Next() {
		var p model.PullRequest
		err := rows.Scan(&p.ID, &p.RepositoryID, &p.Number, &p.Title, &p.Body, &p.State,
			&p.Merged, &p.CreatedAt, &p.UpdatedAt, &p.ClosedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateFavorite bookmarks a repository for a user. A repeated bookmark
// surfaces as ErrDuplicateFavorite, which callers treat as success.
func (q *Queries) CreateFavorite(ctx context.Context, userID, repositoryID int64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO favorite_repositories (user_id, repository_id)
		VALUES ($1, $2)`, userID, repositoryID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.ErrDuplicateFavorite
	}
	return err
}

func (q *Queries) DeleteFavorite(ctx context.Context, userID, repositoryID int64) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM favorite_repositories
		WHERE user_id = $1 AND repository_id = $2`, userID, repositoryID)
	return err
}

func (q *Queries) ListFavoriteRepositories(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error) {
	rows, err := q.db.Query(ctx, repositoryWithCountsQuery+`
		JOIN favorite_repositories f ON f.repository_id = r.id
		WHERE f.user_id = $1 ORDER BY r.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanRepositoriesWithCounts(rows)
}
