package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

type userRow struct {
	Username string `db:"username"`
	Role     string `db:"role"`
	Password string `db:"password"`
	Client   string `db:"client"`
}

func (u userRow) toDomain() *domain.Credential {
	return &domain.Credential{
		Username: u.Username,
		Role:     domain.Role(u.Role),
		Password: u.Password,
		Client:   u.Client,
	}
}

// CredentialRepository implements ports.CredentialRepository on the users table.
type CredentialRepository struct {
	db *sqlx.DB
}

var _ ports.CredentialRepository = (*CredentialRepository)(nil)

func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT username, role, password, client FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("find user", err)
	}
	return row.toDomain(), nil
}

func (r *CredentialRepository) List(ctx context.Context) ([]*domain.Credential, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT username, role, password, client FROM users ORDER BY username`); err != nil {
		return nil, domain.NewStoreError("list users", err)
	}
	out := make([]*domain.Credential, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *CredentialRepository) Save(ctx context.Context, c *domain.Credential) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, domain.NewStoreError("save user", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE username = ?`, c.Username); err != nil {
		return false, domain.NewStoreError("save user", err)
	}

	created := n == 0
	if created {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (username, role, password, client) VALUES (?, ?, ?, ?)`,
			c.Username, string(c.Role), c.Password, c.Client)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET role = ?, password = ?, client = ? WHERE username = ?`,
			string(c.Role), c.Password, c.Client, c.Username)
	}
	if err != nil {
		return false, domain.NewStoreError("save user", err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.NewStoreError("save user", err)
	}
	return created, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return domain.NewStoreError("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
