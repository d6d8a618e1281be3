package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/repo"
)

// UserStore reads the operator directory owned by the (external) account
// management application.
type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	if db == nil {
		return nil
	}
	return &UserStore{db: db}
}

func (s *UserStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, fmt.Errorf("user store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("user id is required")
	}
	var user domain.User
	var displayName sql.NullString
	row := s.db.QueryRowContext(
		ctx,
		`SELECT user_id, username, display_name FROM users WHERE user_id = $1`,
		id,
	)
	if err := row.Scan(&user.ID, &user.Username, &displayName); err != nil {
		return domain.User{}, handleNotFound(err)
	}
	if displayName.Valid {
		user.DisplayName = displayName.String
	}
	return user, nil
}

func (s *UserStore) ListUsers(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("user store not initialized")
	}
	query := `SELECT user_id, username, display_name FROM users ORDER BY username ASC`
	args := make([]any, 0, 1)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		var displayName sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &displayName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if displayName.Valid {
			user.DisplayName = displayName.String
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
