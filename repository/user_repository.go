// Package repository is the persistence layer.
//
// Each repository is an interface plus a SQLite implementation. Constructors
// return the interface so services never see the concrete type, and take a
// database.TxQuerier (or *sqlx.DB / sqlx.ExtContext) so the same code runs
// inside and outside a transaction.
package repository

import (
	"context"

	"github.com/glimsocial/glim/models"
)

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// ListAdmins returns every user with is_admin set; admin-addressed
	// notifications fan out over this list.
	ListAdmins(ctx context.Context) ([]models.User, error)
	SetPublisher(ctx context.Context, userID string, isPublisher bool) error
	Count(ctx context.Context) (int, error)
}
