package persistence

import (
	"context"

	"github.com/storefront/backend/internal/domain/order"
	"gorm.io/gorm"
)

// GormTransactionScope implements order.TransactionScope using GORM
// transactions. Repositories handed to fn share the transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn in a transaction, rolling back when fn returns an error
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos order.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Orders returns the order repository bound to the transaction
func (r *gormTransactionalRepositories) Orders() order.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// Returns returns the return repository bound to the transaction
func (r *gormTransactionalRepositories) Returns() order.ReturnRepository {
	return NewGormReturnRepository(r.tx)
}

var (
	_ order.TransactionScope = (*GormTransactionScope)(nil)
	_ order.Repositories     = (*gormTransactionalRepositories)(nil)
)
