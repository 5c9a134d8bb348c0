package db

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Conn 有事务时使用事务，否则回退到 root
func (c Context) Conn(root *gorm.DB) *gorm.DB {
	tx := c.Tx
	if tx == nil {
		tx = root
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return tx.WithContext(ctx)
}
