package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockLine struct {
	ProductID string
	Qty       int
}

// DeductStockInTx runs inside a caller-owned tx (no nested tx). The order
// creation tx calls this so that the stock check and the decrement hold the
// same row locks.
func DeductStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if len(lines) == 0 {
		return nil
	}

	// deterministic lock order
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	want := make(map[string]int, len(lines))
	for _, ln := range lines {
		// callers validate quantities; a non-positive one here is a bug
		if ln.Qty < 1 {
			return fmt.Errorf("invalid stock quantity %d for product %s", ln.Qty, ln.ProductID)
		}
		want[ln.ProductID] += ln.Qty
	}

	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type productRow struct {
		ID    string `gorm:"column:id"`
		Stock int    `gorm:"column:stock"`
	}
	var rows []productRow

	// SELECT ... FOR UPDATE
	if err := tx.WithContext(ctx).
		Table("products").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}

	avail := make(map[string]int, len(rows))
	for _, r := range rows {
		avail[r.ID] = r.Stock
	}

	var oos []OutOfStockItem
	for _, id := range ids {
		req := want[id]
		av, ok := avail[id]
		if !ok || av < req {
			oos = append(oos, OutOfStockItem{ProductID: id, Requested: req, Available: av})
		}
	}
	if len(oos) > 0 {
		return &OutOfStockError{Items: oos}
	}

	// stock = stock - qty
	for _, id := range ids {
		req := want[id]
		res := tx.WithContext(ctx).
			Table("products").
			Where("id = ?", id).
			UpdateColumn("stock", gorm.Expr("stock - ?", req))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return &OutOfStockError{Items: []OutOfStockItem{{ProductID: id, Requested: req, Available: 0}}}
		}
	}

	return nil
}

// RestoreStockInTx is the compensating half: puts quantities back after a
// gateway failure or a cancellation.
func RestoreStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	for _, ln := range lines {
		q := ln.Qty
		if q < 1 {
			continue
		}
		if err := tx.WithContext(ctx).
			Table("products").
			Where("id = ?", ln.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", q)).Error; err != nil {
			return err
		}
	}
	return nil
}

// RestoreStockTx: wrapper (retry + tx) for callers outside an existing tx.
func RestoreStockTx(ctx context.Context, db *gorm.DB, lines []StockLine) error {
	return WithTxRetry(ctx, db, 3, func(tx *gorm.DB) error {
		return RestoreStockInTx(ctx, tx, lines)
	})
}

// Ledger is the injectable face of the stock operations for callers that
// should not hold a *gorm.DB themselves.
type Ledger struct{ db *gorm.DB }

func NewLedger(db *gorm.DB) *Ledger { return &Ledger{db: db} }

func (l *Ledger) Restore(ctx context.Context, lines []StockLine) error {
	return RestoreStockTx(ctx, l.db, lines)
}

// --- retry helpers (deadlock/lock timeout) ---

func WithTxRetry(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryableMySQLError(err) && i < attempts-1 {
			// small backoff
			time.Sleep(time.Duration(50*(i+1)) * time.Millisecond)
			continue
		}
		return err
	}
	return lastErr
}

func isRetryableMySQLError(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1213: Deadlock found; 1205: Lock wait timeout
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}
