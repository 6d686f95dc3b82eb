package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolstock/stockroom/internal/apperr"
)

func TestApplyMovementIn(t *testing.T) {
	s := StockItem{ItemName: "Beaker", TotalQuantity: 10, AvailableQuantity: 6}

	require.NoError(t, s.ApplyMovement(TransactionIn, 4))

	assert.Equal(t, 10, s.AvailableQuantity)
	assert.Equal(t, 14, s.TotalQuantity)
}

func TestApplyMovementOutLeavesTotal(t *testing.T) {
	s := StockItem{ItemName: "Beaker", TotalQuantity: 10, AvailableQuantity: 6}

	require.NoError(t, s.ApplyMovement(TransactionOut, 6))

	assert.Equal(t, 0, s.AvailableQuantity)
	assert.Equal(t, 10, s.TotalQuantity)
}

func TestApplyMovementInsufficientStock(t *testing.T) {
	s := StockItem{ItemName: "Beaker", TotalQuantity: 10, AvailableQuantity: 2}

	err := s.ApplyMovement(TransactionOut, 3)

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 2, s.AvailableQuantity)
	assert.Equal(t, 10, s.TotalQuantity)
}

func TestApplyMovementRejectsNonPositive(t *testing.T) {
	s := StockItem{TotalQuantity: 1, AvailableQuantity: 1}

	assert.ErrorIs(t, s.ApplyMovement(TransactionIn, 0), apperr.ErrValidation)
	assert.ErrorIs(t, s.ApplyMovement(TransactionOut, -1), apperr.ErrValidation)
	assert.ErrorIs(t, s.ApplyMovement("sideways", 1), apperr.ErrValidation)
}

func TestLendAndRestore(t *testing.T) {
	s := StockItem{ItemName: "Microscope", TotalQuantity: 4, AvailableQuantity: 4}

	require.NoError(t, s.Lend(3))
	assert.Equal(t, 1, s.AvailableQuantity)

	assert.ErrorIs(t, s.Lend(2), apperr.ErrInsufficientStock)

	require.NoError(t, s.Restore(3))
	assert.Equal(t, 4, s.AvailableQuantity)

	require.NoError(t, s.Restore(1))
	assert.Equal(t, 4, s.AvailableQuantity)
}

func TestRecountKeepsTotalAboveAvailable(t *testing.T) {
	s := StockItem{TotalQuantity: 10, AvailableQuantity: 10}
	require.NoError(t, s.Recount(7, -3))
	assert.Equal(t, 7, s.AvailableQuantity)
	assert.Equal(t, 7, s.TotalQuantity)

	s = StockItem{TotalQuantity: 12, AvailableQuantity: 10}
	require.NoError(t, s.Recount(13, 3))
	assert.Equal(t, 13, s.AvailableQuantity)
	assert.Equal(t, 15, s.TotalQuantity)

	// Moved after the snapshot: the difference alone would undershoot.
	s = StockItem{TotalQuantity: 4, AvailableQuantity: 1}
	require.NoError(t, s.Recount(5, -5))
	assert.Equal(t, 5, s.TotalQuantity)
}

func TestStockLevel(t *testing.T) {
	assert.Equal(t, LevelOutOfStock, (&StockItem{AvailableQuantity: 0}).Level(5))
	assert.Equal(t, LevelLowStock, (&StockItem{AvailableQuantity: 4}).Level(5))
	assert.Equal(t, LevelAvailable, (&StockItem{AvailableQuantity: 5}).Level(5))
}

func TestStockValue(t *testing.T) {
	s := StockItem{AvailableQuantity: 3, PurchasePrice: decimal.RequireFromString("12.50")}
	assert.True(t, decimal.RequireFromString("37.5").Equal(s.Value()))
}

func TestReverse(t *testing.T) {
	s := StockItem{ItemName: "Flask", TotalQuantity: 10, AvailableQuantity: 10}
	require.NoError(t, s.ApplyMovement(TransactionIn, 5))
	require.NoError(t, s.Reverse(TransactionIn, 5))
	assert.Equal(t, 10, s.AvailableQuantity)
	assert.Equal(t, 10, s.TotalQuantity)

	require.NoError(t, s.ApplyMovement(TransactionOut, 4))
	require.NoError(t, s.Reverse(TransactionOut, 4))
	assert.Equal(t, 10, s.AvailableQuantity)
	assert.Equal(t, 10, s.TotalQuantity)

	assert.ErrorIs(t, s.Reverse(TransactionOut, 1), apperr.ErrConflict)

	s.AvailableQuantity = 2
	assert.ErrorIs(t, s.Reverse(TransactionIn, 3), apperr.ErrInsufficientStock)
}
