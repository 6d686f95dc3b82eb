package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/db"
	"github.com/schoolstock/stockroom/internal/model"
)

func newStock(t *testing.T, ctx context.Context, database *sql.DB, owner uuid.UUID, name string, total int) *model.StockItem {
	t.Helper()
	s, err := CreateStockItem(ctx, database, owner, model.StockInput{
		ItemName:      name,
		TotalQuantity: total,
		Location:      "Lab 1",
		PurchasePrice: decimal.RequireFromString("2.50"),
	})
	require.NoError(t, err)
	return s
}

func TestCreateStockItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")

	s := newStock(t, ctx, database, owner, "Bunsen burner", 8)
	assert.Equal(t, 8, s.TotalQuantity)
	assert.Equal(t, 8, s.AvailableQuantity)
	assert.Equal(t, int64(1), s.Version)

	_, err := CreateStockItem(ctx, database, owner, model.StockInput{ItemName: "", TotalQuantity: 1, Location: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateStockItemWithAvailable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")

	three, eleven := 3, 11
	s, err := CreateStockItem(ctx, database, owner, model.StockInput{
		ItemName: "Tongs", TotalQuantity: 10, AvailableQuantity: &three, Location: "Lab 2",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, s.TotalQuantity)
	assert.Equal(t, 3, s.AvailableQuantity)

	_, err = CreateStockItem(ctx, database, owner, model.StockInput{
		ItemName: "Tongs", TotalQuantity: 10, AvailableQuantity: &eleven, Location: "Lab 2",
	})
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "available_quantity", e.Field)
}

func TestApplyTransactionInAndOut(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 10)

	tr, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionIn, Quantity: 5, Reason: "delivery", PerformedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "Beaker", tr.ItemName)

	_, err = ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionOut, Quantity: 12, PerformedBy: "alice",
	})
	require.NoError(t, err)

	got, err := GetStockItem(ctx, database, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableQuantity)
	assert.Equal(t, 15, got.TotalQuantity)
	assert.Equal(t, int64(3), got.Version)

	ledger, err := ListTransactions(ctx, database, owner, model.TransactionFilter{StockItemID: s.ID})
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, model.TransactionOut, ledger[0].Type)
	assert.Equal(t, model.TransactionIn, ledger[1].Type)

	outs, err := ListTransactions(ctx, database, owner, model.TransactionFilter{Type: model.TransactionOut})
	require.NoError(t, err)
	assert.Len(t, outs, 1)
}

func TestApplyTransactionInsufficientStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 2)

	_, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionOut, Quantity: 3, PerformedBy: "alice",
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	got, _ := GetStockItem(ctx, database, owner, s.ID)
	assert.Equal(t, 2, got.AvailableQuantity)
	assert.Equal(t, 2, got.TotalQuantity)

	ledger, _ := ListTransactions(ctx, database, owner, model.TransactionFilter{})
	assert.Empty(t, ledger)
}

func TestApplyTransactionValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 2)

	_, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{Type: model.TransactionIn, Quantity: 0, PerformedBy: "a"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{Type: model.TransactionIn, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ApplyTransaction(ctx, database, owner, uuid.New(), model.TransactionInput{Type: model.TransactionIn, Quantity: 1, PerformedBy: "a"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApplyTransactionStaleVersion(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 10)

	// Two clients read version 1; the second write must not silently win.
	_, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Version: s.Version, Type: model.TransactionOut, Quantity: 4, PerformedBy: "a",
	})
	require.NoError(t, err)

	_, err = ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Version: s.Version, Type: model.TransactionOut, Quantity: 4, PerformedBy: "b",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, _ := GetStockItem(ctx, database, owner, s.ID)
	assert.Equal(t, 6, got.AvailableQuantity)
}

func TestSaveQuantitiesDetectsLostUpdate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 10)

	stale := *s
	require.NoError(t, s.ApplyMovement(model.TransactionOut, 1))
	require.NoError(t, saveQuantities(ctx, database, s))

	require.NoError(t, stale.ApplyMovement(model.TransactionOut, 2))
	assert.ErrorIs(t, saveQuantities(ctx, database, &stale), apperr.ErrConflict)
}

func TestUpdateStockItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 10)

	updated, err := UpdateStockItem(ctx, database, owner, s.ID, model.StockUpdate{
		Version: s.Version, ItemName: "Glass beaker", Location: "Cabinet 3", PurchasePrice: decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "Glass beaker", updated.ItemName)
	assert.Equal(t, 10, updated.AvailableQuantity)

	_, err = UpdateStockItem(ctx, database, owner, s.ID, model.StockUpdate{
		Version: s.Version, ItemName: "Old", Location: "x",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = UpdateStockItem(ctx, database, owner, uuid.New(), model.StockUpdate{ItemName: "Old", Location: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListStockItemsByLevel(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")

	newStock(t, ctx, database, owner, "Plenty", 20)
	low := newStock(t, ctx, database, owner, "Few", 3)
	out := newStock(t, ctx, database, owner, "None", 1)
	_, err := ApplyTransaction(ctx, database, owner, out.ID, model.TransactionInput{Type: model.TransactionOut, Quantity: 1, PerformedBy: "a"})
	require.NoError(t, err)

	items, err := ListStockItems(ctx, database, owner, model.StockFilter{Level: model.LevelLowStock, LowThreshold: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)

	items, err = ListStockItems(ctx, database, owner, model.StockFilter{Level: model.LevelOutOfStock, LowThreshold: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, out.ID, items[0].ID)

	all, err := ListStockItems(ctx, database, owner, model.StockFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Few", all[0].ItemName)
}

func TestDeleteStockItemWithOutstandingBorrow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Microscope", 3)

	b, err := Borrow(ctx, database, owner, model.BorrowInput{StockItemID: s.ID, BorrowerName: "Ms. Novak", Quantity: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, DeleteStockItem(ctx, database, owner, s.ID), apperr.ErrConflict)

	_, err = ReturnBorrow(ctx, database, owner, b.ID)
	require.NoError(t, err)

	require.NoError(t, DeleteStockItem(ctx, database, owner, s.ID))
	_, err = GetStockItem(ctx, database, owner, s.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	history, err := ListBorrows(ctx, database, owner, model.BorrowFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, b.ID, history[0].ID)
}

func TestDeleteStockItemKeepsLedger(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Burette", 10)
	other := newStock(t, ctx, database, owner, "Funnel", 2)

	tx, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionOut, Quantity: 3, PerformedBy: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, DeleteStockItem(ctx, database, owner, s.ID))
	assert.ErrorIs(t, DeleteStockItem(ctx, database, owner, s.ID), apperr.ErrNotFound)

	ledger, err := ListTransactions(ctx, database, owner, model.TransactionFilter{StockItemID: s.ID})
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, tx.ID, ledger[0].ID)
	assert.Equal(t, "Burette", ledger[0].ItemName)

	items, err := ListStockItems(ctx, database, owner, model.StockFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, other.ID, items[0].ID)

	_, err = ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionIn, Quantity: 1, PerformedBy: "alice",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, SetStockImage(ctx, database, owner, s.ID, []byte{1}, "image/jpeg"), apperr.ErrNotFound)

	found, err := Search(ctx, database, owner, "burette")
	require.NoError(t, err)
	assert.Empty(t, found.StockItems)

	dash, err := GetDashboard(ctx, database, owner, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.TotalStockItems)

	st, err := StartStockTake(ctx, database, owner)
	require.NoError(t, err)
	require.Len(t, st.Lines, 1)
	assert.Equal(t, other.ID, st.Lines[0].StockItemID)
}

func TestStockImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 1)

	data, mime, err := GetStockImage(ctx, database, owner, s.ID)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, mime)

	require.NoError(t, SetStockImage(ctx, database, owner, s.ID, []byte{0xff, 0xd8}, "image/jpeg"))

	data, mime, err = GetStockImage(ctx, database, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", mime)

	bob := db.NewTestOwner(t, database, "bob")
	_, _, err = GetStockImage(ctx, database, bob, s.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCorrectTransaction(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := db.NewTestOwner(t, database, "alice")
	s := newStock(t, ctx, database, owner, "Beaker", 10)

	wrong, err := ApplyTransaction(ctx, database, owner, s.ID, model.TransactionInput{
		Type: model.TransactionIn, Quantity: 5, PerformedBy: "alice",
	})
	require.NoError(t, err)

	fix, err := CorrectTransaction(ctx, database, owner, wrong.ID, "typo", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionOut, fix.Type)
	assert.Equal(t, 5, fix.Quantity)
	require.NotNil(t, fix.CorrectsID)
	assert.Equal(t, wrong.ID, *fix.CorrectsID)
	assert.Contains(t, fix.Reason, "typo")

	got, _ := GetStockItem(ctx, database, owner, s.ID)
	assert.Equal(t, 10, got.AvailableQuantity)
	assert.Equal(t, 10, got.TotalQuantity)

	// The original entry is untouched.
	orig, err := GetTransaction(ctx, database, owner, wrong.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionIn, orig.Type)
	assert.Equal(t, 5, orig.Quantity)

	_, err = CorrectTransaction(ctx, database, owner, wrong.ID, "again", "alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = CorrectTransaction(ctx, database, owner, fix.ID, "", "alice")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, _ = GetStockItem(ctx, database, owner, s.ID)
	assert.Equal(t, 10, got.AvailableQuantity)
}
