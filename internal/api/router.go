package api

import (
	"database/sql"
	"net/http"

	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/report"
)

// Options carries the server settings handlers depend on.
type Options struct {
	DefaultLocation string
	LowThreshold    int
	Archive         report.Archive
}

func (o Options) withDefaults() Options {
	if o.DefaultLocation == "" {
		o.DefaultLocation = model.DefaultLocation
	}
	if o.LowThreshold == 0 {
		o.LowThreshold = model.DefaultLowStockThreshold
	}
	return o
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) http.Handler {
	opts = opts.withDefaults()
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	purchasesHandler := &PurchasesHandler{DB: db, DefaultLocation: opts.DefaultLocation}
	stockHandler := &StockHandler{DB: db, DefaultLocation: opts.DefaultLocation, LowThreshold: opts.LowThreshold}
	transactionsHandler := &TransactionsHandler{DB: db}
	borrowsHandler := &BorrowsHandler{DB: db}
	coursesHandler := &CoursesHandler{DB: db}
	stockTakeHandler := &StockTakeHandler{DB: db, Archive: opts.Archive}
	dashboardHandler := &DashboardHandler{DB: db, LowThreshold: opts.LowThreshold}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	manage := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", read(authHandler.Me))
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Purchases: read (all roles), write (manager+).
	mux.Handle("GET /api/purchases", read(purchasesHandler.List))
	mux.Handle("GET /api/purchases/export", read(purchasesHandler.Export))
	mux.Handle("POST /api/purchases", manage(purchasesHandler.Create))
	mux.Handle("POST /api/purchases/import", manage(purchasesHandler.Import))
	mux.Handle("GET /api/purchases/{id}", read(purchasesHandler.Get))
	mux.Handle("PUT /api/purchases/{id}", manage(purchasesHandler.Update))
	mux.Handle("DELETE /api/purchases/{id}", manage(purchasesHandler.Delete))
	mux.Handle("PUT /api/purchases/{id}/status", manage(purchasesHandler.SetStatus))
	mux.Handle("PUT /api/purchases/{id}/present", read(purchasesHandler.MarkPresent))
	mux.Handle("POST /api/purchases/{id}/repurchase", manage(purchasesHandler.Repurchase))

	// Stock: read and movements (all roles), write (manager+).
	mux.Handle("GET /api/stock", read(stockHandler.List))
	mux.Handle("GET /api/stock/export", read(stockHandler.Export))
	mux.Handle("POST /api/stock", manage(stockHandler.Create))
	mux.Handle("POST /api/stock/import", manage(stockHandler.Import))
	mux.Handle("GET /api/stock/{id}", read(stockHandler.Get))
	mux.Handle("PUT /api/stock/{id}", manage(stockHandler.Update))
	mux.Handle("DELETE /api/stock/{id}", manage(stockHandler.Delete))
	mux.Handle("PUT /api/stock/{id}/present", read(stockHandler.MarkPresent))
	mux.Handle("GET /api/stock/{id}/transactions", read(stockHandler.ListTransactions))
	mux.Handle("POST /api/stock/{id}/transactions", read(stockHandler.ApplyTransaction))
	mux.Handle("PUT /api/stock/{id}/image", manage(stockHandler.UploadImage))
	mux.Handle("GET /api/stock/{id}/image", read(stockHandler.GetImage))

	// Ledger.
	mux.Handle("GET /api/transactions", read(transactionsHandler.List))
	mux.Handle("GET /api/transactions/export", read(transactionsHandler.Export))
	mux.Handle("GET /api/transactions/{id}", read(transactionsHandler.Get))
	mux.Handle("POST /api/transactions/{id}/correct", manage(transactionsHandler.Correct))

	// Borrows (all roles).
	mux.Handle("GET /api/borrows", read(borrowsHandler.List))
	mux.Handle("GET /api/borrows/export", read(borrowsHandler.Export))
	mux.Handle("POST /api/borrows", read(borrowsHandler.Create))
	mux.Handle("GET /api/borrows/{id}", read(borrowsHandler.Get))
	mux.Handle("POST /api/borrows/{id}/return", read(borrowsHandler.Return))

	// Courses: read (all roles), write (manager+).
	mux.Handle("GET /api/courses", read(coursesHandler.List))
	mux.Handle("POST /api/courses", manage(coursesHandler.Create))
	mux.Handle("GET /api/courses/{id}", read(coursesHandler.Get))
	mux.Handle("PUT /api/courses/{id}", manage(coursesHandler.Update))
	mux.Handle("DELETE /api/courses/{id}", manage(coursesHandler.Delete))
	mux.Handle("GET /api/courses/{id}/items", read(coursesHandler.ListItems))
	mux.Handle("POST /api/courses/{id}/items", manage(coursesHandler.AddItem))
	mux.Handle("DELETE /api/courses/items/{id}", manage(coursesHandler.DeleteItem))
	mux.Handle("POST /api/courses/items/{id}/return", manage(coursesHandler.ReturnItem))
	mux.Handle("POST /api/courses/items/{id}/outstock", manage(coursesHandler.OutstockItem))

	// Stock-take: counting (all roles), submit and discard (manager+).
	mux.Handle("POST /api/stock-take/start", manage(stockTakeHandler.Start))
	mux.Handle("GET /api/stock-take/active", read(stockTakeHandler.Active))
	mux.Handle("PUT /api/stock-take/count", read(stockTakeHandler.Count))
	mux.Handle("POST /api/stock-take/submit", manage(stockTakeHandler.Submit))
	mux.Handle("POST /api/stock-take/discard", manage(stockTakeHandler.Discard))
	mux.Handle("GET /api/stock-take/reports", read(stockTakeHandler.ListReports))
	mux.Handle("GET /api/stock-take/reports/{id}", read(stockTakeHandler.GetReport))
	mux.Handle("GET /api/stock-take/reports/{id}/document", read(stockTakeHandler.ReportDocument))

	mux.Handle("GET /api/dashboard", read(dashboardHandler.Dashboard))
	mux.Handle("GET /api/search", read(dashboardHandler.Search))

	return mux
}
