package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolstock/stockroom/internal/auth"
	"github.com/schoolstock/stockroom/internal/db"
	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/report"
	"github.com/schoolstock/stockroom/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	DB    *sql.DB
	Token string
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret, opts))
	t.Cleanup(server.Close)

	ts := &testServer{Server: server, DB: database}
	ts.createUser(t, "admin", model.RoleAdmin)
	ts.Token = ts.login(t, "admin", "password123")
	return ts
}

func (ts *testServer) createUser(t *testing.T, username, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := store.CreateUser(context.Background(), ts.DB, username, string(hash), role)
	require.NoError(t, err)
	return u
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	var out loginResponse
	resp := ts.do(t, "", http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// do sends a JSON request and decodes the response into out when given.
func (ts *testServer) do(t *testing.T, token, method, path string, body, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return ts.send(t, req, token, out)
}

func (ts *testServer) send(t *testing.T, req *http.Request, token string, out any) *http.Response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if out != nil && len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, out), string(data))
	}
	return resp
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t, Options{})

	var e errorBody
	resp := ts.do(t, "", http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}, &e)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", e.Error)

	var me model.User
	resp = ts.do(t, ts.Token, http.MethodGet, "/api/auth/me", nil, &me)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", me.Username)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.do(t, ts.Token, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, ts.Token, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnauthenticatedAccess(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.do(t, "", http.MethodGet, "/api/stock", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, "not-a-token", http.MethodGet, "/api/stock", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleBasedAccess(t *testing.T) {
	ts := setupTestServer(t, Options{})
	u := ts.createUser(t, "user1", model.RoleUser)
	userToken, err := auth.GenerateToken(testJWTSecret, u.ID, u.Username, u.Role)
	require.NoError(t, err)

	resp := ts.do(t, userToken, http.MethodPost, "/api/purchases",
		map[string]any{"item_name": "Test", "price": "1", "quantity": 1}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, userToken, http.MethodGet, "/api/users", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, userToken, http.MethodGet, "/api/purchases", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUsersAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})

	var created model.User
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/users",
		map[string]string{"username": "labtech", "password": "password123", "role": model.RoleManager}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var e errorBody
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/users",
		map[string]string{"username": "labtech", "password": "password123", "role": model.RoleManager}, &e)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", e.Code)

	resp = ts.do(t, ts.Token, http.MethodPost, "/api/users",
		map[string]string{"username": "x", "password": "short", "role": model.RoleUser}, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password", e.Field)

	resp = ts.do(t, ts.Token, http.MethodGet, "/api/users/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, ts.Token, http.MethodDelete, "/api/users/"+created.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPurchaseArrivalCreatesStock(t *testing.T) {
	ts := setupTestServer(t, Options{DefaultLocation: "Store Room"})

	var p model.PurchaseItem
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/purchases", map[string]any{
		"item_name": "Beakers", "where_to_buy": "Lab Supply Co", "price": "12.50", "quantity": 6,
	}, &p)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.PurchaseConsidering, p.Status)

	var e errorBody
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/purchases", map[string]any{
		"item_name": "beakers", "where_to_buy": "Other", "price": "1", "quantity": 1,
	}, &e)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", e.Code)

	var out setStatusResponse
	resp = ts.do(t, ts.Token, http.MethodPut, "/api/purchases/"+p.ID.String()+"/status",
		map[string]string{"status": "arrived"}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, out.StockItem)
	assert.Equal(t, 6, out.StockItem.TotalQuantity)
	assert.Equal(t, "Store Room", out.StockItem.Location)

	resp = ts.do(t, ts.Token, http.MethodPut, "/api/purchases/"+p.ID.String()+"/status",
		map[string]string{"status": "considering"}, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", e.Code)

	var stock []model.StockItem
	ts.do(t, ts.Token, http.MethodGet, "/api/stock", nil, &stock)
	assert.Len(t, stock, 1)

	resp = ts.do(t, ts.Token, http.MethodGet, "/api/purchases/"+uuid.NewString(), nil, &e)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", e.Code)
}

func createStock(t *testing.T, ts *testServer, name string, total int) model.StockItem {
	t.Helper()
	var s model.StockItem
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/stock", map[string]any{
		"item_name": name, "total_quantity": total, "location": "Lab 1", "purchase_price": "2.50",
	}, &s)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return s
}

func TestTransactionsAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})
	s := createStock(t, ts, "Pipettes", 5)
	path := "/api/stock/" + s.ID.String() + "/transactions"

	var e errorBody
	resp := ts.do(t, ts.Token, http.MethodPost, path,
		map[string]any{"type": "out", "quantity": 6, "reason": "class"}, &e)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)

	var tx model.StockTransaction
	resp = ts.do(t, ts.Token, http.MethodPost, path,
		map[string]any{"type": "out", "quantity": 2, "reason": "class"}, &tx)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "admin", tx.PerformedBy)

	resp = ts.do(t, ts.Token, http.MethodPost, path,
		map[string]any{"version": 1, "type": "in", "quantity": 1}, &e)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", e.Code)

	var correction model.StockTransaction
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/transactions/"+tx.ID.String()+"/correct",
		map[string]string{"reason": "miscounted"}, &correction)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.TransactionIn, correction.Type)

	var got model.StockItem
	ts.do(t, ts.Token, http.MethodGet, "/api/stock/"+s.ID.String(), nil, &got)
	assert.Equal(t, 5, got.AvailableQuantity)

	var ledger []model.StockTransaction
	resp = ts.do(t, ts.Token, http.MethodGet, "/api/transactions?type=in&stock_item_id="+s.ID.String(), nil, &ledger)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, ledger, 1)

	resp = ts.do(t, ts.Token, http.MethodGet, "/api/transactions?from=yesterday", nil, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "from", e.Field)
}

func TestBorrowReturnAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})
	s := createStock(t, ts, "Microscope", 2)

	var b model.BorrowRecord
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/borrows", map[string]any{
		"stock_item_id": s.ID, "borrower_name": "Ana", "quantity": 2,
	}, &b)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var e errorBody
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/borrows", map[string]any{
		"stock_item_id": s.ID, "borrower_name": "Bo", "quantity": 1,
	}, &e)
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)

	resp = ts.do(t, ts.Token, http.MethodPost, "/api/borrows/"+b.ID.String()+"/return", nil, &b)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.BorrowReturned, b.Status)

	resp = ts.do(t, ts.Token, http.MethodPost, "/api/borrows/"+b.ID.String()+"/return", nil, &e)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_RETURNED", e.Code)

	var active []model.BorrowRecord
	ts.do(t, ts.Token, http.MethodGet, "/api/borrows?status=borrowed", nil, &active)
	assert.Empty(t, active)
}

func TestCoursesAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})

	var c model.Course
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/courses", map[string]any{
		"course_name": "Intro Chemistry", "course_date": "2026-09-01",
	}, &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.CoursePlanned, c.Status)

	var item model.CourseItem
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/courses/"+c.ID.String()+"/items",
		map[string]any{"item_name": "Gloves", "quantity_reserved": 10}, &item)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, ts.Token, http.MethodPost, "/api/courses/items/"+item.ID.String()+"/outstock", nil, &item)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, item.QuantityOutstocked)
	assert.Equal(t, model.CourseItemOutstocked, item.Status)

	var detail struct {
		model.Course
		Items []model.CourseItem `json:"items"`
	}
	ts.do(t, ts.Token, http.MethodGet, "/api/courses/"+c.ID.String(), nil, &detail)
	assert.Equal(t, "Intro Chemistry", detail.CourseName)
	assert.Len(t, detail.Items, 1)

	resp = ts.do(t, ts.Token, http.MethodDelete, "/api/courses/"+c.ID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStockTakeAPI(t *testing.T) {
	dir := t.TempDir()
	ts := setupTestServer(t, Options{Archive: &report.LocalArchive{Dir: dir}})
	a := createStock(t, ts, "Flasks", 10)
	createStock(t, ts, "Tubes", 4)

	var st stockTakeResponse
	resp := ts.do(t, ts.Token, http.MethodPost, "/api/stock-take/start", nil, &st)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, st.Total)

	resp = ts.do(t, ts.Token, http.MethodPost, "/api/stock-take/start", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var msg map[string]string
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/stock-take/submit", nil, &msg)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no changes", msg["message"])

	resp = ts.do(t, ts.Token, http.MethodPut, "/api/stock-take/count",
		map[string]any{"stock_item_id": a.ID, "counted_quantity": 7}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep model.StockTakeReport
	resp = ts.do(t, ts.Token, http.MethodPost, "/api/stock-take/submit", nil, &rep)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, rep.Lines, 1)
	assert.Equal(t, -3, rep.Lines[0].Difference)
	assert.NotEmpty(t, rep.ArchiveKey)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stock-take/reports/"+rep.ID.String()+"/document", nil)
	require.NoError(t, err)
	resp = ts.send(t, req, ts.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentType, resp.Header.Get("Content-Type"))
	doc, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(doc), "Flasks")

	archived, err := (&report.LocalArchive{Dir: dir}).Get(context.Background(), rep.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, doc, archived)

	resp = ts.do(t, ts.Token, http.MethodGet, "/api/stock-take/active", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportExportAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})

	csvBody := "Item Name,Where To Buy,Price,Quantity\n" +
		"Beakers,Lab Supply Co,12.50,4\n" +
		"No price,Lab Supply Co,,4\n"
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/purchases/import", strings.NewReader(csvBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")

	var res struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	resp := ts.send(t, req, ts.Token, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/api/purchases/export", nil)
	require.NoError(t, err)
	resp = ts.send(t, req, ts.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "purchases-")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Beakers,Lab Supply Co,12.50,4,,considering,")
}

func TestStockImageAPI(t *testing.T) {
	ts := setupTestServer(t, Options{})
	s := createStock(t, ts, "Scale", 1)
	path := ts.URL + "/api/stock/" + s.ID.String() + "/image"

	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp := ts.send(t, req, ts.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "scale.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(fw, image.NewRGBA(image.Rect(0, 0, 20, 10))))
	require.NoError(t, mw.Close())

	req, err = http.NewRequest(http.MethodPut, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp = ts.send(t, req, ts.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp = ts.send(t, req, ts.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
}

func TestDashboardAndSearchAPI(t *testing.T) {
	ts := setupTestServer(t, Options{LowThreshold: 3})
	createStock(t, ts, "Burettes", 2)

	var d store.Dashboard
	resp := ts.do(t, ts.Token, http.MethodGet, "/api/dashboard", nil, &d)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, d.TotalStockItems)
	assert.Equal(t, 1, d.LowStockCount)
	assert.Equal(t, "5", d.InventoryValue.String())

	var res store.SearchResults
	resp = ts.do(t, ts.Token, http.MethodGet, "/api/search?q=buret", nil, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, res.StockItems, 1)
}

func TestRecordsArePartitionedByUser(t *testing.T) {
	ts := setupTestServer(t, Options{})
	s := createStock(t, ts, "Hotplate", 1)

	other := ts.createUser(t, "other", model.RoleManager)
	otherToken, err := auth.GenerateToken(testJWTSecret, other.ID, other.Username, other.Role)
	require.NoError(t, err)

	resp := ts.do(t, otherToken, http.MethodGet, "/api/stock/"+s.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var items []model.StockItem
	ts.do(t, otherToken, http.MethodGet, "/api/stock", nil, &items)
	assert.Empty(t, items)
}
