package ops

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/starshop/internal/shop"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type orderSource struct {
	orders []shop.Order
	err    error
}

func (o orderSource) ExportOrders(context.Context) ([]shop.Order, error) { return o.orders, o.err }

func newTestServer(src OrderSource, checks map[string]Pinger) *Server {
	return New(Options{
		Token:  "s3cret",
		Orders: src,
		Checks: checks,
		Now:    func() time.Time { return time.Date(2025, 3, 14, 9, 1, 2, 0, time.UTC) },
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(orderSource{}, map[string]Pinger{
		"store": pingFunc(func(context.Context) error { return nil }),
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["store"])
}

func TestHealthzDegraded(t *testing.T) {
	srv := newTestServer(orderSource{}, map[string]Pinger{
		"store":    pingFunc(func(context.Context) error { return nil }),
		"sessions": pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestOrdersCSVRequiresToken(t *testing.T) {
	srv := newTestServer(orderSource{}, nil)

	for _, header := range []string{"", "Bearer wrong", "Basic s3cret"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/orders.csv", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestOrdersCSV(t *testing.T) {
	srv := newTestServer(orderSource{orders: []shop.Order{{
		ID: 1, UserID: 42, Total: 22600,
		Items:     []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}},
		CreatedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders.csv", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="orders_20250314_090102.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"id,user_id,items,total,fio,address,created_at\n"+
			`1,42,"[[""ragvizax"",2]]",22600,,,2025-03-14T09:00:00.000000Z`+"\n",
		rec.Body.String())
}

func TestOrdersCSVGzip(t *testing.T) {
	srv := newTestServer(orderSource{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/orders.csv", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "id,user_id,items,total,fio,address,created_at\n", string(body))
}

func TestOrdersCSVStorageFailure(t *testing.T) {
	srv := newTestServer(orderSource{err: shop.StorageError("export_orders", errors.New("boom"))}, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/orders.csv", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminRoutesDisabledWithoutToken(t *testing.T) {
	srv := New(Options{Orders: orderSource{}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orders.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
