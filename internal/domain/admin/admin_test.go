package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub-api/internal/middleware"
)

type memoryStore struct {
	logs    []AuditLog
	filter  AuditFilter
	failing bool
}

func (m *memoryStore) WalletStats(context.Context) (*WalletStats, error) {
	if m.failing {
		return nil, errors.New("db down")
	}
	return &WalletStats{TotalWallets: 3, TotalBalance: decimal.NewFromInt(150)}, nil
}

func (m *memoryStore) CreateAuditLog(_ context.Context, entry *AuditLog) error {
	if m.failing {
		return errors.New("db down")
	}
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memoryStore) ListAuditLogs(_ context.Context, f AuditFilter) ([]AuditLog, int, error) {
	m.filter = f
	return m.logs, len(m.logs), nil
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestRepositoryWalletStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{
		"total_wallets", "total_balance", "total_pending", "transactions_today", "active_escrows",
		"active_escrow_amount", "complaints", "platform_revenue", "insurance_fund",
		"pending_withdrawals", "deposits_to_review",
	}).AddRow(4, "1250.50", "20.00", 7, 2, "300.00", 1, "31.25", "6.25", 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM escrow_holds WHERE status = 'held'")).WillReturnRows(rows)

	stats, err := repo.WalletStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalWallets)
	assert.True(t, stats.TotalBalance.Equal(decimal.RequireFromString("1250.5")))
	assert.True(t, stats.PlatformRevenue.Equal(decimal.RequireFromString("31.25")))
	assert.Equal(t, 1, stats.Complaints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListAuditLogsFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	adminID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admin_audit_logs WHERE admin_id = $1 AND action = $2")).
		WithArgs(adminID, "POST /wallet/escrow/resolve").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $3 OFFSET $4")).
		WithArgs(adminID, "POST /wallet/escrow/resolve", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "admin_id", "action", "path", "status_code", "request_id", "ip_address", "user_agent", "created_at",
		}).AddRow(uuid.New(), adminID, "POST /wallet/escrow/resolve", "/api/admin/wallet/escrow/resolve", 200,
			"req-1", "10.0.0.1", nil, time.Now()))

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilter{
		AdminID: &adminID,
		Action:  "POST /wallet/escrow/resolve",
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, 200, logs[0].StatusCode)
	require.NotNil(t, logs[0].RequestID)
	assert.Equal(t, "req-1", *logs[0].RequestID)
	assert.Nil(t, logs[0].UserAgent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceClampsAuditLimit(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store)

	_, _, err := svc.ListAuditLogs(context.Background(), AuditFilter{Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 50, store.filter.Limit)
	assert.Equal(t, 0, store.filter.Offset)
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	svc := NewService(&memoryStore{failing: true})
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &AuditLog{Action: "POST /x"})
	})
}

func auditedRouter(store *memoryStore, adminID uuid.UUID) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), adminID, "admin")))
		})
	})
	r.Use(Audit(NewService(store)))
	r.Get("/wallet/stats", func(w http.ResponseWriter, r *http.Request) {})
	r.Post("/wallet/escrow/{action}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	r.Put("/wallet/settings", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	return r
}

func TestAuditRecordsMutationsOnly(t *testing.T) {
	store := &memoryStore{}
	adminID := uuid.New()
	r := auditedRouter(store, adminID)

	req := httptest.NewRequest(http.MethodGet, "/wallet/stats", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, store.logs)

	req = httptest.NewRequest(http.MethodPost, "/wallet/escrow/resolve", nil)
	req.Header.Set("X-Request-ID", "req-42")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "ops-console")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPut, "/wallet/settings", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, store.logs, 2)
	first := store.logs[0]
	assert.Equal(t, adminID, first.AdminID)
	assert.Equal(t, "POST /wallet/escrow/{action}", first.Action)
	assert.Equal(t, "/wallet/escrow/resolve", first.Path)
	assert.Equal(t, http.StatusConflict, first.StatusCode)
	require.NotNil(t, first.RequestID)
	assert.Equal(t, "req-42", *first.RequestID)
	require.NotNil(t, first.IPAddress)
	assert.Equal(t, "203.0.113.9", *first.IPAddress)
	assert.NotEqual(t, uuid.Nil, first.ID)

	assert.Equal(t, http.StatusOK, store.logs[1].StatusCode)
	assert.Equal(t, "PUT /wallet/settings", store.logs[1].Action)
}

func TestAuditLogsHandler(t *testing.T) {
	store := &memoryStore{}
	h := NewHandler(NewService(store))

	rec := httptest.NewRecorder()
	h.AuditLogs(rec, httptest.NewRequest(http.MethodGet, "/audit/logs?admin_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.AuditLogs(rec, httptest.NewRequest(http.MethodGet, "/audit/logs?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.AuditLogs(rec, httptest.NewRequest(http.MethodGet, "/audit/logs?limit=5&offset=10&from=2026-01-01T00:00:00Z", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.filter.Limit)
	assert.Equal(t, 10, store.filter.Offset)
	require.NotNil(t, store.filter.FromDate)
	assert.Nil(t, store.filter.ToDate)
}

func TestWalletStatsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(NewService(&memoryStore{})).WalletStats(rec, httptest.NewRequest(http.MethodGet, "/wallet/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_wallets":3`)

	rec = httptest.NewRecorder()
	NewHandler(NewService(&memoryStore{failing: true})).WalletStats(rec, httptest.NewRequest(http.MethodGet, "/wallet/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
