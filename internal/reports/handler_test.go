package reports

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *MockRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(newTestService(repo), nil)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestGetDashboardEndpoint(t *testing.T) {
	repo := new(MockRepository)
	repo.On("StatusTotals", mock.Anything).Return([]StatusTotal{{Status: "approved", Count: 1, Total: dec("80")}}, nil)
	repo.On("SalesByStatus", mock.Anything).Return([]SaleStatusCount{}, nil)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Payable string `json:"payable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "80", resp.Payable)
}

func TestGetPayoutsDefaultsToPreviousMonth(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PayoutSummary", mock.Anything, september.From, september.To).Return([]PayoutSummaryRow{}, nil)
	repo.On("PayoutLines", mock.Anything, september.From, september.To).Return(septemberLines(), nil)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/payouts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PayoutReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Lines, 2)
	assert.True(t, dec("124").Equal(resp.Total))
	repo.AssertExpectations(t)
}

func TestGetPayoutsInclusiveRange(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PayoutSummary", mock.Anything, september.From, september.To).Return([]PayoutSummaryRow{}, nil)
	repo.On("PayoutLines", mock.Anything, september.From, september.To).Return([]PayoutLine{}, nil)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/payouts?from=2026-09-01&to=2026-09-30", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertExpectations(t)
}

func TestGetPayoutsExportXLSX(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PayoutSummary", mock.Anything, september.From, september.To).Return([]PayoutSummaryRow{}, nil)
	repo.On("PayoutLines", mock.Anything, september.From, september.To).Return(septemberLines(), nil)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/payouts?format=excel", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payouts-2026-09.xlsx"`, w.Header().Get("Content-Disposition"))
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestGetPayoutsBadInput(t *testing.T) {
	router := newTestRouter(new(MockRepository))

	for _, url := range []string{
		"/api/v1/reports/payouts?from=09-01-2026",
		"/api/v1/reports/payouts?from=2026-09-30&to=2026-09-01",
		"/api/v1/reports/payouts?format=docx",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
	}
}
