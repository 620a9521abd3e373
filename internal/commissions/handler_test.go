package commissions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

func TestPreviewEndpoint(t *testing.T) {
	router := newTestRouter(new(MockRepository))

	body := `{"amount": "2000.00", "milestone": 2, "roles": {"coach": true, "closer": true}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commissions/preview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		MilestoneAmount string `json:"milestone_amount"`
		Results         []struct {
			Role   string `json:"role"`
			Amount string `json:"amount"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "300", resp.MilestoneAmount)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "coach", resp.Results[0].Role)
	assert.Equal(t, "30", resp.Results[0].Amount)
	assert.Equal(t, "24", resp.Results[1].Amount)
}

func TestPreviewEndpointInvalidMilestone(t *testing.T) {
	router := newTestRouter(new(MockRepository))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commissions/preview",
		strings.NewReader(`{"amount": 100, "milestone": 5, "roles": {"coach": true}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpoint(t *testing.T) {
	repo := new(MockRepository)
	saleID := uuid.New()
	repo.On("List", mock.Anything, mock.MatchedBy(func(f ListFilter) bool {
		return f.SaleID != nil && *f.SaleID == saleID && f.Status == StatusApproved && f.Limit == 100
	})).Return([]Commission{{Amount: dec("100")}, {Amount: dec("80")}}, nil).Once()
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/commissions?status=approved&sale_id="+saleID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int    `json:"count"`
		Total string `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "180.00", resp.Total)
	repo.AssertExpectations(t)
}

func TestListEndpointBadDate(t *testing.T) {
	router := newTestRouter(new(MockRepository))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/commissions?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkPaidEndpoint(t *testing.T) {
	repo := new(MockRepository)
	approved := &Commission{ID: uuid.New(), Status: StatusApproved}
	pending := &Commission{ID: uuid.New(), Status: StatusPending}
	missing := uuid.New()
	repo.On("GetByID", mock.Anything, approved.ID).Return(approved, nil)
	repo.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	repo.On("GetByID", mock.Anything, missing).Return(nil, ErrNotFound)
	repo.On("Update", mock.Anything, approved).Return(nil)
	router := newTestRouter(repo)

	tests := []struct {
		id   string
		want int
	}{
		{approved.ID.String(), http.StatusOK},
		{pending.ID.String(), http.StatusConflict},
		{missing.String(), http.StatusNotFound},
		{"not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/commissions/"+tt.id+"/pay", nil))
		assert.Equal(t, tt.want, w.Code, tt.id)
	}
}
