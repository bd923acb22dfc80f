package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/services"
)

type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) GetUserOrders(ctx context.Context, userID string, page, limit int) (*services.OrderResponse, error) {
	args := m.Called(ctx, userID, page, limit)
	if r := args.Get(0); r != nil {
		return r.(*services.OrderResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderReader) GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if r := args.Get(0); r != nil {
		return r.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInstanceService struct {
	mock.Mock
}

func (m *MockInstanceService) view(args mock.Arguments) (*services.InstanceView, error) {
	if r := args.Get(0); r != nil {
		return r.(*services.InstanceView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstanceService) List(ctx context.Context, userID, status string) ([]services.InstanceView, error) {
	args := m.Called(ctx, userID, status)
	if r := args.Get(0); r != nil {
		return r.([]services.InstanceView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstanceService) Get(ctx context.Context, userID string, id uuid.UUID) (*services.InstanceView, error) {
	return m.view(m.Called(ctx, userID, id))
}

func (m *MockInstanceService) Deployment(ctx context.Context, userID string, id uuid.UUID) (*services.DeploymentView, error) {
	args := m.Called(ctx, userID, id)
	if r := args.Get(0); r != nil {
		return r.(*services.DeploymentView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstanceService) Start(ctx context.Context, userID string, id uuid.UUID) (*services.InstanceView, error) {
	return m.view(m.Called(ctx, userID, id))
}

func (m *MockInstanceService) Stop(ctx context.Context, userID string, id uuid.UUID) (*services.InstanceView, error) {
	return m.view(m.Called(ctx, userID, id))
}

func (m *MockInstanceService) Restart(ctx context.Context, userID string, id uuid.UUID) (*services.InstanceView, error) {
	return m.view(m.Called(ctx, userID, id))
}

func (m *MockInstanceService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func setupRouter(orders *MockOrderReader, instances *MockInstanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.RegisterRoutes(r, controllers.NewOrderController(orders), controllers.NewInstanceController(instances))
	return r
}

func do(r *gin.Engine, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireIdentity(t *testing.T) {
	r := setupRouter(new(MockOrderReader), new(MockInstanceService))

	for _, path := range []string{"/orders", "/instances"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestGetOrders_Pagination(t *testing.T) {
	orders := new(MockOrderReader)
	orders.On("GetUserOrders", mock.Anything, "user-1", 2, 100).
		Return(&services.OrderResponse{Orders: []models.Order{}, Meta: services.MetaData{Page: 2, Limit: 100}}, nil)
	r := setupRouter(orders, new(MockInstanceService))

	w := do(r, http.MethodGet, "/orders?page=2&limit=500", "user-1")

	assert.Equal(t, http.StatusOK, w.Code)
	orders.AssertExpectations(t)
}

func TestGetOrderByID(t *testing.T) {
	orders := new(MockOrderReader)
	id := uuid.New()
	orders.On("GetOrderByID", mock.Anything, "user-1", id).
		Return(&models.Order{ID: id, Status: models.OrderPendingPayment, CheckoutURL: "https://checkout.test"}, nil)
	orders.On("GetOrderByID", mock.Anything, "user-2", id).Return(nil, apperrors.NotFound("Order not found"))
	r := setupRouter(orders, new(MockInstanceService))

	w := do(r, http.MethodGet, "/orders/"+id.String(), "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	var body models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://checkout.test", body.CheckoutURL)

	w = do(r, http.MethodGet, "/orders/"+id.String(), "user-2")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Order not found"}`, w.Body.String())

	w = do(r, http.MethodGet, "/orders/not-a-uuid", "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListInstances(t *testing.T) {
	instances := new(MockInstanceService)
	instances.On("List", mock.Anything, "user-1", models.InstanceRunning).
		Return([]services.InstanceView{{ID: "i-1", Name: "web", Status: models.InstanceRunning, Uptime: "0 days, 2 hours"}}, nil)
	r := setupRouter(new(MockOrderReader), instances)

	w := do(r, http.MethodGet, "/instances?status=running", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	var views []services.InstanceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "0 days, 2 hours", views[0].Uptime)

	w = do(r, http.MethodGet, "/instances?status=exploded", "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPowerActions(t *testing.T) {
	instances := new(MockInstanceService)
	id := uuid.New()
	instances.On("Start", mock.Anything, "user-1", id).
		Return(nil, apperrors.Conflict("cannot start instance in status running"))
	instances.On("Stop", mock.Anything, "user-1", id).
		Return(&services.InstanceView{ID: id.String(), Status: models.InstanceStopped, Uptime: "-"}, nil)
	instances.On("Restart", mock.Anything, "user-1", id).
		Return(&services.InstanceView{ID: id.String(), Status: models.InstanceRunning}, nil)
	r := setupRouter(new(MockOrderReader), instances)

	w := do(r, http.MethodPost, "/instances/"+id.String()+"/start", "user-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"cannot start instance in status running"}`, w.Body.String())

	w = do(r, http.MethodPost, "/instances/"+id.String()+"/stop", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"stopped"`)

	w = do(r, http.MethodPost, "/instances/"+id.String()+"/restart", "user-1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/instances/nope/stop", "user-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	instances.AssertExpectations(t)
}

func TestGetDeploymentAndDelete(t *testing.T) {
	instances := new(MockInstanceService)
	id := uuid.New()
	instances.On("Deployment", mock.Anything, "user-1", id).
		Return(&services.DeploymentView{InstanceID: id.String(), Status: models.InstanceProvisioning, Progress: 40}, nil)
	instances.On("Delete", mock.Anything, "user-1", id).Return(nil)
	r := setupRouter(new(MockOrderReader), instances)

	w := do(r, http.MethodGet, "/instances/"+id.String()+"/deployment", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"progress":40`)

	w = do(r, http.MethodDelete, "/instances/"+id.String(), "user-1")
	assert.Equal(t, http.StatusOK, w.Code)
	instances.AssertExpectations(t)
}
