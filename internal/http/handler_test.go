package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/repository"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/service"
)

const (
	testInternalSecret = "internal-test-secret-0123456789abcdef"
	testJWTSecret      = "jwt-test-secret-0123456789abcdefghij"
)

type stubPanel struct {
	mu      sync.Mutex
	results map[string]models.APIResult
	calls   []string
}

func (p *stubPanel) answer(function string) models.APIResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, function)
	if r, ok := p.results[function]; ok {
		return r
	}
	return models.APIResult{Success: true, Message: "OK", Code: models.ResultCodeOK}
}

func (p *stubPanel) Hostname() string { return "server.example.com" }
func (p *stubPanel) CreateAccount(ctx context.Context, req models.AccountRequest) models.APIResult {
	return p.answer(models.FunctionAccountNew)
}
func (p *stubPanel) RemoveAccount(ctx context.Context, username string) models.APIResult {
	return p.answer(models.FunctionAccountRemove)
}
func (p *stubPanel) SuspendAccount(ctx context.Context, username string) models.APIResult {
	return p.answer(models.FunctionAccountSuspend)
}
func (p *stubPanel) UnsuspendAccount(ctx context.Context, username string) models.APIResult {
	return p.answer(models.FunctionAccountUnsuspend)
}
func (p *stubPanel) UnblockIP(ctx context.Context, ipAddress string) models.APIResult {
	return p.answer(models.FunctionUnblockIP + ":" + ipAddress)
}
func (p *stubPanel) AccountExists(ctx context.Context, username string) bool { return false }

type memRows struct {
	rows map[int64]*models.ModuleRow
}

func (m *memRows) GetByID(ctx context.Context, id int64) (*models.ModuleRow, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}
func (m *memRows) List(ctx context.Context) ([]*models.ModuleRow, error) {
	var out []*models.ModuleRow
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}
func (m *memRows) Create(ctx context.Context, row *models.ModuleRow) error {
	row.ID = int64(len(m.rows) + 1)
	m.rows[row.ID] = row
	return nil
}
func (m *memRows) Update(ctx context.Context, row *models.ModuleRow) error {
	m.rows[row.ID] = row
	return nil
}
func (m *memRows) Delete(ctx context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}
func (m *memRows) AdjustAccountCount(ctx context.Context, id int64, delta int) error {
	m.rows[id].AccountCount += delta
	return nil
}

type memServices struct {
	services map[string]*models.Service
}

func (m *memServices) Create(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		svc.ID = "svc-new"
	}
	m.services[svc.ID] = svc
	return nil
}
func (m *memServices) GetByID(ctx context.Context, id string) (*models.Service, error) {
	svc, ok := m.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}
func (m *memServices) UpdateFields(ctx context.Context, id string, fields []models.MetaField) error {
	m.services[id].Fields = fields
	return nil
}
func (m *memServices) UpdateStatus(ctx context.Context, id, status string) error {
	m.services[id].Status = status
	return nil
}

type nopLogger struct{}

func (nopLogger) LogAction(ctx context.Context, moduleRowID int64, channel, payload, direction string, success bool) error {
	return nil
}
func (nopLogger) GetByModuleRow(ctx context.Context, moduleRowID int64, limit int) ([]*models.ModuleLog, error) {
	return []*models.ModuleLog{}, nil
}

type testEnv struct {
	server   *Server
	panel    *stubPanel
	rows     *memRows
	services *memServices
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server:         config.ServerConfig{Mode: gin.TestMode},
		JWT:            config.JWTConfig{SecretKey: testJWTSecret},
		InternalSecret: testInternalSecret,
		Panel:          config.PanelConfig{UsernameAttempts: 10, CheckAddress: "127.0.0.1"},
	}

	panel := &stubPanel{results: map[string]models.APIResult{}}
	factory := func(models.ServerConnection) service.Panel { return panel }
	rows := &memRows{rows: map[int64]*models.ModuleRow{
		1: {ID: 1, ServerName: "Main", HostName: "server.example.com", APIKey: "key"},
	}}
	services := &memServices{services: map[string]*models.Service{
		"svc-1": {
			ID:          "svc-1",
			ModuleRowID: 1,
			ClientID:    "client-1",
			Status:      models.StatusActive,
			Fields: []models.MetaField{
				{Key: models.FieldDomain, Value: "example.com"},
				{Key: models.FieldUsername, Value: "owner"},
				{Key: models.FieldPassword, Value: "abc12345", Encrypted: true},
			},
		},
		"svc-orphan": {ID: "svc-orphan", ModuleRowID: 99, ClientID: "client-1", Status: models.StatusActive},
	}}

	provision := service.NewProvisionService(cfg, rows, rows, nopLogger{}, factory)
	server := NewServer(cfg, Services{
		Records:    service.NewRecordService(provision, services),
		ModuleRows: service.NewModuleRowService(cfg, rows, nopLogger{}, nopLogger{}, factory),
		Firewall:   service.NewFirewallService(rows, nopLogger{}, factory),
	})

	return &testEnv{server: server, panel: panel, rows: rows, services: services}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func internalHeaders() map[string]string {
	return map[string]string{"X-Internal-Secret": testInternalSecret}
}

func bearer(t *testing.T, uid string) map[string]string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": uid}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cwp-provisioner", decode(t, w)["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInternalAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/internal/services/svc-1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/internal/services/svc-1", nil, map[string]string{"X-Internal-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/internal/services/svc-1", nil, internalHeaders())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "example.com", decode(t, w)["name"])
}

func TestAddService_Endpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/internal/services", map[string]any{
		"module_row_id": 1,
		"client_id":     "client-2",
		"package":       map[string]string{"package": "1", "inode": "10000", "nofile": "100", "nproc": "25"},
		"vars":          map[string]string{"centoswebpanel_domain": "test-example.com"},
		"use_module":    true,
	}, internalHeaders())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, models.StatusActive, body["status"])
	assert.Equal(t, 1, env.rows.rows[1].AccountCount)
	assert.Contains(t, env.panel.calls, models.FunctionAccountNew)
}

func TestAddService_UseModuleDefault(t *testing.T) {
	tests := []struct {
		name      string
		useModule any
		accounts  int
	}{
		{name: "omitted provisions on the panel", useModule: nil, accounts: 1},
		{name: "false tracks locally", useModule: false, accounts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			body := map[string]any{
				"module_row_id": 1,
				"client_id":     "client-2",
				"package":       map[string]string{"package": "1", "inode": "10000", "nofile": "100", "nproc": "25"},
				"vars":          map[string]string{"centoswebpanel_domain": "test-example.com"},
			}
			if tt.useModule != nil {
				body["use_module"] = tt.useModule
			}

			w := env.do(t, http.MethodPost, "/api/internal/services", body, internalHeaders())
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			assert.Equal(t, models.StatusActive, decode(t, w)["status"])
			assert.Equal(t, models.StatusActive, env.services.services["svc-new"].Status)
			assert.Equal(t, tt.accounts, env.rows.rows[1].AccountCount)
			if tt.accounts > 0 {
				assert.Contains(t, env.panel.calls, models.FunctionAccountNew)
			} else {
				assert.Empty(t, env.panel.calls)
			}
		})
	}
}

func TestAddService_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/internal/services", map[string]any{
		"module_row_id": 1,
		"client_id":     "client-2",
		"package":       map[string]string{"package": "1", "inode": "10000", "nofile": "100", "nproc": "25"},
		"vars":          map[string]string{"centoswebpanel_domain": "bad domain"},
		"use_module":    true,
	}, internalHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, "validation", body["kind"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, models.FieldDomain)
	assert.Empty(t, env.panel.calls)
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/internal/services/svc-1/suspend", nil, internalHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusSuspended, env.services.services["svc-1"].Status)

	w = env.do(t, http.MethodPost, "/api/internal/services/svc-1/unsuspend", map[string]bool{"use_module": false}, internalHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusActive, env.services.services["svc-1"].Status)
	assert.Equal(t, []string{models.FunctionAccountSuspend}, env.panel.calls)

	env.panel.results[models.FunctionAccountRemove] = models.APIResult{Message: "Error: cannot remove", Code: models.ResultCodeError}
	w = env.do(t, http.MethodPost, "/api/internal/services/svc-1/cancel", nil, internalHeaders())
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "remote_rejection", decode(t, w)["kind"])
	assert.Equal(t, models.StatusActive, env.services.services["svc-1"].Status)

	w = env.do(t, http.MethodPost, "/api/internal/services/svc-orphan/suspend", nil, internalHeaders())
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing_server", decode(t, w)["kind"])

	w = env.do(t, http.MethodPost, "/api/internal/services/nope/suspend", nil, internalHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidatePackage_Endpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/internal/packages/validate",
		map[string]string{"package": "1", "inode": "x", "nofile": "1", "nproc": "1"}, internalHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)

	errs := decode(t, w)["errors"].(map[string]any)
	assert.Contains(t, errs, "meta[inode]")
}

func TestClientFirewall(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/my/services/svc-1/firewall", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/services/svc-1/firewall", nil, bearer(t, "someone-else"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/services/svc-1/firewall", nil, bearer(t, "client-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "192.0.2.1", decode(t, w)["client_ip"])

	w = env.do(t, http.MethodPost, "/api/v1/my/services/svc-1/firewall/unblock", nil, bearer(t, "client-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{models.FunctionUnblockIP + ":192.0.2.1"}, env.panel.calls)
}

func TestAdminUnblock_InvalidIP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/internal/services/svc-1/firewall/unblock",
		map[string]string{"ip_address": "not-an-ip"}, internalHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.panel.calls)
}
