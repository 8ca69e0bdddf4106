package service

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/repository"
)

var okResult = models.APIResult{Success: true, Message: "OK", Code: models.ResultCodeOK}

type panelCall struct {
	function string
	arg      string
}

// fakePanel records calls and answers with configured results
type fakePanel struct {
	mu       sync.Mutex
	calls    []panelCall
	results  map[string]models.APIResult
	taken    map[string]bool
	accounts []models.AccountRequest
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		results: map[string]models.APIResult{},
		taken:   map[string]bool{},
	}
}

func (p *fakePanel) record(function, arg string) models.APIResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, panelCall{function: function, arg: arg})
	if result, ok := p.results[function]; ok {
		return result
	}
	return okResult
}

func (p *fakePanel) count(function string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.function == function {
			n++
		}
	}
	return n
}

func (p *fakePanel) Hostname() string { return "server.example.com" }

func (p *fakePanel) CreateAccount(ctx context.Context, req models.AccountRequest) models.APIResult {
	p.mu.Lock()
	p.accounts = append(p.accounts, req)
	p.mu.Unlock()
	return p.record(models.FunctionAccountNew, req.Username)
}

func (p *fakePanel) RemoveAccount(ctx context.Context, username string) models.APIResult {
	return p.record(models.FunctionAccountRemove, username)
}

func (p *fakePanel) SuspendAccount(ctx context.Context, username string) models.APIResult {
	return p.record(models.FunctionAccountSuspend, username)
}

func (p *fakePanel) UnsuspendAccount(ctx context.Context, username string) models.APIResult {
	return p.record(models.FunctionAccountUnsuspend, username)
}

func (p *fakePanel) UnblockIP(ctx context.Context, ipAddress string) models.APIResult {
	return p.record(models.FunctionUnblockIP, ipAddress)
}

func (p *fakePanel) AccountExists(ctx context.Context, username string) bool {
	p.record("account_exists", username)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taken[username]
}

func (p *fakePanel) factory() PanelFactory {
	return func(models.ServerConnection) Panel { return p }
}

// fakeRows is an in-memory row store and account counter
type fakeRows struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.ModuleRow
}

func newFakeRows(rows ...*models.ModuleRow) *fakeRows {
	f := &fakeRows{rows: map[int64]*models.ModuleRow{}}
	for _, r := range rows {
		f.rows[r.ID] = r
		if r.ID > f.nextID {
			f.nextID = r.ID
		}
	}
	return f
}

func (f *fakeRows) GetByID(ctx context.Context, id int64) (*models.ModuleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRows) List(ctx context.Context) ([]*models.ModuleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ModuleRow, 0, len(f.rows))
	for _, r := range f.rows {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRows) Create(ctx context.Context, row *models.ModuleRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row.ID = f.nextID
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

func (f *fakeRows) Update(ctx context.Context, row *models.ModuleRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[row.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

func (f *fakeRows) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeRows) AdjustAccountCount(ctx context.Context, id int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.AccountCount += delta
	if row.AccountCount < 0 {
		row.AccountCount = 0
	}
	return nil
}

func (f *fakeRows) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].AccountCount
}

// fakeLogger keeps audit entries in memory
type fakeLogger struct {
	mu      sync.Mutex
	entries []*models.ModuleLog
}

func (l *fakeLogger) LogAction(ctx context.Context, moduleRowID int64, channel, payload, direction string, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, &models.ModuleLog{
		ID:          strconv.Itoa(len(l.entries) + 1),
		ModuleRowID: moduleRowID,
		Channel:     channel,
		Payload:     payload,
		Direction:   direction,
		Success:     success,
	})
	return nil
}

func (l *fakeLogger) GetByModuleRow(ctx context.Context, moduleRowID int64, limit int) ([]*models.ModuleLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.ModuleLog
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].ModuleRowID == moduleRowID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

// fakeServices is an in-memory ServiceStore
type fakeServices struct {
	mu       sync.Mutex
	services map[string]*models.Service
}

func newFakeServices() *fakeServices {
	return &fakeServices{services: map[string]*models.Service{}}
}

func (f *fakeServices) Create(ctx context.Context, svc *models.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc.ID = "svc-" + strconv.Itoa(len(f.services)+1)
	cp := *svc
	f.services[svc.ID] = &cp
	return nil
}

func (f *fakeServices) GetByID(ctx context.Context, id string) (*models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *svc
	cp.Fields = append([]models.MetaField(nil), svc.Fields...)
	return &cp, nil
}

func (f *fakeServices) UpdateFields(ctx context.Context, id string, fields []models.MetaField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[id].Fields = fields
	return nil
}

func (f *fakeServices) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[id].Status = status
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Panel: config.PanelConfig{
			UsernameAttempts: 10,
			CheckAddress:     "127.0.0.1",
		},
	}
}

func testRow() *models.ModuleRow {
	return &models.ModuleRow{
		ID:          1,
		ServerName:  "Main",
		HostName:    "server.example.com",
		APIKey:      "key",
		NameServers: []string{"ns1.example.com", "ns2.example.com"},
	}
}

func testPackage() models.PackageMeta {
	return models.PackageMeta{Package: "1", Inode: "10000", Nofile: "100", Nproc: "25"}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func field(fields []models.MetaField, key string) (models.MetaField, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return models.MetaField{}, false
}
