package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/validation"
)

const defaultLogLimit = 50

// ModuleRowStore persists panel server rows
type ModuleRowStore interface {
	ServerConnectionProvider
	List(ctx context.Context) ([]*models.ModuleRow, error)
	Create(ctx context.Context, row *models.ModuleRow) error
	Update(ctx context.Context, row *models.ModuleRow) error
	Delete(ctx context.Context, id int64) error
}

// ModuleLogReader lists audit entries of a server row
type ModuleLogReader interface {
	GetByModuleRow(ctx context.Context, moduleRowID int64, limit int) ([]*models.ModuleLog, error)
}

// ModuleRowInput is the submitted form of a server row
type ModuleRowInput struct {
	ServerName   string   `json:"server_name"`
	HostName     string   `json:"host_name"`
	APIKey       string   `json:"api_key"`
	UseSSL       bool     `json:"use_ssl"`
	AccountLimit string   `json:"account_limit"`
	AccountCount *int     `json:"account_count,omitempty"`
	NameServers  []string `json:"name_servers"`
	Notes        string   `json:"notes"`
}

// ModuleRowService manages the panel servers services are placed on
type ModuleRowService struct {
	panelGateway
	store        ModuleRowStore
	logs         ModuleLogReader
	checkAddress string
}

// NewModuleRowService creates a new module row service
func NewModuleRowService(
	cfg *config.Config,
	store ModuleRowStore,
	logger ModuleLogger,
	logs ModuleLogReader,
	panels PanelFactory,
) *ModuleRowService {
	return &ModuleRowService{
		panelGateway: panelGateway{
			rows:   store,
			logger: logger,
			panels: panels,
		},
		store:        store,
		logs:         logs,
		checkAddress: cfg.Panel.CheckAddress,
	}
}

// AddModuleRow validates and stores a new server row
func (s *ModuleRowService) AddModuleRow(ctx context.Context, input *ModuleRowInput) (*models.ModuleRow, []models.MetaField, error) {
	row, err := s.buildRow(ctx, 0, input)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.Create(ctx, row); err != nil {
		return nil, nil, fmt.Errorf("create module row: %w", err)
	}

	log.Printf("[ModuleRow] Added server %d (%s)", row.ID, row.HostName)
	return row, rowFields(row, false), nil
}

// EditModuleRow validates and replaces a server row. The account count is
// only changed when the input carries one.
func (s *ModuleRowService) EditModuleRow(ctx context.Context, id int64, input *ModuleRowInput) (*models.ModuleRow, []models.MetaField, error) {
	current, err := s.resolveRow(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.buildRow(ctx, current.ID, input)
	if err != nil {
		return nil, nil, err
	}
	row.CreatedAt = current.CreatedAt
	row.AccountCount = current.AccountCount
	if input.AccountCount != nil && *input.AccountCount >= 0 {
		row.AccountCount = *input.AccountCount
	}

	if err := s.store.Update(ctx, row); err != nil {
		return nil, nil, fmt.Errorf("update module row: %w", err)
	}

	log.Printf("[ModuleRow] Updated server %d (%s)", row.ID, row.HostName)
	return row, rowFields(row, true), nil
}

// DeleteModuleRow removes a server row
func (s *ModuleRowService) DeleteModuleRow(ctx context.Context, id int64) error {
	if _, err := s.resolveRow(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete module row: %w", err)
	}
	log.Printf("[ModuleRow] Deleted server %d", id)
	return nil
}

// GetModuleRow returns one server row
func (s *ModuleRowService) GetModuleRow(ctx context.Context, id int64) (*models.ModuleRow, error) {
	return s.resolveRow(ctx, id)
}

// ListModuleRows returns every server row
func (s *ModuleRowService) ListModuleRows(ctx context.Context) ([]*models.ModuleRow, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list module rows: %w", err)
	}
	return rows, nil
}

// Logs returns the latest audit entries of a server row
func (s *ModuleRowService) Logs(ctx context.Context, id int64, limit int) ([]*models.ModuleLog, error) {
	if _, err := s.resolveRow(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	logs, err := s.logs.GetByModuleRow(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("get module logs: %w", err)
	}
	return logs, nil
}

// buildRow validates input as row id. The id must be set before the
// connection check so its audit entries land on the right row.
func (s *ModuleRowService) buildRow(ctx context.Context, id int64, input *ModuleRowInput) (*models.ModuleRow, error) {
	nameServers := make([]string, 0, len(input.NameServers))
	for _, ns := range input.NameServers {
		if ns = strings.TrimSpace(ns); ns != "" {
			nameServers = append(nameServers, ns)
		}
	}

	row := &models.ModuleRow{
		ID:          id,
		ServerName:  strings.TrimSpace(input.ServerName),
		HostName:    strings.TrimSpace(input.HostName),
		APIKey:      strings.TrimSpace(input.APIKey),
		UseSSL:      input.UseSSL,
		NameServers: nameServers,
		Notes:       input.Notes,
	}

	if errs := s.validateRow(ctx, row, input.AccountLimit); !errs.Empty() {
		return nil, validationError(errs)
	}

	if limit := strings.TrimSpace(input.AccountLimit); limit != "" {
		n, _ := strconv.Atoi(limit)
		row.AccountLimit = &n
	}
	return row, nil
}

func (s *ModuleRowService) validateRow(ctx context.Context, row *models.ModuleRow, accountLimit string) validation.Errors {
	rules := []validation.FieldRules{
		{Field: "server_name", Rules: []validation.Rule{
			validation.Required("empty", msgServerNameValid),
		}},
		{Field: "host_name", Rules: []validation.Rule{
			validation.Custom("format", validation.HostNameRule, msgHostNameValid),
		}},
		{Field: "api_key", Rules: []validation.Rule{
			validation.Required("empty", msgAPIKeyValid).StopOnFailure(),
			validation.Custom("valid_connection", func(any) bool {
				return s.checkConnection(ctx, row)
			}, msgAPIKeyConnection),
		}},
		{Field: "account_limit", Rules: []validation.Rule{
			validation.Pattern("valid", `^[0-9]+$`, msgAccountLimitValid).OnlyIfSet(),
		}},
		{Field: "name_servers", Rules: []validation.Rule{
			validation.Custom("count", validation.NameServerCount, msgNameServersCount),
			validation.Custom("valid", validation.NameServers, msgNameServersValid),
		}},
	}

	return validation.Validate(rules, validation.Input{
		"server_name":   row.ServerName,
		"host_name":     row.HostName,
		"api_key":       row.APIKey,
		"account_limit": strings.TrimSpace(accountLimit),
		"name_servers":  row.NameServers,
	})
}

// checkConnection issues a harmless unblock_ip; any reply proves the host
// and key reach a panel
func (s *ModuleRowService) checkConnection(ctx context.Context, row *models.ModuleRow) bool {
	if !validation.HostName(row.HostName) {
		return false
	}

	s.logInput(ctx, row, models.FunctionUnblockIP, map[string]string{"user_ip": s.checkAddress})
	result := s.panels(row.Connection()).UnblockIP(ctx, s.checkAddress)
	s.audit(ctx, row.ID, row.HostName, result, models.DirectionOutput, result.Success)

	return result.Message != ""
}

// rowFields is the meta field form of a row; the api key is stored encrypted
func rowFields(row *models.ModuleRow, edit bool) []models.MetaField {
	limit := ""
	if row.AccountLimit != nil {
		limit = strconv.Itoa(*row.AccountLimit)
	}

	fields := []models.MetaField{
		{Key: "server_name", Value: row.ServerName},
		{Key: "host_name", Value: row.HostName},
		{Key: "api_key", Value: row.APIKey, Encrypted: true},
		{Key: "use_ssl", Value: strconv.FormatBool(row.UseSSL)},
		{Key: "account_limit", Value: limit},
		{Key: "name_servers", Value: strings.Join(row.NameServers, ",")},
		{Key: "notes", Value: row.Notes},
	}
	if edit {
		fields = append(fields, models.MetaField{Key: "account_count", Value: strconv.Itoa(row.AccountCount)})
	}
	return fields
}
