package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/client"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/repository"
)

// Panel is the CentOS WebPanel API surface the services drive
type Panel interface {
	Hostname() string
	CreateAccount(ctx context.Context, req models.AccountRequest) models.APIResult
	RemoveAccount(ctx context.Context, username string) models.APIResult
	SuspendAccount(ctx context.Context, username string) models.APIResult
	UnsuspendAccount(ctx context.Context, username string) models.APIResult
	UnblockIP(ctx context.Context, ipAddress string) models.APIResult
	AccountExists(ctx context.Context, username string) bool
}

// PanelFactory opens a Panel for a server connection
type PanelFactory func(conn models.ServerConnection) Panel

// NewPanelFactory returns a factory building HTTP panel clients
func NewPanelFactory(timeout time.Duration) PanelFactory {
	return func(conn models.ServerConnection) Panel {
		return client.NewPanelClient(conn, timeout)
	}
}

// ServerConnectionProvider resolves server rows
type ServerConnectionProvider interface {
	GetByID(ctx context.Context, id int64) (*models.ModuleRow, error)
}

// AccountCounter keeps the per-server live account count
type AccountCounter interface {
	AdjustAccountCount(ctx context.Context, id int64, delta int) error
}

// ModuleLogger records traffic with panel servers for audit
type ModuleLogger interface {
	LogAction(ctx context.Context, moduleRowID int64, channel, payload, direction string, success bool) error
}

// panelGateway holds what every panel-facing service needs
type panelGateway struct {
	rows   ServerConnectionProvider
	logger ModuleLogger
	panels PanelFactory
}

func (g *panelGateway) resolveRow(ctx context.Context, id int64) (*models.ModuleRow, error) {
	row, err := g.rows.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fieldError(KindMissingServer, "module_row", "missing", msgModuleRowMissing, err)
		}
		return nil, fmt.Errorf("get module row: %w", err)
	}
	return row, nil
}

// logInput audits an outgoing call on channel "<host>|<function>"
func (g *panelGateway) logInput(ctx context.Context, row *models.ModuleRow, function string, payload any) {
	g.audit(ctx, row.ID, row.HostName+"|"+function, payload, models.DirectionInput, true)
}

// checkResult audits a panel reply and maps it onto an error
func (g *panelGateway) checkResult(ctx context.Context, row *models.ModuleRow, result models.APIResult) error {
	g.audit(ctx, row.ID, row.HostName, result, models.DirectionOutput, result.Success)
	return resultError(result)
}

func (g *panelGateway) audit(ctx context.Context, rowID int64, channel string, payload any, direction string, success bool) {
	if g.logger == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Audit] Failed to encode %s payload for %s: %v", direction, channel, err)
		return
	}

	if err := g.logger.LogAction(ctx, rowID, channel, string(body), direction, success); err != nil {
		log.Printf("[Audit] Failed to record %s on %s: %v", direction, channel, err)
	}
}

// existsFunction names username lookups in the module log. Each lookup is an
// account_new followed by an account_remove on the panel.
const existsFunction = "account_exists"

// auditedChecker records username lookups in the module log
type auditedChecker struct {
	gateway *panelGateway
	row     *models.ModuleRow
	panel   Panel
}

func (g *panelGateway) checker(row *models.ModuleRow, panel Panel) auditedChecker {
	return auditedChecker{gateway: g, row: row, panel: panel}
}

func (a auditedChecker) AccountExists(ctx context.Context, username string) bool {
	a.gateway.logInput(ctx, a.row, existsFunction, map[string]string{"username": username})
	exists := a.panel.AccountExists(ctx, username)
	a.gateway.audit(ctx, a.row.ID, a.row.HostName, map[string]any{"username": username, "exists": exists}, models.DirectionOutput, true)
	return exists
}
