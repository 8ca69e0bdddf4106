package service

import (
	"context"
	"log"
	"strings"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/validation"
)

// FirewallService removes addresses from a panel server's block lists
type FirewallService struct {
	panelGateway
}

// NewFirewallService creates a new firewall service
func NewFirewallService(rows ServerConnectionProvider, logger ModuleLogger, panels PanelFactory) *FirewallService {
	return &FirewallService{
		panelGateway: panelGateway{
			rows:   rows,
			logger: logger,
			panels: panels,
		},
	}
}

// UnblockIP lifts every block on ip at the server of moduleRowID
func (s *FirewallService) UnblockIP(ctx context.Context, moduleRowID int64, ip string) error {
	ip = strings.TrimSpace(ip)
	if !validation.IPAddress(ip) {
		errs := validation.Errors{}
		errs.Add("ip_address", "valid", msgIPAddressValid)
		return validationError(errs)
	}

	row, err := s.resolveRow(ctx, moduleRowID)
	if err != nil {
		return err
	}

	s.logInput(ctx, row, models.FunctionUnblockIP, map[string]string{"user_ip": ip})
	result := s.panels(row.Connection()).UnblockIP(ctx, ip)
	if err := s.checkResult(ctx, row, result); err != nil {
		transitionsTotal.WithLabelValues("unblock_ip", outcomeFailed).Inc()
		log.Printf("[Firewall] Unblock of %s on %s failed: %v", ip, row.HostName, err)
		return err
	}

	transitionsTotal.WithLabelValues("unblock_ip", outcomeSucceeded).Inc()
	log.Printf("[Firewall] Unblocked %s on %s", ip, row.HostName)
	return nil
}
