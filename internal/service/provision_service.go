package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/identity"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/validation"
)

const minPasswordLength = 8

// AddServiceRequest asks for a new hosting account
type AddServiceRequest struct {
	ModuleRowID int64
	Package     models.PackageMeta
	Vars        models.ServiceVars
	// UseModule provisions on the panel; false tracks the service locally only
	UseModule bool
}

// EditServiceRequest updates the local fields of a service
type EditServiceRequest struct {
	Service   *models.Service
	Vars      models.ServiceVars
	UseModule bool
}

// LifecycleRequest drives a suspend, unsuspend or cancel
type LifecycleRequest struct {
	ModuleRowID int64
	Service     *models.Service
	UseModule   bool
}

// ProvisionService maps billing lifecycle events onto panel accounts
type ProvisionService struct {
	panelGateway
	counter          AccountCounter
	usernameAttempts int
}

// NewProvisionService creates a new provision service
func NewProvisionService(
	cfg *config.Config,
	rows ServerConnectionProvider,
	counter AccountCounter,
	logger ModuleLogger,
	panels PanelFactory,
) *ProvisionService {
	return &ProvisionService{
		panelGateway: panelGateway{
			rows:   rows,
			logger: logger,
			panels: panels,
		},
		counter:          counter,
		usernameAttempts: cfg.Panel.UsernameAttempts,
	}
}

// AddService creates the panel account of a new service and returns the
// fields the billing system must store. Missing usernames and passwords
// are generated. Nothing is returned when creation fails.
func (s *ProvisionService) AddService(ctx context.Context, req *AddServiceRequest) ([]models.MetaField, error) {
	row, err := s.resolveRow(ctx, req.ModuleRowID)
	if err != nil {
		return nil, err
	}
	panel := s.panels(row.Connection())

	vars := req.Vars

	// Username lookups create accounts, so whatever was supplied must be
	// valid before any of them run
	errs := ValidateService(vars, true)
	_, limitErrs := accountRequest(vars, req.Package)
	errs.Merge(limitErrs)
	if !errs.Empty() {
		return nil, validationError(errs)
	}

	if vars.Domain != nil {
		if value(vars.Username) == "" {
			// Collision checks create accounts, so only run them when provisioning
			var checker identity.AccountChecker
			if req.UseModule {
				checker = s.checker(row, panel)
			}
			username, err := identity.NewUsernameGenerator(checker, s.usernameAttempts).Generate(ctx, *vars.Domain)
			if err != nil {
				if errors.Is(err, identity.ErrGenerationExhausted) {
					return nil, fieldError(KindGenerationExhausted, models.FieldUsername, "generate", msgUsernameGenerate, err)
				}
				return nil, fmt.Errorf("generate username: %w", err)
			}
			vars.Username = &username
		}

		if value(vars.Password) == "" {
			password, err := identity.GeneratePassword(10, 14)
			if err != nil {
				return nil, fmt.Errorf("generate password: %w", err)
			}
			vars.Password = &password
		}
	}

	errs = ValidateService(vars, false)
	account, accountErrs := accountRequest(vars, req.Package)
	errs.Merge(accountErrs)
	if !errs.Empty() {
		return nil, validationError(errs)
	}

	if req.UseModule {
		log.Printf("[Provision] Creating account %s for %s on %s", account.Username, account.Domain, row.HostName)

		s.logInput(ctx, row, models.FunctionAccountNew, maskedParams(account))
		result := panel.CreateAccount(ctx, account)
		if err := s.checkResult(ctx, row, result); err != nil {
			transitionsTotal.WithLabelValues("create", outcomeFailed).Inc()
			log.Printf("[Provision] Account creation failed for %s: %v", account.Domain, err)
			return nil, err
		}

		s.adjustAccountCount(ctx, row.ID, 1)
		transitionsTotal.WithLabelValues("create", outcomeSucceeded).Inc()
	}

	return []models.MetaField{
		{Key: models.FieldDomain, Value: value(vars.Domain)},
		{Key: models.FieldUsername, Value: value(vars.Username)},
		{Key: models.FieldPassword, Value: value(vars.Password), Encrypted: true},
	}, nil
}

// EditService updates the stored fields of a service. The panel API has no
// update call, so nothing changes remotely. A blank password keeps the
// current one.
func (s *ProvisionService) EditService(ctx context.Context, req *EditServiceRequest) ([]models.MetaField, error) {
	if req.Service == nil {
		return nil, errors.New("service is required")
	}

	vars := req.Vars
	// Fields not being changed are validated at their stored value
	if vars.Domain == nil {
		if domain, ok := req.Service.Field(models.FieldDomain); ok {
			vars.Domain = &domain
		}
	}

	if errs := ValidateService(vars, true); !errs.Empty() {
		return nil, validationError(errs)
	}

	updates := map[string]*string{
		models.FieldDomain:   vars.Domain,
		models.FieldUsername: vars.Username,
		models.FieldPassword: vars.Password,
	}

	fields := make([]models.MetaField, 0, len(req.Service.Fields))
	for _, f := range req.Service.Fields {
		if v, ok := updates[f.Key]; ok && value(v) != "" {
			f.Value = *v
		}
		f.Encrypted = f.Key == models.FieldPassword
		fields = append(fields, f)
	}

	transitionsTotal.WithLabelValues("edit", outcomeSucceeded).Inc()
	return fields, nil
}

// SuspendService suspends the panel account. The call is issued on every
// request, even for services already suspended.
func (s *ProvisionService) SuspendService(ctx context.Context, req *LifecycleRequest) error {
	return s.usernameCall(ctx, req, "suspend", models.FunctionAccountSuspend, Panel.SuspendAccount)
}

// UnsuspendService lifts a suspension of the panel account
func (s *ProvisionService) UnsuspendService(ctx context.Context, req *LifecycleRequest) error {
	return s.usernameCall(ctx, req, "unsuspend", models.FunctionAccountUnsuspend, Panel.UnsuspendAccount)
}

// CancelService removes the panel account and decrements the server's
// account count once the panel confirms the removal
func (s *ProvisionService) CancelService(ctx context.Context, req *LifecycleRequest) error {
	if err := s.usernameCall(ctx, req, "cancel", models.FunctionAccountRemove, Panel.RemoveAccount); err != nil {
		return err
	}
	if req.UseModule {
		s.adjustAccountCount(ctx, req.ModuleRowID, -1)
	}
	return nil
}

// ChangeServicePackage is a no-op: the panel cannot move accounts between packages
func (s *ProvisionService) ChangeServicePackage(ctx context.Context, req *LifecycleRequest) ([]models.MetaField, error) {
	return nil, nil
}

func (s *ProvisionService) usernameCall(
	ctx context.Context,
	req *LifecycleRequest,
	transition, function string,
	call func(Panel, context.Context, string) models.APIResult,
) error {
	if !req.UseModule {
		return nil
	}
	if req.Service == nil {
		return errors.New("service is required")
	}

	row, err := s.resolveRow(ctx, req.ModuleRowID)
	if err != nil {
		return err
	}

	username := req.Service.Username()
	log.Printf("[Provision] %s account %s on %s", transition, username, row.HostName)

	s.logInput(ctx, row, function, username)
	result := call(s.panels(row.Connection()), ctx, username)
	if err := s.checkResult(ctx, row, result); err != nil {
		transitionsTotal.WithLabelValues(transition, outcomeFailed).Inc()
		log.Printf("[Provision] %s failed for %s: %v", transition, username, err)
		return err
	}

	transitionsTotal.WithLabelValues(transition, outcomeSucceeded).Inc()
	return nil
}

func (s *ProvisionService) adjustAccountCount(ctx context.Context, rowID int64, delta int) {
	if err := s.counter.AdjustAccountCount(ctx, rowID, delta); err != nil {
		log.Printf("[Provision] Failed to update account count of row %d: %v", rowID, err)
	}
}

// ValidateService checks service input. Empty usernames and passwords are
// skipped; on create a password must be present.
func ValidateService(vars models.ServiceVars, edit bool) validation.Errors {
	passwordRules := []validation.Rule{
		validation.Custom("valid", func(v any) bool {
			s, _ := v.(string)
			return validation.Password(s, minPasswordLength)
		}, msgPasswordValid).OnlyIfSet().StopOnFailure(),
	}
	if !edit {
		passwordRules = append([]validation.Rule{
			validation.Required("empty", msgPasswordRequired).StopOnFailure(),
		}, passwordRules...)
	}

	rules := []validation.FieldRules{
		{Field: models.FieldDomain, Rules: []validation.Rule{
			validation.Custom("format", validation.HostNameRule, msgDomainFormat),
		}},
		{Field: models.FieldUsername, Rules: []validation.Rule{
			validation.Pattern("format", `^(?i)[a-z][a-z0-9]*$`, msgUsernameFormat).OnlyIfSet(),
			validation.LengthRange("length", 1, 16, msgUsernameLength).OnlyIfSet(),
		}},
		{Field: models.FieldPassword, Rules: passwordRules},
	}

	input := validation.Input{}
	for key, v := range map[string]*string{
		models.FieldDomain:   vars.Domain,
		models.FieldUsername: vars.Username,
		models.FieldPassword: vars.Password,
	} {
		if v != nil {
			input[key] = *v
		}
	}

	return validation.Validate(rules, input)
}

func accountRequest(vars models.ServiceVars, pkg models.PackageMeta) (models.AccountRequest, validation.Errors) {
	errs := validation.Errors{}
	limit := func(field, raw, message string) int {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			errs.Add("meta["+field+"]", "valid", message)
		}
		return n
	}

	req := models.AccountRequest{
		Domain:       value(vars.Domain),
		Username:     value(vars.Username),
		Password:     value(vars.Password),
		PackageID:    pkg.Package,
		Email:        vars.Email,
		InodeLimit:   limit("inode", pkg.Inode, msgPackageInodeValid),
		MaxFiles:     limit("nofile", pkg.Nofile, msgPackageNofileValid),
		MaxProcesses: limit("nproc", pkg.Nproc, msgPackageNprocValid),
	}
	if strings.TrimSpace(pkg.Package) == "" {
		errs.Add("meta[package]", "empty", msgPackageEmpty)
	}

	return req, errs
}

// maskedParams is the audit form of an account_new call
func maskedParams(req models.AccountRequest) map[string]any {
	return map[string]any{
		"domain":   req.Domain,
		"username": req.Username,
		"password": "***",
		"package":  req.PackageID,
		"email":    req.Email,
		"inode":    req.InodeLimit,
		"nofile":   req.MaxFiles,
		"nproc":    req.MaxProcesses,
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
