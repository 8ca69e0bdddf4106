package service

import (
	"context"
	"fmt"
	"log"

	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
)

// ServiceStore persists services and their meta fields
type ServiceStore interface {
	Create(ctx context.Context, svc *models.Service) error
	GetByID(ctx context.Context, id string) (*models.Service, error)
	UpdateFields(ctx context.Context, id string, fields []models.MetaField) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// CreateServiceRequest asks for a new tracked service
type CreateServiceRequest struct {
	ModuleRowID int64              `json:"module_row_id" binding:"required"`
	ClientID    string             `json:"client_id" binding:"required"`
	Package     models.PackageMeta `json:"package"`
	Vars        models.ServiceVars `json:"vars"`
	// UseModule defaults to provisioning on the panel when omitted
	UseModule *bool `json:"use_module"`
}

func (r *CreateServiceRequest) useModule() bool {
	return r.UseModule == nil || *r.UseModule
}

// RecordService stores the outcome of each lifecycle transition
type RecordService struct {
	provision *ProvisionService
	store     ServiceStore
}

// NewRecordService creates a new record service
func NewRecordService(provision *ProvisionService, store ServiceStore) *RecordService {
	return &RecordService{
		provision: provision,
		store:     store,
	}
}

// Get returns a stored service
func (s *RecordService) Get(ctx context.Context, id string) (*models.Service, error) {
	return s.store.GetByID(ctx, id)
}

// Create provisions a service and stores its fields
func (s *RecordService) Create(ctx context.Context, req *CreateServiceRequest) (*models.Service, error) {
	fields, err := s.provision.AddService(ctx, &AddServiceRequest{
		ModuleRowID: req.ModuleRowID,
		Package:     req.Package,
		Vars:        req.Vars,
		UseModule:   req.useModule(),
	})
	if err != nil {
		return nil, err
	}

	// Local-only services are tracked as active like provisioned ones
	svc := &models.Service{
		ModuleRowID: req.ModuleRowID,
		ClientID:    req.ClientID,
		Status:      models.StatusActive,
		Fields:      fields,
	}
	if err := s.store.Create(ctx, svc); err != nil {
		// The panel account exists at this point; the log line is all that
		// links it back to the failed record
		log.Printf("[Records] Failed to store service %s on row %d: %v", svc.Name(), req.ModuleRowID, err)
		return nil, fmt.Errorf("create service: %w", err)
	}

	log.Printf("[Records] Created service %s (%s) for client %s", svc.ID, svc.Name(), svc.ClientID)
	return svc, nil
}

// Edit updates the stored fields of a service
func (s *RecordService) Edit(ctx context.Context, id string, vars models.ServiceVars, useModule bool) (*models.Service, error) {
	svc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.provision.EditService(ctx, &EditServiceRequest{
		Service:   svc,
		Vars:      vars,
		UseModule: useModule,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update service fields: %w", err)
	}
	svc.Fields = fields
	return svc, nil
}

// Suspend suspends a service
func (s *RecordService) Suspend(ctx context.Context, id string, useModule bool) (*models.Service, error) {
	return s.transition(ctx, id, useModule, models.StatusSuspended, s.provision.SuspendService)
}

// Unsuspend reactivates a suspended service
func (s *RecordService) Unsuspend(ctx context.Context, id string, useModule bool) (*models.Service, error) {
	return s.transition(ctx, id, useModule, models.StatusActive, s.provision.UnsuspendService)
}

// Cancel terminates a service
func (s *RecordService) Cancel(ctx context.Context, id string, useModule bool) (*models.Service, error) {
	return s.transition(ctx, id, useModule, models.StatusCanceled, s.provision.CancelService)
}

// ChangePackage accepts a package change; the account is left as is
func (s *RecordService) ChangePackage(ctx context.Context, id string, useModule bool) (*models.Service, error) {
	svc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.provision.ChangeServicePackage(ctx, &LifecycleRequest{
		ModuleRowID: svc.ModuleRowID,
		Service:     svc,
		UseModule:   useModule,
	}); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *RecordService) transition(
	ctx context.Context,
	id string,
	useModule bool,
	status string,
	apply func(context.Context, *LifecycleRequest) error,
) (*models.Service, error) {
	svc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := apply(ctx, &LifecycleRequest{
		ModuleRowID: svc.ModuleRowID,
		Service:     svc,
		UseModule:   useModule,
	}); err != nil {
		return nil, err
	}

	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update service status: %w", err)
	}
	svc.Status = status
	return svc, nil
}
