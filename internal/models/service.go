package models

import "time"

// Service status constants
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCanceled  = "canceled"
)

// Service field keys
const (
	FieldDomain   = "centoswebpanel_domain"
	FieldUsername = "centoswebpanel_username"
	FieldPassword = "centoswebpanel_password"
	FieldEmail    = "centoswebpanel_email"
)

// ServiceFieldKeys lists the persisted service fields in storage order
var ServiceFieldKeys = []string{FieldDomain, FieldUsername, FieldPassword}

// Service is a provisioned hosting account as tracked by the billing system
type Service struct {
	ID          string      `json:"id"`
	ModuleRowID int64       `json:"module_row_id"`
	ClientID    string      `json:"client_id"`
	Status      string      `json:"status"`
	Fields      []MetaField `json:"fields"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Field returns the value stored under key and whether it exists
func (s *Service) Field(key string) (string, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Name identifies the service amongst similar services (its domain)
func (s *Service) Name() string {
	domain, _ := s.Field(FieldDomain)
	return domain
}

// Username returns the panel account username of the service
func (s *Service) Username() string {
	username, _ := s.Field(FieldUsername)
	return username
}

// ServiceVars is the user supplied input of a service add/edit
type ServiceVars struct {
	Domain   *string `json:"centoswebpanel_domain,omitempty"`
	Username *string `json:"centoswebpanel_username,omitempty"`
	Password *string `json:"centoswebpanel_password,omitempty"`
	Email    string  `json:"centoswebpanel_email,omitempty"`
}

// ModuleLog is one audit entry of traffic with a panel server
type ModuleLog struct {
	ID          string    `json:"id"`
	ModuleRowID int64     `json:"module_row_id"`
	Channel     string    `json:"channel"`
	Payload     string    `json:"payload"`
	Direction   string    `json:"direction"`
	Success     bool      `json:"success"`
	CreatedAt   time.Time `json:"created_at"`
}

// Module log directions
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)
