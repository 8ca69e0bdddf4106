package models

import "time"

// API result codes reported by the response classifier
const (
	ResultCodeOK    = 200
	ResultCodeError = 500
)

// Panel API functions
const (
	FunctionAccountNew       = "account_new"
	FunctionAccountRemove    = "account_remove"
	FunctionAccountSuspend   = "account_suspend"
	FunctionAccountUnsuspend = "account_unsuspend"
	FunctionUnblockIP        = "unblock_ip"
)

// ServerConnection identifies one CentOS WebPanel server
type ServerConnection struct {
	Hostname string
	APIKey   string
	UseSSL   bool
}

// APIResult is the normalized outcome of one panel API call
type APIResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// AccountRequest carries the parameters of account_new
type AccountRequest struct {
	Domain       string
	Username     string
	Password     string
	PackageID    string
	Email        string
	InodeLimit   int
	MaxFiles     int
	MaxProcesses int
}

// String masks the password so requests are safe to print
func (r AccountRequest) String() string {
	return "AccountRequest{domain=" + r.Domain + " username=" + r.Username + " package=" + r.PackageID + "}"
}

// ModuleRow is a configured panel server as stored by this service
type ModuleRow struct {
	ID           int64     `json:"id"`
	ServerName   string    `json:"server_name"`
	HostName     string    `json:"host_name"`
	APIKey       string    `json:"-"`
	UseSSL       bool      `json:"use_ssl"`
	AccountLimit *int      `json:"account_limit"`
	AccountCount int       `json:"account_count"`
	NameServers  []string  `json:"name_servers"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Connection returns the connection details of the row
func (r *ModuleRow) Connection() ServerConnection {
	return ServerConnection{
		Hostname: r.HostName,
		APIKey:   r.APIKey,
		UseSSL:   r.UseSSL,
	}
}

// PackageMeta holds the resource limits configured on a billing package
type PackageMeta struct {
	Package string `json:"package"`
	Inode   string `json:"inode"`
	Nofile  string `json:"nofile"`
	Nproc   string `json:"nproc"`
}

// MetaField is a (key, value, encrypted) tuple the billing system persists
type MetaField struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Encrypted bool   `json:"encrypted"`
}
