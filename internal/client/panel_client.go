package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/identity"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/models"
)

const (
	plainPort  = 2030
	securePort = 2031

	// DefaultTimeout bounds every panel request
	DefaultTimeout = 20 * time.Second
)

// PanelClient calls the CentOS WebPanel account API of one server
type PanelClient struct {
	conn       models.ServerConnection
	baseURL    string
	httpClient *http.Client
}

// NewPanelClient creates a client for conn. Each request opens a fresh
// connection and certificates are not verified: panels ship self-signed
// certificates on port 2031.
func NewPanelClient(conn models.ServerConnection, timeout time.Duration) *PanelClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &PanelClient{
		conn:    conn,
		baseURL: BaseURL(conn),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // panels use self-signed certificates
				},
			},
		},
	}
}

// BaseURL returns scheme://host:port for conn (https on 2031, http on 2030)
func BaseURL(conn models.ServerConnection) string {
	if conn.UseSSL {
		return fmt.Sprintf("https://%s:%d", conn.Hostname, securePort)
	}
	return fmt.Sprintf("http://%s:%d", conn.Hostname, plainPort)
}

// Hostname returns the panel host this client talks to
func (c *PanelClient) Hostname() string {
	return c.conn.Hostname
}

// Send invokes an API function with params and classifies the reply.
// The API key travels in the query string, as the panel requires.
// Transport failures classify like an empty reply.
func (c *PanelClient) Send(ctx context.Context, function string, params url.Values) models.APIResult {
	timer := prometheus.NewTimer(panelRequestDuration.WithLabelValues(function))
	defer timer.ObserveDuration()

	raw, err := c.fetch(ctx, function, params)
	if err != nil {
		log.Printf("[PanelClient] %s %s failed: %v", c.conn.Hostname, function, err)
		panelRequestsTotal.WithLabelValues(function, outcomeTransport).Inc()
		return Classify("")
	}

	result := Classify(raw)
	if result.Success {
		panelRequestsTotal.WithLabelValues(function, outcomeSuccess).Inc()
	} else {
		panelRequestsTotal.WithLabelValues(function, outcomeRejected).Inc()
	}

	return result
}

func (c *PanelClient) fetch(ctx context.Context, function string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(function, params), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", redactURL(err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", redactURL(err))
	}
	defer resp.Body.Close()

	// The body is classified whatever the status code
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return string(body), nil
}

func (c *PanelClient) requestURL(function string, params url.Values) string {
	query := "key=" + url.QueryEscape(c.conn.APIKey) + "&api=" + url.QueryEscape(function)
	if encoded := params.Encode(); encoded != "" {
		query += "&" + encoded
	}
	return c.baseURL + "/api/?" + query
}

// redactURL drops the request URL, which carries the API key, from transport errors
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// CreateAccount creates a hosting account (account_new)
func (c *PanelClient) CreateAccount(ctx context.Context, req models.AccountRequest) models.APIResult {
	log.Printf("[PanelClient] Creating account %s (domain: %s) on %s", req.Username, req.Domain, c.conn.Hostname)

	return c.Send(ctx, models.FunctionAccountNew, url.Values{
		"domain":   {req.Domain},
		"username": {req.Username},
		"password": {req.Password},
		"package":  {req.PackageID},
		"email":    {req.Email},
		"inode":    {strconv.Itoa(req.InodeLimit)},
		"nofile":   {strconv.Itoa(req.MaxFiles)},
		"nproc":    {strconv.Itoa(req.MaxProcesses)},
	})
}

// RemoveAccount deletes an account (account_remove)
func (c *PanelClient) RemoveAccount(ctx context.Context, username string) models.APIResult {
	return c.Send(ctx, models.FunctionAccountRemove, url.Values{"username": {username}})
}

// SuspendAccount suspends an account (account_suspend)
func (c *PanelClient) SuspendAccount(ctx context.Context, username string) models.APIResult {
	return c.Send(ctx, models.FunctionAccountSuspend, url.Values{"username": {username}})
}

// UnsuspendAccount lifts a suspension (account_unsuspend)
func (c *PanelClient) UnsuspendAccount(ctx context.Context, username string) models.APIResult {
	return c.Send(ctx, models.FunctionAccountUnsuspend, url.Values{"username": {username}})
}

// UnblockIP removes an address from the CSF firewall block lists (unblock_ip)
func (c *PanelClient) UnblockIP(ctx context.Context, ipAddress string) models.APIResult {
	return c.Send(ctx, models.FunctionUnblockIP, url.Values{"user_ip": {ipAddress}})
}

// AccountExists reports whether username is taken on the panel.
//
// The panel API has no lookup call, so this creates a throwaway account
// named username (domain <username>.com, minimal limits). If creation
// succeeds the name was free and the account is removed again; if it
// fails the name is considered taken. Every call mutates the panel.
func (c *PanelClient) AccountExists(ctx context.Context, username string) bool {
	log.Printf("[PanelClient] Checking username %s on %s with a throwaway account", username, c.conn.Hostname)

	password, err := identity.GeneratePassword(10, 14)
	if err != nil {
		log.Printf("[PanelClient] Cannot check %s, assuming it exists: %v", username, err)
		return true
	}

	created := c.CreateAccount(ctx, models.AccountRequest{
		Domain:       username + ".com",
		Username:     username,
		Password:     password,
		PackageID:    "1",
		Email:        username + "@" + username + ".com",
		InodeLimit:   10000,
		MaxFiles:     100,
		MaxProcesses: 25,
	})
	if !created.Success {
		log.Printf("[PanelClient] Username %s is taken on %s: %s", username, c.conn.Hostname, created.Message)
		return true
	}

	if removed := c.RemoveAccount(ctx, username); !removed.Success {
		log.Printf("[PanelClient] Throwaway account %s left on %s: %s", username, c.conn.Hostname, removed.Message)
	} else {
		log.Printf("[PanelClient] Removed throwaway account %s from %s", username, c.conn.Hostname)
	}

	return false
}
