package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldline/internal/config"
)

const userAgent = "Fieldline/0.1.0"

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the browser-automation sidecar over HTTP. The sidecar owns
// the actual browser; this client only ships addresses and session blobs.
type Client struct {
	baseURL string
	http    HTTPDoer
}

// NewClient builds an automation client from configuration.
func NewClient(cfg *config.Config, doer HTTPDoer) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	base := strings.TrimSpace(cfg.Portal.AutomationURL)
	if base == "" {
		return nil, Wrap(ErrConfiguration, "portal", "new client", "portal.automation_url not configured", nil)
	}
	if doer == nil {
		timeout := time.Duration(cfg.Portal.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, http: doer}, nil
}

type extractRequest struct {
	StreetNumber string `json:"streetNumber"`
	StreetName   string `json:"streetName"`
	ZipCode      string `json:"zipCode"`
	Session      []byte `json:"session"`
}

type extractResponse struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	CustomerEmail string `json:"customerEmail"`
	Error         string `json:"error"`
}

// ExtractCustomerData asks the sidecar to look up one address on the portal
// using the supplied decrypted session. Portal-level failures come back with
// the portal's own message text so signature classification can see it.
func (c *Client) ExtractCustomerData(ctx context.Context, address Address, sessionBlob []byte) (CustomerData, error) {
	payload := extractRequest{
		StreetNumber: address.StreetNumber,
		StreetName:   address.StreetName,
		ZipCode:      address.ZipCode,
		Session:      sessionBlob,
	}

	var decoded extractResponse
	if err := c.post(ctx, "/extract", payload, &decoded); err != nil {
		return CustomerData{}, err
	}
	if decoded.Error != "" {
		return CustomerData{}, errors.New(decoded.Error)
	}
	return CustomerData{
		Name:  decoded.CustomerName,
		Phone: decoded.CustomerPhone,
		Email: decoded.CustomerEmail,
	}, nil
}

type submitRequest struct {
	StreetNumber string `json:"streetNumber"`
	StreetName   string `json:"streetName"`
	ZipCode      string `json:"zipCode"`
	CustomerName string `json:"customerName"`
	Session      []byte `json:"session"`
}

type submitResponse struct {
	CaseID string `json:"caseId"`
	Error  string `json:"error"`
}

// SubmitCase files a case for a visited property.
func (c *Client) SubmitCase(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	payload := submitRequest{
		StreetNumber: req.Address.StreetNumber,
		StreetName:   req.Address.StreetName,
		ZipCode:      req.Address.ZipCode,
		CustomerName: req.CustomerName,
		Session:      req.SessionBlob,
	}

	var decoded submitResponse
	if err := c.post(ctx, "/submit", payload, &decoded); err != nil {
		return SubmitResult{}, err
	}
	if decoded.Error != "" {
		return SubmitResult{}, errors.New(decoded.Error)
	}
	if strings.TrimSpace(decoded.CaseID) == "" {
		return SubmitResult{}, errors.New("portal returned no case id")
	}
	return SubmitResult{CaseID: decoded.CaseID}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode automation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build automation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Wrap(ErrInfrastructure, "portal", "automation request", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Wrap(ErrInfrastructure, "portal", "read automation response", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		// The sidecar reports portal failures as plain text or a JSON error
		// field. Keep the raw text so signature matching sees the portal's words.
		message := strings.TrimSpace(string(raw))
		if message == "" {
			message = resp.Status
		}
		var failed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failed) == nil && failed.Error != "" {
			message = failed.Error
		}
		return errors.New(message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode automation response: %w", err)
	}
	return nil
}
