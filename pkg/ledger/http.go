package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/journal"
)

// HTTPConfig represents the configuration for the ledger API client.
type HTTPConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	// AccessToken, when set, is used as is instead of client credentials.
	AccessToken string
	CompanyID   int64
	Timeout     time.Duration // Default: 30 seconds
}

// HTTPSink posts journals to the ledger API.
type HTTPSink struct {
	httpClient *http.Client
	baseURL    string
	companyID  int64
}

// NewHTTPSink creates a ledger API client. Tokens come from the static
// access token, or from the client-credentials grant at {APIURL}/oauth/token.
func NewHTTPSink(cfg HTTPConfig) (*HTTPSink, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("ledger API URL is required")
	}
	if cfg.CompanyID == 0 {
		return nil, fmt.Errorf("ledger company id is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")

	var ts oauth2.TokenSource
	switch {
	case cfg.AccessToken != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     baseURL + "/oauth/token",
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		ts = cc.TokenSource(ctx)
	default:
		return nil, fmt.Errorf("ledger access token or client credentials are required")
	}

	return &HTTPSink{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts},
		},
		baseURL:   baseURL,
		companyID: cfg.CompanyID,
	}, nil
}

func (s *HTTPSink) Name() string { return "http" }

// Post creates the journal and returns its ledger id.
func (s *HTTPSink) Post(ctx context.Context, e *journal.Entry) (string, error) {
	body, err := json.Marshal(NewCreateJournalRequest(s.companyID, e))
	if err != nil {
		return "", fmt.Errorf("failed to encode journal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/1/journals", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", parseError(resp)
	}

	var jr JournalResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return fmt.Sprintf("%d", jr.Journal.ID), nil
}

// APIError is a non-success response from the ledger API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("ledger API error (status %d): %s - %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("ledger API error (status %d): %s", e.StatusCode, e.Code)
}

// parseError parses an error response from the ledger API.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: "failed to read error response"}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: resp.StatusCode, Code: errResp.Error, Description: errResp.ErrorDescription}
}
