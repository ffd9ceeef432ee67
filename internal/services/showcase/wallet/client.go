package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	platformotel "github.com/louisbranch/showcase/internal/platform/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const apiKeyHeader = "X-API-Key"

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// StatusError reports a non-2xx answer from the wallet agent.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("wallet %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("wallet %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client calls the agent admin API over HTTP.
type Client struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for the admin API rooted at baseURL.
func NewClient(baseURL, apiKey string, client *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("wallet admin url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse wallet admin url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("wallet admin url must be http or https, got %q", parsed.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: parsed,
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}, nil
}

type tokenRequest struct {
	WalletKey string `json:"wallet_key"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// MintSession implements Capability.
func (c *Client) MintSession(ctx context.Context, walletID uuid.UUID, walletSecret string) (string, error) {
	ctx, span := platformotel.Tracer().Start(ctx, "wallet.MintSession")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.id", walletID.String()))

	var out tokenResponse
	err := c.do(ctx, "mint session", http.MethodPost,
		"/multitenancy/wallet/"+url.PathEscape(walletID.String())+"/token", nil,
		"", tokenRequest{WalletKey: walletSecret}, &out)
	if err == nil && strings.TrimSpace(out.Token) == "" {
		err = errors.New("wallet mint session: empty token")
	}
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return out.Token, nil
}

type createInvitationResponse struct {
	ConnectionID  string          `json:"connection_id"`
	InvitationURL string          `json:"invitation_url"`
	Invitation    json.RawMessage `json:"invitation"`
}

// CreateInvitation implements Capability.
func (c *Client) CreateInvitation(ctx context.Context, sessionToken string, alias string) (Invitation, error) {
	ctx, span := platformotel.Tracer().Start(ctx, "wallet.CreateInvitation")
	defer span.End()

	query := url.Values{}
	if alias = strings.TrimSpace(alias); alias != "" {
		query.Set("alias", alias)
	}
	var out createInvitationResponse
	err := c.do(ctx, "create invitation", http.MethodPost, "/connections/create-invitation", query,
		sessionToken, struct{}{}, &out)
	if err == nil && len(bytes.TrimSpace(out.Invitation)) == 0 {
		err = errors.New("wallet create invitation: empty invitation")
	}
	if err != nil {
		recordError(span, err)
		return Invitation{}, err
	}
	span.SetAttributes(attribute.String("wallet.connection_id", out.ConnectionID))
	return Invitation{
		ConnectionID:  out.ConnectionID,
		InvitationURL: out.InvitationURL,
		Invitation:    out.Invitation,
	}, nil
}

type receiveInvitationResponse struct {
	ConnectionID string `json:"connection_id"`
}

// AcceptInvitation implements Capability.
func (c *Client) AcceptInvitation(ctx context.Context, sessionToken string, invitation json.RawMessage, alias string) (Connection, error) {
	ctx, span := platformotel.Tracer().Start(ctx, "wallet.AcceptInvitation")
	defer span.End()

	if len(bytes.TrimSpace(invitation)) == 0 {
		err := errors.New("wallet accept invitation: invitation is required")
		recordError(span, err)
		return Connection{}, err
	}
	query := url.Values{}
	if alias = strings.TrimSpace(alias); alias != "" {
		query.Set("alias", alias)
	}
	var out receiveInvitationResponse
	err := c.do(ctx, "accept invitation", http.MethodPost, "/connections/receive-invitation", query,
		sessionToken, invitation, &out)
	if err == nil && strings.TrimSpace(out.ConnectionID) == "" {
		err = errors.New("wallet accept invitation: empty connection id")
	}
	if err != nil {
		recordError(span, err)
		return Connection{}, err
	}
	span.SetAttributes(attribute.String("wallet.connection_id", out.ConnectionID))
	return Connection{ConnectionID: out.ConnectionID}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, sessionToken string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("wallet %s: encode request: %w", op, err)
	}
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wallet %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wallet %s: decode response: %w", op, err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var _ Capability = (*Client)(nil)
