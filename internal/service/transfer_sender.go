package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"

	"github.com/google/uuid"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransferSender implements ports.TransferSender by POSTing each request
// as JSON to the asset-transfer service, signed the same way inbound
// notifications are.
type HTTPTransferSender struct {
	endpoint string
	path     string
	secret   string
	sigSvc   ports.SignatureService
	client   HTTPClient
	now      func() time.Time
}

// NewHTTPTransferSender creates a sender for endpoint.
func NewHTTPTransferSender(endpoint, secret string, sigSvc ports.SignatureService, client HTTPClient) (*HTTPTransferSender, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse transfer endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transfer endpoint %q: unsupported scheme", endpoint)
	}
	return &HTTPTransferSender{
		endpoint: endpoint,
		path:     u.EscapedPath(),
		secret:   secret,
		sigSvc:   sigSvc,
		client:   client,
		now:      time.Now,
	}, nil
}

// Send delivers req. Any non-2xx response is an error.
func (s *HTTPTransferSender) Send(ctx context.Context, req domain.TransferRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal transfer: %w", err)
	}

	ts := s.now().Unix()
	nonce := uuid.NewString()
	canonical := s.sigSvc.BuildCanonicalString(http.MethodPost, s.path, ts, nonce, string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	httpReq.Header.Set("X-Nonce", nonce)
	httpReq.Header.Set("X-Signature", s.sigSvc.Sign(s.secret, canonical))
	if req.ID != "" {
		httpReq.Header.Set("Idempotency-Key", req.ID)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post transfer: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transfer rejected: status %d", resp.StatusCode)
	}
	return nil
}
