package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestHTTPTransferSender_SignsAndPosts(t *testing.T) {
	sig := NewHMACSignatureService()
	var got *http.Request
	var body string
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		got = req
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		return okResponse(http.StatusAccepted), nil
	}}

	sender, err := NewHTTPTransferSender("https://assets.example.com/v1/transfers", "transfer-secret", sig, client)
	require.NoError(t, err)
	sender.now = func() time.Time { return time.Unix(1_708_092_000, 0) }

	require.NoError(t, sender.Send(context.Background(), testTransfer()))
	require.NotNil(t, got)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "1708092000", got.Header.Get("X-Timestamp"))
	assert.Equal(t, "k1", got.Header.Get("Idempotency-Key"))
	assert.JSONEq(t, `{"id":"k1","from":"banker","to":"alice","symbol":"GP","amount":3,"memo":"Withdrawal"}`, body)

	nonce := got.Header.Get("X-Nonce")
	require.NotEmpty(t, nonce)
	canonical := sig.BuildCanonicalString("POST", "/v1/transfers", 1_708_092_000, nonce, body)
	assert.True(t, sig.Verify("transfer-secret", canonical, got.Header.Get("X-Signature")))
}

func TestHTTPTransferSender_Non2xxIsError(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
		return okResponse(http.StatusConflict), nil
	}}
	sender, err := NewHTTPTransferSender("http://localhost:8888/v1/transfers", "s", NewHMACSignatureService(), client)
	require.NoError(t, err)

	err = sender.Send(context.Background(), testTransfer())
	assert.ErrorContains(t, err, "status 409")
}

func TestHTTPTransferSender_TransportError(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	sender, err := NewHTTPTransferSender("http://localhost:8888/v1/transfers", "s", NewHMACSignatureService(), client)
	require.NoError(t, err)

	err = sender.Send(context.Background(), testTransfer())
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewHTTPTransferSender_BadEndpoint(t *testing.T) {
	_, err := NewHTTPTransferSender("ftp://assets.example.com", "s", NewHMACSignatureService(), http.DefaultClient)
	assert.Error(t, err)

	_, err = NewHTTPTransferSender("://broken", "s", NewHMACSignatureService(), http.DefaultClient)
	assert.Error(t, err)
}
