package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biznespilot/payme-merchant/internal/payme"
)

type stubRPC struct {
	body       string
	authHeader string
	clientIP   string
	resp       payme.Response
	panics     bool
}

func (s *stubRPC) ServeRPC(_ context.Context, body []byte, authHeader, clientIP string) payme.Response {
	if s.panics {
		panic("handler exploded")
	}
	s.body = string(body)
	s.authHeader = authHeader
	s.clientIP = clientIP
	return s.resp
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payme", strings.NewReader(body))
	req.Header.Set("Authorization", "Basic UGF5Y29tOmtleQ==")
	req.Header.Set("X-Forwarded-For", "185.234.113.1")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestPaymeWebhookForwardsRequest(t *testing.T) {
	rpc := &stubRPC{resp: payme.Success([]byte(`7`), map[string]bool{"allow": true})}
	rec := post(t, PaymeWebhook(rpc, 0, nil), `{"id":7,"method":"CheckPerformTransaction","params":{}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"allow":true}}`, rec.Body.String())
	assert.Equal(t, "Basic UGF5Y29tOmtleQ==", rpc.authHeader)
	assert.Equal(t, "185.234.113.1", rpc.clientIP)
	assert.Contains(t, rpc.body, "CheckPerformTransaction")
}

func TestPaymeWebhookRejectsOversizedBodyWith200(t *testing.T) {
	rpc := &stubRPC{}
	rec := post(t, PaymeWebhook(rpc, 16, nil), `{"id":1,"method":"CheckTransaction","params":{"id":"abcdef"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32600`)
	assert.Contains(t, rec.Body.String(), `"id":null`)
	assert.Empty(t, rpc.body, "oversized bodies never reach the rpc server")
}

func TestPaymeWebhookRecoversPanics(t *testing.T) {
	rec := post(t, PaymeWebhook(&stubRPC{panics: true}, 0, nil), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32400`)
}

func TestPaymeWebhookWithoutServer(t *testing.T) {
	rec := post(t, PaymeWebhook(nil, 0, nil), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32400`)
}
