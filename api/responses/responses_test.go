package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/biznespilot/payme-merchant/pkg/errors"
	"github.com/biznespilot/payme-merchant/pkg/logger"
	"github.com/biznespilot/payme-merchant/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusAccepted {
		t.Fatalf("expected status 202 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(types.HeaderRequestID, "req-42")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, "bad input"))

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("validation message should be public, got %q", body.Error.Message)
	}
	if body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id in envelope, got %q", body.Error.RequestID)
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})
	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("dial tcp 10.0.0.5:5432: refused"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "10.0.0.5") {
		t.Fatalf("internal details leaked: %q", body.Error.Message)
	}
	if !strings.Contains(logs.String(), "request.error") {
		t.Fatalf("expected internal error to be logged, got %s", logs.String())
	}
}
