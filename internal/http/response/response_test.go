package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/citrusqa/bitacora-backend/internal/domain"
)

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondDomainError(c, err)

	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	return w, envelope
}

func TestRespondDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
		{domain.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
		{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		w, envelope := respond(t, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%v: status want=%d got=%d", tc.err, tc.status, w.Code)
		}
		if envelope.Error.Code != tc.code {
			t.Fatalf("%v: code want=%s got=%s", tc.err, tc.code, envelope.Error.Code)
		}
	}
}

func TestRespondDomainErrorUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("set status: %w: pending-test only from resolved", domain.ErrInvalidTransition)
	w, envelope := respond(t, wrapped)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrapped sentinel status: want=400 got=%d", w.Code)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("wrapped sentinel code: want=invalid_transition got=%s", envelope.Error.Code)
	}
	if envelope.Error.Message == "" {
		t.Fatalf("message must carry the wrapped detail")
	}
}
