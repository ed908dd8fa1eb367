package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

// PerformRequest serves one request through h. body is sent as JSON when non-nil
// and headers are key/value pairs.
func PerformRequest(h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("testutil: encode request body: %v", err))
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// CallerHeaders returns the header pairs CallerContext reads
func CallerHeaders(ownerID uuid.UUID, actor string) []string {
	return []string{
		middleware.HeaderOwnerID, ownerID.String(),
		middleware.HeaderActor, actor,
	}
}

// DecodeResponse parses the API envelope. An empty body decodes to the zero value.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	if w.Body.Len() == 0 {
		return resp
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeData re-decodes the envelope's data member into T
func DecodeData[T any](t *testing.T, resp dto.Response) T {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// AssertErrorCode checks the status and the envelope's error code
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) dto.Response {
	t.Helper()

	assert.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	assert.False(t, resp.Success)
	if assert.NotNil(t, resp.Error, "error envelope") {
		assert.Equal(t, code, resp.Error.Code)
	}
	return resp
}
