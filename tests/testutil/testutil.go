// Package testutil holds helpers shared by the stocksync handler and integration
// tests: gin contexts carrying the caller headers, request helpers that speak the
// API envelope, and gofakeit-generated stock fixtures.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestActor is the actor recorded on entries written by tests
const TestActor = "test-suite"

// TestOwnerID returns the seller account used across tests
func TestOwnerID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("stocksync-test-owner"))
}

// TestContext is a bare gin context for calling a handler method directly
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext creates a context holding a GET / request
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return &TestContext{Context: c, Recorder: w}
}

// SetRequestID stores id the way the RequestID middleware does
func (tc *TestContext) SetRequestID(id string) *TestContext {
	tc.Context.Set(logger.GinRequestIDKey, id)
	return tc
}

// SetCaller stores the seller account and actor the way CallerContext does
func (tc *TestContext) SetCaller(ownerID uuid.UUID, actor string) *TestContext {
	tc.Context.Set(middleware.OwnerIDKey, ownerID.String())
	tc.Context.Set(middleware.ActorKey, actor)
	return tc
}
