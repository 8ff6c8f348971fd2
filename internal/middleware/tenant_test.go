package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/requestdata"
)

func newTestRouter(t *testing.T, capture *requestdata.RequestData) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	r := gin.New()
	r.Use(NewTenantMiddleware(log).RequireTenant())
	r.GET("/probe", func(c *gin.Context) {
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
			*capture = *rd
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireTenant_PropagatesIdentity(t *testing.T) {
	var captured requestdata.RequestData
	r := newTestRouter(t, &captured)

	tenantID := uuid.New()
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	req.Header.Set("X-User-ID", userID.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if captured.TenantID != tenantID || captured.UserID != userID {
		t.Fatalf("expected identity propagated, got %+v", captured)
	}
}

func TestRequireTenant_RejectsMissingOrBadHeaders(t *testing.T) {
	var captured requestdata.RequestData
	r := newTestRouter(t, &captured)

	cases := []struct {
		name   string
		tenant string
		user   string
	}{
		{"no headers", "", ""},
		{"bad tenant", "not-a-uuid", uuid.New().String()},
		{"nil tenant", uuid.Nil.String(), uuid.New().String()},
		{"missing user", uuid.New().String(), ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		if tc.tenant != "" {
			req.Header.Set("X-Tenant-ID", tc.tenant)
		}
		if tc.user != "" {
			req.Header.Set("X-User-ID", tc.user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, w.Code)
		}
	}
}
