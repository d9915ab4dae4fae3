package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestReadinessWithDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, ProvideHealth(HealthParams{DB: testutil.NewTestDB(t)}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sqlite"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
