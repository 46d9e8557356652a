package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/adapters/excel"
	"gopattern/adapters/stats/engine"
	"gopattern/app"
	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/internal/errors"
	"gopattern/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, *testkit.InMemoryRunRepository) {
	t.Helper()
	repo := testkit.NewInMemoryRunRepository()
	svc := app.NewDiscoveryService(nil, engine.NewDiscoveryEngine(nil), repo, nil)
	return NewRouter(NewRunHandler(svc, nil, nil)), repo
}

func quadraticBody(t *testing.T, persist bool) []byte {
	t.Helper()
	s, err := testkit.NewScenarioGenerator(testkit.DefaultScenarioConfig()).Quadratic()
	require.NoError(t, err)

	records := make([]Record, len(s.Rows))
	for i, row := range s.Rows {
		outcome := row.Outcome
		records[i] = Record{
			Values:  map[string]interface{}{"feature_a": row.Values["feature_a"].Number},
			Outcome: &outcome,
		}
	}
	body, err := json.Marshal(DiscoverRequest{Rows: records, Schema: s.Schema, Persist: persist})
	require.NoError(t, err)
	return body
}

func do(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDiscover_InlineRowsPersistAndFetch(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/api/discover", quadraticBody(t, true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result app.DiscoveryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Persisted)
	require.NotEmpty(t, result.Run.Patterns)
	assert.Equal(t, discovery.KindPolynomialTerm, result.Run.Patterns[0].Kind)

	w = do(router, http.MethodGet, "/api/runs/"+result.Run.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(router, http.MethodGet, "/api/runs/"+result.Run.ID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Pattern discovery: outcome"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")

	w = do(router, http.MethodGet, "/api/runs/"+result.Run.ID.String()+"/report?format=html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<table>")
}

func TestDiscover_BadRequests(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"rows":`, http.StatusBadRequest},
		{"neither source nor rows", `{"schema":{"outcome":"y"}}`, http.StatusBadRequest},
		{"both source and rows", `{"source":"a.csv","rows":[{"values":{},"outcome":1}]}`, http.StatusBadRequest},
		{"invalid schema", `{"rows":[{"values":{"x":1},"outcome":1}],"schema":{"outcome":"y"}}`, http.StatusBadRequest},
		{
			"invalid options",
			`{"rows":[{"values":{"x":1},"outcome":1}],"schema":{"outcome":"y","features":[{"name":"x","kind":"continuous"}]},"options":{"cross_validation_folds":-3,"random_seed":1}}`,
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/discover", []byte(tt.body))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestDiscover_InsufficientDataIsNotAnError(t *testing.T) {
	router, _ := setupRouter(t)
	body := `{"rows":[{"values":{"x":1},"outcome":1},{"values":{"x":2},"outcome":3}],` +
		`"schema":{"outcome":"y","features":[{"name":"x","kind":"continuous"}]}}`

	w := do(router, http.MethodPost, "/api/discover", []byte(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"insufficient_data"`)
	assert.Contains(t, w.Body.String(), `"patterns":[]`)
}

func TestGetRun_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/runs/"+core.NewRunID().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeNotFound)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.ConfigInvalid("x")))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.NotFound("run")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(errors.New(errors.CodeInsufficientData, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func writeSourceCSV(t *testing.T, dir, name string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, 2*i+1)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o600))
}

func fileRouter(dataDir string) *gin.Engine {
	svc := app.NewDiscoveryService(excel.NewDataReader(nil), engine.NewDiscoveryEngine(nil), nil, nil)
	return NewRouter(NewRunHandler(svc, nil, nil).WithDataDir(dataDir))
}

func TestSchema_SourceInsideDataDir(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(dataDir, 0o700))
	writeSourceCSV(t, dataDir, "sales.csv")
	writeSourceCSV(t, root, "private.csv")
	router := fileRouter(dataDir)

	w := do(router, http.MethodPost, "/api/schema", []byte(`{"source":"sales.csv","outcome":"y"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"outcome":"y"`)
	assert.Contains(t, w.Body.String(), `"name":"x"`)

	escapes := []string{
		"../private.csv",
		filepath.Join(root, "private.csv"),
		"nested/../../private.csv",
		"",
	}
	for _, source := range escapes {
		body, err := json.Marshal(map[string]string{"source": source, "outcome": "y"})
		require.NoError(t, err)
		w := do(router, http.MethodPost, "/api/schema", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, source)
		assert.NotContains(t, w.Body.String(), `"features"`, source)
	}

	w = do(router, http.MethodPost, "/api/discover",
		[]byte(`{"source":"../private.csv","schema":{"outcome":"y","features":[{"name":"x","kind":"continuous"}]}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "data directory")
}

func TestDiscover_FileSourcesDisabledWithoutDataDir(t *testing.T) {
	router := fileRouter("")
	w := do(router, http.MethodPost, "/api/discover",
		[]byte(`{"source":"sales.csv","schema":{"outcome":"y","features":[{"name":"x","kind":"continuous"}]}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file sources are disabled")
}
