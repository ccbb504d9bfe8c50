package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entailgraph/entailgraph/pkg/config"
	"github.com/entailgraph/entailgraph/pkg/workspace"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ws, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{WorkspaceDir: ws.Root()}
	rt, err := NewRuntime(ws, cfg)
	require.NoError(t, err)
	return NewServer(cfg, rt)
}

func TestListApproachesHandler(t *testing.T) {
	s := newTestServer(t)

	t.Run("empty workspace", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/approaches", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, s.listApproachesHandler(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Approaches []string `json:"approaches"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Empty(t, body.Approaches)
	})

	t.Run("lists created approaches", func(t *testing.T) {
		createApproach(t, s, "alpha", "Alpha", "")

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/approaches", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, s.listApproachesHandler(c))

		var body struct {
			Approaches []string `json:"approaches"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Approaches, "alpha")
	})
}

func TestCreateApproachHandler(t *testing.T) {
	s := newTestServer(t)

	t.Run("creates a fresh approach", func(t *testing.T) {
		rec := createApproach(t, s, "beta", "Beta approach", "")
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("seeds the hypothesis claim when given", func(t *testing.T) {
		createApproach(t, s, "gamma", "Gamma approach", "gravity bends light")

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/approaches/gamma/graph", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("gamma")

		require.NoError(t, s.getGraphHandler(c))
		assert.True(t, strings.Contains(rec.Body.String(), "gravity bends light"))
	})

	t.Run("rejects a duplicate approach", func(t *testing.T) {
		createApproach(t, s, "delta", "Delta", "")

		e := echo.New()
		body := strings.NewReader(`{"name":"Delta","description":"again"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/approaches/delta/graph", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("delta")

		err := s.createApproachHandler(c)
		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
	})
}

func TestGetGraphHandler_unknownApproach(t *testing.T) {
	s := newTestServer(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/approaches/nope/graph", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := s.getGraphHandler(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

// createApproach is a small test helper issuing the create-approach request
// and returning the recorded response.
func createApproach(t *testing.T, s *Server, id, name, hypothesis string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	payload := `{"name":"` + name + `","description":"test approach","original_hypothesis":"` + hypothesis + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approaches/"+id+"/graph", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, s.createApproachHandler(c))
	return rec
}
