package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
)

// listApproachesHandler handles GET /api/v1/approaches.
func (s *Server) listApproachesHandler(c *echo.Context) error {
	ids, err := s.rt.ws.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"approaches": ids})
}

// getGraphHandler handles GET /api/v1/approaches/:id/graph, returning the
// current hypergraph plus any non-fatal validation warnings. Loading must
// succeed even when the graph has fatal findings, so the UI can surface them.
func (s *Server) getGraphHandler(c *echo.Context) error {
	id := c.Param("id")
	ar, err := s.rt.approachRuntimeFor(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("approach %q: %v", id, err))
	}
	g, res, err := ar.store.Load()
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"graph":    g,
		"fatal":    res.Fatal,
		"warnings": res.Warnings,
	})
}

type createApproachRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	OriginalHypothesis string `json:"original_hypothesis"`
}

// createApproachHandler handles POST /api/v1/approaches/:id/graph, creating
// a fresh approach directory and hypergraph.json. If OriginalHypothesis is
// given it seeds the immutable "hypothesis" claim.
func (s *Server) createApproachHandler(c *echo.Context) error {
	id := c.Param("id")
	var req createApproachRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	a, err := s.rt.ws.EnsureApproach(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	st, _, err := store.New(a.Dir, req.Name, req.Description)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	if req.OriginalHypothesis != "" {
		if _, _, err := st.AddClaim(&hypergraph.Claim{ID: hypergraph.HypothesisID, Text: req.OriginalHypothesis}); err != nil {
			return mapStoreError(err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]any{"approach_id": id})
}
