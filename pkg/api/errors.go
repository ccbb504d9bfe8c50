package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
)

// mapStoreError maps Store/Validator error taxonomy to
// HTTP responses the model-driving client (or a human operator) can act on.
func mapStoreError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, hypergraph.ErrUnknownID):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, hypergraph.ErrDuplicateID),
		errors.Is(err, hypergraph.ErrConclusionAlreadyClaimed),
		errors.Is(err, hypergraph.ErrCycleDetected):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, hypergraph.ErrInvalidGraph),
		errors.Is(err, hypergraph.ErrEvidenceMismatch):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("unexpected store error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
