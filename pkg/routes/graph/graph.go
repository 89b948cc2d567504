package graph

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
)

// AuthorshipReader reads the AUTHORED edges mirrored into the graph.
type AuthorshipReader interface {
	AuthoredItems(ctx context.Context, authorityKey string) ([]string, error)
}

type AuthoredResponse struct {
	AuthorityKey string   `json:"authority_key"`
	ItemIDs      []string `json:"item_ids"`
}

// Handler serves reads of the authorship projection
type Handler struct {
	authorship AuthorshipReader
	logger     ectologger.Logger
}

func NewHandler(authorship AuthorshipReader, logger ectologger.Logger) *Handler {
	return &Handler{authorship: authorship, logger: logger}
}

// Register registers graph routes under /identities/:key
func (h *Handler) Register(g *echo.Group) {
	g.GET("/authored", h.Authored)
}

// Authored lists the items the graph records as authored by the identity
func (h *Handler) Authored(c echo.Context) error {
	ctx := c.Request().Context()
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "authority key is required")
	}

	ids, err := h.authorship.AuthoredItems(ctx, key)
	if err != nil {
		// the projection is a read model; the relational ledger is still served
		return httperror.NewHTTPError(http.StatusBadGateway, "graph query failed")
	}

	return c.JSON(http.StatusOK, AuthoredResponse{AuthorityKey: key, ItemIDs: ids})
}
