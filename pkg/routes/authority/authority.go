package authority

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/heather/pkg/authority"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/search"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Runner interface {
	Run(ctx context.Context, keys []string) (authority.RunSummary, error)
	Claim(ctx context.Context, key string) (authority.RunSummary, error)
}

type Looker interface {
	Lookup(ctx context.Context, text, scope string) search.Result
}

type BindRequest struct {
	AuthorityKeys []string `json:"authority_keys" validate:"dive,required"`
}

type Handler struct {
	runner Runner
	lookup Looker
	logger ectologger.Logger
}

func NewHandler(runner Runner, lookup Looker, logger ectologger.Logger) *Handler {
	return &Handler{runner: runner, lookup: lookup, logger: logger}
}

// Register registers bulk bind and lookup routes on the api group
func (h *Handler) Register(g *echo.Group) {
	g.POST("/bind", h.Bind)
	g.POST("/lookup", h.Lookup)
	g.POST("/identities/:key/bind", h.BindIdentity)
	g.POST("/identities/:key/claim", h.Claim)
}

// Bind runs the automatic linker over the given identities, or all of them
func (h *Handler) Bind(c echo.Context) error {
	ctx := c.Request().Context()

	var req BindRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	summary, err := h.runner.Run(ctx, req.AuthorityKeys)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) BindIdentity(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("key")
	if key == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "authority key is required")
	}

	summary, err := h.runner.Run(ctx, []string{key})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// Claim links the owner's own submissions to their identity
func (h *Handler) Claim(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("key")
	if key == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "authority key is required")
	}

	summary, err := h.runner.Claim(ctx, key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// Lookup runs an interactive search for free text
func (h *Handler) Lookup(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.LookupRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, h.lookup.Lookup(ctx, req.Text, req.Scope))
}
