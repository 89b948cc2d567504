package potentialmatch

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Reviewer interface {
	Variants(ctx context.Context, authorityKey string) ([]models.NameVariant, error)
	GeneratePotentialMatches(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error)
	GetPotentialMatches(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error)
	Accept(ctx context.Context, itemID, authorityKey string, confidence models.Confidence) error
	Reject(ctx context.Context, itemIDs []string, authorityKey string) error
	Unlink(ctx context.Context, itemID, authorityKey string) error
}

type VariantResponse struct {
	Text     string   `json:"text"`
	Excluded []string `json:"excluded_item_ids"`
}

type Handler struct {
	review Reviewer
	logger ectologger.Logger
}

func NewHandler(review Reviewer, logger ectologger.Logger) *Handler {
	return &Handler{review: review, logger: logger}
}

// Register registers potential match routes under /identities/:key
func (h *Handler) Register(g *echo.Group) {
	g.GET("/variants", h.Variants)
	g.GET("/potential-matches", h.List)
	g.POST("/potential-matches", h.Generate)
	g.POST("/potential-matches/accept", h.Accept)
	g.POST("/potential-matches/reject", h.Reject)
	g.POST("/potential-matches/unlink", h.Unlink)
}

func authorityKey(c echo.Context) (string, error) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "authority key is required")
	}
	return key, nil
}

// Variants previews the name variants searched for an identity
func (h *Handler) Variants(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	variants, err := h.review.Variants(ctx, key)
	if err != nil {
		return err
	}

	response := make([]VariantResponse, 0, len(variants))
	for _, v := range variants {
		excluded := make([]string, 0, len(v.ExcludedItemIDs))
		for id := range v.ExcludedItemIDs {
			excluded = append(excluded, id)
		}
		response = append(response, VariantResponse{Text: v.Text, Excluded: excluded})
	}
	return c.JSON(http.StatusOK, response)
}

// List returns the identity's current potential matches
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	matches, err := h.review.GetPotentialMatches(ctx, key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, matches)
}

// Generate rebuilds the identity's potential matches from the index
func (h *Handler) Generate(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	matches, err := h.review.GeneratePotentialMatches(ctx, key)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"authority_key":     key,
		"potential_matches": len(matches),
		"actor":           appctx.Actor(ctx),
	}).Info("Generated potential matches")

	return c.JSON(http.StatusOK, matches)
}

// Accept links one potential match to the identity
func (h *Handler) Accept(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	// an omitted confidence means a curator accepted it outright
	req := models.AcceptMatchRequest{Confidence: models.ConfidenceAccepted}
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.review.Accept(ctx, req.ItemID, key, req.Confidence); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"authority_key": key,
		"item_id":       req.ItemID,
		"confidence":    req.Confidence.String(),
		"actor":         appctx.Actor(ctx),
	}).Info("Accepted potential match")

	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

// Reject removes potential matches and keeps them out of future runs
func (h *Handler) Reject(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	var req models.RejectMatchesRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.review.Reject(ctx, req.ItemIDs, key); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"authority_key": key,
		"item_ids":      req.ItemIDs,
		"actor":         appctx.Actor(ctx),
	}).Info("Rejected potential matches")

	return c.JSON(http.StatusOK, map[string]string{"status": "rejected"})
}

// Unlink strips the identity from a record it was linked to
func (h *Handler) Unlink(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := authorityKey(c)
	if err != nil {
		return err
	}

	var req models.UnlinkMatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.review.Unlink(ctx, req.ItemID, key); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "unlinked"})
}
