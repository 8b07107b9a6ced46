package http

import (
	"errors"
	"math/big"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/application"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/infra/memory"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/registry"
	"github.com/cristianortiz/marketplaceEngine/internal/shared/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	log      = logger.GetLogger()
	validate = validator.New()
)

// Handler mounts the marketplace REST surface on fiber. The caller identity
// travels in the X-User-ID header; authentication is outside this core, the
// only gate enforced here is operator-only access to the admin routes.
type Handler struct {
	service  application.MarketplaceService
	registry *registry.Registry
	operator uuid.UUID
}

func NewHandler(service application.MarketplaceService, reg *registry.Registry, operator uuid.UUID) *Handler {
	return &Handler{service: service, registry: reg, operator: operator}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Put("/admin/payment-mediums", h.setPaymentMedium)
	app.Get("/rates/:medium", h.getRate)

	app.Post("/listings", h.listAsset(domain.ModeFixedSale))
	app.Post("/auctions", h.listAsset(domain.ModeAuction))
	app.Get("/listings/:collection/:asset", h.getListingState)
	app.Post("/listings/:collection/:asset/buy", h.buyAsset)
	app.Delete("/listings/:collection/:asset", h.unlistAsset)

	app.Post("/auctions/:collection/:asset/bids", h.placeBid)
	app.Delete("/auctions/:collection/:asset/bids/:index", h.cancelBid)
	app.Post("/auctions/:collection/:asset/bids/:index/accept", h.acceptBid)
}

type setPaymentMediumRequest struct {
	Medium    string `json:"medium" validate:"required"`
	Decimals  uint8  `json:"decimals" validate:"lte=30"`
	Enabled   bool   `json:"enabled"`
	Rate      string `json:"rate" validate:"required"`
	RateScale string `json:"rate_scale" validate:"required"`
}

// setPaymentMedium upserts a payment medium backed by a fixed-rate oracle.
// Production deployments plug real oracle clients in at composition time,
// this route covers the administrative upsert itself.
func (h *Handler) setPaymentMedium(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	if caller != h.operator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "operator only"})
	}

	var req setPaymentMediumRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	rate, ok := new(big.Int).SetString(req.Rate, 10)
	if !ok || rate.Sign() <= 0 {
		return badRequest(c, errors.New("rate must be a positive integer"))
	}
	scale, ok := new(big.Int).SetString(req.RateScale, 10)
	if !ok || scale.Sign() <= 0 {
		return badRequest(c, errors.New("rate_scale must be a positive integer"))
	}

	h.registry.SetPaymentMedium(domain.Medium(req.Medium), memory.NewOracle(rate, scale), req.Decimals, req.Enabled)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getRate(c *fiber.Ctx) error {
	rate, err := h.registry.GetRate(c.Context(), domain.Medium(c.Params("medium")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"medium": c.Params("medium"),
		"rate":   rate.String(),
	})
}

type listAssetRequest struct {
	CollectionID string    `json:"collection_id" validate:"required,uuid"`
	AssetID      uint64    `json:"asset_id"`
	PriceUSD     string    `json:"price_usd" validate:"required"`
	Deadline     time.Time `json:"deadline" validate:"required"`
}

func (h *Handler) listAsset(mode domain.ListingMode) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := callerID(c)
		if err != nil {
			return badRequest(c, err)
		}

		var req listAssetRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(req); err != nil {
			return badRequest(c, err)
		}

		collectionID, err := uuid.Parse(req.CollectionID)
		if err != nil {
			return badRequest(c, err)
		}
		price, err := parseReferencePrice(req.PriceUSD)
		if err != nil {
			return badRequest(c, err)
		}

		listing, err := h.service.ListAsset(c.Context(), application.ListAssetDTO{
			Seller:         caller,
			CollectionID:   collectionID,
			AssetID:        req.AssetID,
			ReferencePrice: price,
			Deadline:       req.Deadline,
			Mode:           mode,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"listing_id": listing.ID,
			"status":     listing.Status,
		})
	}
}

type buyAssetRequest struct {
	Medium  string `json:"medium" validate:"required"`
	Payment string `json:"payment"`
}

func (h *Handler) buyAsset(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	var req buyAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	var payment *big.Int
	if req.Payment != "" {
		var ok bool
		payment, ok = new(big.Int).SetString(req.Payment, 10)
		if !ok || payment.Sign() < 0 {
			return badRequest(c, errors.New("payment must be a non-negative integer"))
		}
	}

	err = h.service.BuyAsset(c.Context(), application.BuyAssetDTO{
		Buyer:        caller,
		Medium:       domain.Medium(req.Medium),
		CollectionID: collectionID,
		AssetID:      assetID,
		Payment:      payment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) unlistAsset(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	err = h.service.UnlistAsset(c.Context(), application.UnlistAssetDTO{
		Caller:       caller,
		CollectionID: collectionID,
		AssetID:      assetID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type placeBidRequest struct {
	Medium string `json:"medium" validate:"required"`
	Amount string `json:"amount" validate:"required"`
}

func (h *Handler) placeBid(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err)
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		return badRequest(c, errors.New("amount must be an integer in the medium's smallest unit"))
	}

	bid, err := h.service.PlaceBid(c.Context(), application.PlaceBidDTO{
		Bidder:       caller,
		Medium:       domain.Medium(req.Medium),
		Amount:       amount,
		CollectionID: collectionID,
		AssetID:      assetID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"bid_index": bid.Index,
		"status":    bid.Status,
	})
}

func (h *Handler) cancelBid(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return badRequest(c, errors.New("invalid bid index"))
	}

	err = h.service.CancelBid(c.Context(), application.CancelBidDTO{
		Caller:       caller,
		BidIndex:     uint64(index),
		CollectionID: collectionID,
		AssetID:      assetID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) acceptBid(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return badRequest(c, err)
	}
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return badRequest(c, errors.New("invalid bid index"))
	}

	err = h.service.AcceptBid(c.Context(), application.AcceptBidDTO{
		Caller:       caller,
		BidIndex:     uint64(index),
		CollectionID: collectionID,
		AssetID:      assetID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getListingState(c *fiber.Ctx) error {
	collectionID, assetID, err := assetParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	dto, err := h.service.GetListingState(c.Context(), collectionID, assetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto)
}

func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil, errors.New("missing or invalid X-User-ID header")
	}
	return id, nil
}

func assetParams(c *fiber.Ctx) (uuid.UUID, uint64, error) {
	collectionID, err := uuid.Parse(c.Params("collection"))
	if err != nil {
		return uuid.Nil, 0, errors.New("invalid collection id")
	}
	assetID, err := c.ParamsInt("asset")
	if err != nil || assetID < 0 {
		return uuid.Nil, 0, errors.New("invalid asset id")
	}
	return collectionID, uint64(assetID), nil
}

// parseReferencePrice turns a human decimal USD string into the 8-implied-
// decimal reference-unit integer.
func parseReferencePrice(priceUSD string) (*big.Int, error) {
	d, err := decimal.NewFromString(priceUSD)
	if err != nil {
		return nil, errors.New("price_usd must be a decimal number")
	}
	scaled := d.Shift(8)
	if !scaled.IsInteger() {
		return nil, errors.New("price_usd supports at most 8 decimal places")
	}
	if scaled.Sign() <= 0 {
		return nil, errors.New("price_usd must be positive")
	}
	return scaled.BigInt(), nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrBidNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotSeller), errors.Is(err, domain.ErrNotYourBid):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrAssetAlreadyListed),
		errors.Is(err, domain.ErrListingNotActive),
		errors.Is(err, domain.ErrSaleDeadlinePassed),
		errors.Is(err, domain.ErrNotAnAuction),
		errors.Is(err, domain.ErrNotAFixedSale),
		errors.Is(err, domain.ErrBidNotOpen),
		errors.Is(err, domain.ErrTreasuryNotConfigured):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrDeadlineNotInFuture),
		errors.Is(err, domain.ErrMediumUnknown),
		errors.Is(err, domain.ErrMediumDisabled):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientAllowance),
		errors.Is(err, domain.ErrInsufficientPayment):
		status = fiber.StatusPaymentRequired
	case errors.Is(err, domain.ErrOracleUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotOwnerOrNotApproved):
		status = fiber.StatusForbidden
	default:
		log.Error("Unhandled marketplace error", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
