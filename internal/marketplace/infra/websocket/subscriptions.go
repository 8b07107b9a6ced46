package websocket

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/application"
	"github.com/cristianortiz/marketplaceEngine/internal/marketplace/domain"
	sharedws "github.com/cristianortiz/marketplaceEngine/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionHandler upgrades indexer/client connections and subscribes them
// to marketplace event topics: one listing's feed or the firehose.
type SubscriptionHandler struct {
	service application.MarketplaceService
	hub     *sharedws.Hub
}

func NewSubscriptionHandler(service application.MarketplaceService, hub *sharedws.Hub) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, hub: hub}
}

func (h *SubscriptionHandler) RegisterRoutes(app *fiber.App, ctx context.Context) {
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	app.Use("/ws", upgrade)

	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		h.serve(ctx, conn, sharedws.FirehoseTopic, nil)
	}))

	app.Get("/ws/listings/:collection/:asset", websocket.New(func(conn *websocket.Conn) {
		collectionID, err := uuid.Parse(conn.Params("collection"))
		if err != nil {
			_ = conn.Close()
			return
		}
		assetID, err := parseAssetID(conn.Params("asset"))
		if err != nil {
			_ = conn.Close()
			return
		}

		// canonical topic so URL casing never splits a listing's feed
		topic := domain.ListingKey{CollectionID: collectionID, AssetID: assetID}.String()

		// initial state snapshot so the client can catch up before the feed
		var initial []byte
		if state, err := h.service.GetListingState(ctx, collectionID, assetID); err == nil {
			initial, _ = json.Marshal(EventEnvelope{
				Type:      "listing_state",
				Topic:     topic,
				EmittedAt: time.Now().UTC(),
				Payload:   state,
			})
		}

		h.serve(ctx, conn, topic, initial)
	}))
}

func (h *SubscriptionHandler) serve(ctx context.Context, conn *websocket.Conn, topic string, initial []byte) {
	client := &sharedws.Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, 64),
		Topic: topic,
		ID:    uuid.NewString(),
	}
	h.hub.RegisterClient(client)
	log.Info("Event feed client connected",
		zap.String("clientID", client.ID),
		zap.String("topic", topic),
	)

	if initial != nil {
		client.Send <- initial
	}

	go client.WritePump(ctx)
	// fiber's websocket handler owns the connection goroutine, run the read
	// side here until the peer disconnects
	client.ReadPump(ctx)
}

func parseAssetID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
