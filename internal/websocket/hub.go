/**
 * @description
 * This file defines the WebSocket `Hub`, which acts as a central manager for all active
 * client connections. It delivers sponsorship events to the wallet they concern.
 *
 * Key features:
 * - Connection Management: Maintains a registry of all connected clients.
 * - Channel-based Communication: Uses channels for concurrent and safe handling of
 *   client registrations, unregistrations, and messages.
 * - Address Routing: Each client is bound to one wallet address and only receives
 *   that address's events.
 * - Redis Pub/Sub Integration: Pattern-subscribes to the per-address sponsorship
 *   channels so events published by any replica reach the replica holding the socket.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client library.
 * - go.uber.org/zap: For structured logging.
 *
 * @notes
 * - The `Run` method is the heart of the hub. It owns all maps, so no locking is
 *   needed. It should be started as a goroutine when the application launches.
 */

package websocket

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// addressedMessage is a payload for every client bound to address.
type addressedMessage struct {
	address string
	payload []byte
}

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool
	// Register requests from the clients.
	Register chan *Client
	// Unregister requests from clients.
	Unregister chan *Client
	// Messages waiting to be routed.
	deliver chan addressedMessage
	// Map of wallet address to the clients bound to it.
	subscriptions map[string]map[*Client]bool

	redisClient   *redis.Client
	channelPrefix string
	logger        *zap.Logger
	ctx           context.Context
}

// NewHub creates a new Hub. Events are read from Redis channels named
// channelPrefix+address; redisClient may be nil, in which case only Deliver feeds the hub.
func NewHub(ctx context.Context, logger *zap.Logger, redisClient *redis.Client, channelPrefix string) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		deliver:       make(chan addressedMessage, 256),
		subscriptions: make(map[string]map[*Client]bool),
		redisClient:   redisClient,
		channelPrefix: channelPrefix,
		logger:        logger,
		ctx:           ctx,
	}
}

// Run starts the hub's event loop. It should be run in a goroutine.
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.listen()
	}
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("hub shutting down")
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			address := normalize(client.Address)
			if _, ok := h.subscriptions[address]; !ok {
				h.subscriptions[address] = make(map[*Client]bool)
			}
			h.subscriptions[address][client] = true
			h.logger.Info("hub: client registered", zap.String("address", address), zap.Int("total_clients", len(h.clients)))
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.deliver:
			h.broadcast(msg)
		}
	}
}

// Deliver queues payload for every client bound to address.
func (h *Hub) Deliver(address string, payload []byte) {
	select {
	case h.deliver <- addressedMessage{address: normalize(address), payload: payload}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	address := normalize(client.Address)
	if subs, ok := h.subscriptions[address]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, address)
		}
	}
	delete(h.clients, client)
	close(client.Send)
	h.logger.Info("hub: client unregistered", zap.String("address", address))
}

// listen pattern-subscribes to every address channel and feeds the hub.
func (h *Hub) listen() {
	pattern := h.channelPrefix + "*"
	pubsub := h.redisClient.PSubscribe(h.ctx, pattern)
	defer pubsub.Close()

	h.logger.Info("subscribing to redis channels", zap.String("pattern", pattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("stopping redis listener", zap.String("pattern", pattern))
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Deliver(strings.TrimPrefix(msg.Channel, h.channelPrefix), []byte(msg.Payload))
		}
	}
}

// broadcast sends a message to all clients bound to its address.
func (h *Hub) broadcast(msg addressedMessage) {
	subs, ok := h.subscriptions[msg.address]
	if !ok {
		h.logger.Debug("hub: no clients for address", zap.String("address", msg.address))
		return
	}
	for client := range subs {
		select {
		case client.Send <- msg.payload:
		default:
			// If the client's send buffer is full, assume it's slow or disconnected.
			h.logger.Warn("client send buffer full, unregistering", zap.String("address", msg.address))
			h.remove(client)
		}
	}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
