package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisChannel carries change events between instances.
const redisChannel = "qrido:events"

// Event kinds.
const (
	// KindCreated signals a new entity.
	KindCreated = "created"
	// KindUpdated signals a changed entity.
	KindUpdated = "updated"
	// KindDeleted signals a removed entity.
	KindDeleted = "deleted"
)

// Entity names carried in events.
const (
	// EntityPurchaseRequest names purchase request events.
	EntityPurchaseRequest = "purchase_request"
	// EntityCustomer names customer events.
	EntityCustomer = "customer"
	// EntityCompany names company events.
	EntityCompany = "company"
)

// Event notifies dashboards that an entity changed. Consumers re-fetch the
// affected aggregate rather than applying deltas, so an event only needs to
// say what changed, not how.
type Event struct {
	CompanyID uint64 `json:"company_id"`
	Kind      string `json:"kind"`
	Entity    string `json:"entity"`
	ID        uint64 `json:"id,omitempty"`
	PublicID  string `json:"public_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// subscriber is one open dashboard connection.
type subscriber struct {
	events chan Event
}

// Hub fans out events to per-company subscribers. With a Redis client the
// hub publishes through Pub/Sub so every instance delivers to its own
// websocket connections; without one, delivery is in-process only.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]map[*subscriber]struct{}
	redis       *redis.Client
}

// NewHub constructs a Hub. redisClient may be nil.
func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		subscribers: make(map[uint64]map[*subscriber]struct{}),
		redis:       redisClient,
	}
}

// Run consumes the Redis channel until ctx is done. It is a no-op without
// a Redis client.
func (h *Hub) Run(ctx context.Context) {
	if h == nil || h.redis == nil {
		return
	}
	go func() {
		sub := h.redis.Subscribe(ctx, redisChannel)
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if errDecode := json.Unmarshal([]byte(msg.Payload), &event); errDecode != nil {
					log.Warnf("realtime: drop malformed event: %v", errDecode)
					continue
				}
				h.deliver(event)
			}
		}
	}()
}

// Publish sends an event to every dashboard subscribed to the company.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if h == nil || event.CompanyID == 0 {
		return
	}
	if h.redis != nil {
		payload, errEncode := json.Marshal(event)
		if errEncode != nil {
			log.Warnf("realtime: encode event: %v", errEncode)
			return
		}
		if errPublish := h.redis.Publish(ctx, redisChannel, payload).Err(); errPublish != nil {
			log.Warnf("realtime: publish event: %v", errPublish)
			// fall through to local delivery so single-instance setups
			// keep working while redis is down
			h.deliver(event)
		}
		return
	}
	h.deliver(event)
}

// Subscribe registers a dashboard for a company's events. The returned
// cancel func must be called when the connection closes.
func (h *Hub) Subscribe(companyID uint64) (<-chan Event, func()) {
	sub := &subscriber{events: make(chan Event, 16)}

	h.mu.Lock()
	set, ok := h.subscribers[companyID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[companyID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subscribers[companyID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subscribers, companyID)
			}
		}
		h.mu.Unlock()
	}
	return sub.events, cancel
}

// deliver pushes an event to local subscribers, dropping when a consumer
// is too slow to keep up. Dashboards re-fetch on the next event anyway.
func (h *Hub) deliver(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[event.CompanyID] {
		select {
		case sub.events <- event:
		default:
		}
	}
}
