package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/broker"
	"p7s/pkg/envelope"

	"github.com/gofiber/contrib/websocket"
)

// QueryFunc materializa uma subscription para um viewer. A implementação
// aplica as regras de visibilidade (passageiro vê os próprios pedidos, admin
// vê tudo) antes de devolver os itens.
type QueryFunc func(ctx context.Context, v Viewer, sub Subscription) (interface{}, error)

type ActionHandler func(envelope.Envelope)

type clientConn struct {
	conn   *websocket.Conn
	userID string
	role   string
	mu     sync.Mutex

	subMu sync.Mutex
	subs  map[string]Subscription
}

func (cc *clientConn) send(data []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if err := cc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] send error user=%s: %v", cc.userID, err)
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*clientConn
	byUser  map[string][]*clientConn

	queries  map[string]QueryFunc
	handlers map[string]ActionHandler

	// connMap tracks the originating connection for each request ID
	// so replies go to the exact socket that sent the request
	connMu  sync.RWMutex
	connMap map[string]*clientConn

	queryTimeout time.Duration
}

func New(b *broker.Broker) *Hub {
	h := &Hub{
		clients:      make(map[*websocket.Conn]*clientConn),
		byUser:       make(map[string][]*clientConn),
		queries:      make(map[string]QueryFunc),
		handlers:     make(map[string]ActionHandler),
		connMap:      make(map[string]*clientConn),
		queryTimeout: 10 * time.Second,
	}
	if b != nil {
		b.OnChange(h.onChange)
	}
	go h.cleanupConnMap()
	return h
}

func (h *Hub) cleanupConnMap() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		h.connMu.Lock()
		if len(h.connMap) > 10000 {
			h.connMap = make(map[string]*clientConn)
		}
		h.connMu.Unlock()
	}
}

// RegisterQuery liga uma coleção observável à query que a materializa.
// Coleções sem query registrada não aceitam subscription.
func (h *Hub) RegisterQuery(collection string, fn QueryFunc) {
	h.queries[collection] = fn
}

// On registra um handler RPC para uma action fora do protocolo de
// subscription (ping e afins já são tratados internamente).
func (h *Hub) On(action string, fn ActionHandler) {
	h.handlers[action] = fn
}

// onChange é o consumidor do canal de mudanças: toda subscription da
// coleção alterada é re-executada e o resultado completo empurrado.
func (h *Hub) onChange(ev broker.ChangeEvent) {
	h.mu.RLock()
	conns := make([]*clientConn, 0, len(h.clients))
	for _, cc := range h.clients {
		conns = append(conns, cc)
	}
	h.mu.RUnlock()

	for _, cc := range conns {
		cc.subMu.Lock()
		subs := make([]Subscription, 0, len(cc.subs))
		for _, sub := range cc.subs {
			if sub.Collection == ev.Collection {
				subs = append(subs, sub)
			}
		}
		cc.subMu.Unlock()
		for _, sub := range subs {
			go h.pushSubscription(cc, sub)
		}
	}
}

func (h *Hub) pushSubscription(cc *clientConn, sub Subscription) {
	fn, ok := h.queries[sub.Collection]
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout)
	defer cancel()

	items, err := fn(ctx, Viewer{UserID: cc.userID, Role: cc.role}, sub)
	if err != nil {
		log.Printf("[HUB] query %s falhou para user=%s: %v", sub.Collection, cc.userID, err)
		return
	}
	env, err := envelope.NewEvent("subscription.data", "hub", SubscriptionData{ID: sub.ID, Items: items})
	if err != nil {
		return
	}
	raw, _ := env.Marshal()
	cc.send(raw)
}

func (h *Hub) HandleClientConn(c *websocket.Conn, userID, role string) {
	cc := &clientConn{conn: c, userID: userID, role: role, subs: make(map[string]Subscription)}

	h.mu.Lock()
	h.clients[c] = cc
	if userID != "" {
		h.byUser[userID] = append(h.byUser[userID], cc)
	}
	h.mu.Unlock()

	log.Printf("[HUB] Client connected: user_id=%s total=%d", userID, h.ClientCount())

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		if userID != "" {
			conns := h.byUser[userID]
			for i, conn := range conns {
				if conn == cc {
					h.byUser[userID] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			if len(h.byUser[userID]) == 0 {
				delete(h.byUser, userID)
			}
		}
		h.mu.Unlock()
		c.Close()
		log.Printf("[HUB] Client disconnected: user_id=%s total=%d", userID, h.ClientCount())
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var env envelope.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			errResp := envelope.Envelope{
				Action:    "error",
				Error:     &envelope.ErrorPayload{Code: 400, Message: "JSON inválido"},
				Timestamp: time.Now().UnixMilli(),
			}
			data, _ := errResp.Marshal()
			cc.send(data)
			continue
		}

		// Identidade vem do JWT da conexão, nunca do payload.
		requestID := env.ID
		env.UserID = userID
		env.Role = role
		env.ReplyTo = requestID

		h.connMu.Lock()
		h.connMap[requestID] = cc
		h.connMu.Unlock()

		switch env.Action {
		case "ping":
			pong := envelope.New("pong", "hub")
			data, _ := pong.Marshal()
			cc.send(data)
		case "subscribe":
			h.handleSubscribe(cc, env)
		case "unsubscribe":
			h.handleUnsubscribe(cc, env)
		default:
			handler, ok := h.handlers[env.Action]
			if !ok {
				h.ReplyError(env, apperrors.ErrInvalidState, "ação não encontrada: "+env.Action)
				continue
			}
			go handler(env)
		}
	}
}

func (h *Hub) handleSubscribe(cc *clientConn, env envelope.Envelope) {
	sub, err := envelope.ParseData[Subscription](env)
	if err != nil || sub.ID == "" || sub.Collection == "" {
		h.ReplyError(env, apperrors.ErrInvalidState, "subscription inválida")
		return
	}
	if _, ok := h.queries[sub.Collection]; !ok {
		h.ReplyError(env, apperrors.ErrInvalidState, "coleção não observável: "+sub.Collection)
		return
	}

	cc.subMu.Lock()
	cc.subs[sub.ID] = sub
	cc.subMu.Unlock()

	// Snapshot inicial na hora: o cliente não espera a primeira mudança.
	go h.pushSubscription(cc, sub)
	h.Reply(env, map[string]string{"id": sub.ID, "status": "subscribed"})
}

func (h *Hub) handleUnsubscribe(cc *clientConn, env envelope.Envelope) {
	req, err := envelope.ParseData[struct {
		ID string `json:"id"`
	}](env)
	if err != nil || req.ID == "" {
		h.ReplyError(env, apperrors.ErrInvalidState, "subscription inválida")
		return
	}
	cc.subMu.Lock()
	delete(cc.subs, req.ID)
	cc.subMu.Unlock()
	h.Reply(env, map[string]string{"id": req.ID, "status": "unsubscribed"})
}

// Reply sends a response to the specific connection that made the request
func (h *Hub) Reply(original envelope.Envelope, data interface{}) {
	env, err := envelope.NewReply(original, data)
	if err != nil {
		log.Printf("[HUB] Reply marshal error: %v", err)
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.deliverReply(original, raw)
}

// ReplyError traduz o erro de domínio para o par código/kind do envelope.
func (h *Hub) ReplyError(original envelope.Envelope, domainErr error, msg string) {
	env := envelope.NewError(original, apperrors.StatusCode(domainErr), apperrors.Kind(domainErr), msg)
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.deliverReply(original, raw)
}

func (h *Hub) deliverReply(original envelope.Envelope, raw []byte) {
	h.connMu.RLock()
	cc, ok := h.connMap[original.ReplyTo]
	h.connMu.RUnlock()

	if ok {
		cc.send(raw)
		h.connMu.Lock()
		delete(h.connMap, original.ReplyTo)
		h.connMu.Unlock()
		return
	}

	// Fallback: send to all connections of this user
	if original.UserID != "" {
		h.mu.RLock()
		conns := h.byUser[original.UserID]
		h.mu.RUnlock()
		for _, c := range conns {
			c.send(raw)
		}
	}
}

// SendToUser empurra um evento para todas as conexões de um usuário.
func (h *Hub) SendToUser(userID, action string, data interface{}) {
	env, err := envelope.NewEvent(action, "hub", data)
	if err != nil {
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.mu.RLock()
	conns := h.byUser[userID]
	h.mu.RUnlock()
	for _, cc := range conns {
		cc.send(raw)
	}
}

// Broadcast sends an event to ALL connected clients
func (h *Hub) Broadcast(action string, data interface{}) {
	env, err := envelope.NewEvent(action, "hub", data)
	if err != nil {
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cc := range h.clients {
		cc.send(raw)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
