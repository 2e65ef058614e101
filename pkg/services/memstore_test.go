package services

import (
	"context"
	"sync"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"
)

// memState é o banco em memória dos testes. O runner serializa transações
// com um mutex e comita por troca de snapshot, então uma transação que
// falha no meio não deixa escrita parcial — o mesmo contrato do Postgres
// serializável.
type memState struct {
	users    map[string]models.User
	routes   map[string]models.OfficialRoute
	orders   map[string]models.Order
	treasury int64
	logs     []models.WalletLog
	vouchers map[string]models.Voucher
	messages map[string]models.Message
	convs    map[string]models.Conversation
}

func newMemState() *memState {
	return &memState{
		users:    map[string]models.User{},
		routes:   map[string]models.OfficialRoute{},
		orders:   map[string]models.Order{},
		vouchers: map[string]models.Voucher{},
		messages: map[string]models.Message{},
		convs:    map[string]models.Conversation{},
	}
}

func (st *memState) clone() *memState {
	cp := newMemState()
	for k, v := range st.users {
		if v.Docs != nil {
			docs := map[string]models.DriverDoc{}
			for dk, dv := range v.Docs {
				docs[dk] = dv
			}
			v.Docs = docs
		}
		cp.users[k] = v
	}
	for k, v := range st.routes {
		cp.routes[k] = v
	}
	for k, v := range st.orders {
		cp.orders[k] = v
	}
	for k, v := range st.vouchers {
		cp.vouchers[k] = v
	}
	for k, v := range st.messages {
		cp.messages[k] = v
	}
	for k, v := range st.convs {
		cp.convs[k] = v
	}
	cp.treasury = st.treasury
	cp.logs = append(cp.logs, st.logs...)
	return cp
}

type memRunner struct {
	mu    sync.Mutex
	state *memState
}

func newMemRunner() *memRunner {
	return &memRunner{state: newMemState()}
}

func (r *memRunner) InTx(ctx context.Context, fn func(repository.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := r.state.clone()
	if err := fn(&memTx{st: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

// snapshot lê o estado comitado fora de transação.
func (r *memRunner) snapshot() *memState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

type memTx struct {
	st *memState
}

func (t *memTx) UserForUpdate(ctx context.Context, id string) (models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (t *memTx) AdjustUserPoints(ctx context.Context, id string, delta int64) error {
	u, ok := t.st.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Points += delta
	t.st.users[id] = u
	return nil
}

func (t *memTx) RouteForUpdate(ctx context.Context, id string) (models.OfficialRoute, error) {
	rt, ok := t.st.routes[id]
	if !ok {
		return models.OfficialRoute{}, apperrors.ErrInvalidState
	}
	return rt, nil
}

func (t *memTx) AdjustRouteSeats(ctx context.Context, id string, delta int) error {
	rt := t.st.routes[id]
	rt.OccupiedSeats += delta
	t.st.routes[id] = rt
	return nil
}

func (t *memTx) SetRouteStatus(ctx context.Context, id string, status models.OfficialRouteStatus) error {
	rt := t.st.routes[id]
	rt.Status = status
	t.st.routes[id] = rt
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, id string) (models.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return models.Order{}, apperrors.ErrOrderUnavailable
	}
	return o, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o models.Order) error {
	t.st.orders[o.ID] = o
	return nil
}

func (t *memTx) AssignDriver(ctx context.Context, orderID, driverID string) error {
	o := t.st.orders[orderID]
	o.DriverID = driverID
	o.Status = models.OrderAccepted
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, completedAt *time.Time) error {
	o := t.st.orders[orderID]
	o.Status = status
	if status == models.OrderCancelled {
		o.DriverID = ""
	}
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) TreasuryForUpdate(ctx context.Context) (int64, error) {
	return t.st.treasury, nil
}

func (t *memTx) AdjustTreasury(ctx context.Context, delta int64) error {
	t.st.treasury += delta
	return nil
}

func (t *memTx) InsertWalletLog(ctx context.Context, l models.WalletLog) error {
	t.st.logs = append(t.st.logs, l)
	return nil
}

func (t *memTx) InsertVoucher(ctx context.Context, v models.Voucher) error {
	t.st.vouchers[v.ID] = v
	return nil
}

func (t *memTx) InsertMessage(ctx context.Context, m models.Message) error {
	t.st.messages[m.ID] = m
	return nil
}

func (t *memTx) UpsertConversation(ctx context.Context, c models.Conversation) error {
	t.st.convs[c.Key] = c
	return nil
}

// fakeNotifier grava os eventos de mudança publicados.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) PublishChange(collection, docID string) {
	n.mu.Lock()
	n.events = append(n.events, collection)
	n.mu.Unlock()
}

func (n *fakeNotifier) sawCollection(collection string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == collection {
			return true
		}
	}
	return false
}
