package services

import (
	"sort"
	"sync"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"
)

// Helpers de seed: escrevem direto no estado comitado do runner.

func (r *memRunner) seedUser(u models.User) {
	r.mu.Lock()
	r.state.users[u.ID] = u
	r.mu.Unlock()
}

func (r *memRunner) seedRoute(rt models.OfficialRoute) {
	r.mu.Lock()
	r.state.routes[rt.ID] = rt
	r.mu.Unlock()
}

func (r *memRunner) seedOrder(o models.Order) {
	r.mu.Lock()
	r.state.orders[o.ID] = o
	r.mu.Unlock()
}

func (r *memRunner) seedTreasury(amount int64) {
	r.mu.Lock()
	r.state.treasury = amount
	r.mu.Unlock()
}

// fakeRouteRepo lê do snapshot comitado do runner, como o repositório SQL
// leria do banco.
type fakeRouteRepo struct {
	runner *memRunner
}

func (f *fakeRouteRepo) CreateRoute(rt models.OfficialRoute) error {
	f.runner.seedRoute(rt)
	return nil
}

func (f *fakeRouteRepo) GetRouteByID(id string) (models.OfficialRoute, error) {
	st := f.runner.snapshot()
	rt, ok := st.routes[id]
	if !ok {
		return models.OfficialRoute{}, apperrors.ErrInvalidState
	}
	return rt, nil
}

func (f *fakeRouteRepo) listAll() []models.OfficialRoute {
	st := f.runner.snapshot()
	out := []models.OfficialRoute{}
	for _, rt := range st.routes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeRouteRepo) ListRoutes(limit int) ([]models.OfficialRoute, error) {
	return f.listAll(), nil
}

func (f *fakeRouteRepo) ListRoutesByStatus(status models.OfficialRouteStatus, limit int) ([]models.OfficialRoute, error) {
	out := []models.OfficialRoute{}
	for _, rt := range f.listAll() {
		if rt.Status == status {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (f *fakeRouteRepo) ListOpenRoutes(limit int) ([]models.OfficialRoute, error) {
	out := []models.OfficialRoute{}
	for _, rt := range f.listAll() {
		if rt.Status == models.RouteCollecting || rt.Status == models.RouteConfirmed {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (f *fakeRouteRepo) SetRouteDriver(id, driverID string) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	rt := f.runner.state.routes[id]
	rt.DriverID = driverID
	f.runner.state.routes[id] = rt
	return nil
}

func (f *fakeRouteRepo) SetAdminNote(id, note string) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	rt := f.runner.state.routes[id]
	rt.AdminNote = note
	f.runner.state.routes[id] = rt
	return nil
}

type fakeOrderRepo struct {
	runner   *memRunner
	mu       sync.Mutex
	archived []string
}

func (f *fakeOrderRepo) GetOrderByID(id string) (models.Order, error) {
	st := f.runner.snapshot()
	o, ok := st.orders[id]
	if !ok {
		return models.Order{}, apperrors.ErrOrderUnavailable
	}
	return o, nil
}

func (f *fakeOrderRepo) listAll() []models.Order {
	st := f.runner.snapshot()
	out := []models.Order{}
	for _, o := range st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeOrderRepo) ListOrdersByPassenger(passengerID string, limit int) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.PassengerID == passengerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrdersByDriver(driverID string, limit int) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.DriverID == driverID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrdersByStatus(status models.OrderStatus, limit int) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOpenOrders(limit int) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.Status == models.OrderPending || o.Status == models.OrderWaitingForDriver {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrdersByRoute(routeID string) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.OfficialRouteID == routeID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListTerminalOrdersBefore(cutoff time.Time) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.listAll() {
		if o.Status.Terminal() && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ArchiveOrder(id string) error {
	f.runner.mu.Lock()
	delete(f.runner.state.orders, id)
	f.runner.mu.Unlock()
	f.mu.Lock()
	f.archived = append(f.archived, id)
	f.mu.Unlock()
	return nil
}

type fakeWalletRepo struct {
	runner *memRunner
}

func (f *fakeWalletRepo) GetTreasuryBalance() (int64, error) {
	return f.runner.snapshot().treasury, nil
}

func (f *fakeWalletRepo) ListLogs(limit int) ([]models.WalletLog, error) {
	return f.runner.snapshot().logs, nil
}

func (f *fakeWalletRepo) ListLogsByUser(userID string, limit int) ([]models.WalletLog, error) {
	out := []models.WalletLog{}
	for _, l := range f.runner.snapshot().logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) ListActiveVouchers(userID string, now time.Time) ([]models.Voucher, error) {
	out := []models.Voucher{}
	for _, v := range f.runner.snapshot().vouchers {
		if v.UserID == userID && v.Status == models.VoucherActive && v.ExpiryDate.After(now) && v.Balance > 0 {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (f *fakeWalletRepo) GetVoucherByID(id string) (models.Voucher, error) {
	v, ok := f.runner.snapshot().vouchers[id]
	if !ok {
		return models.Voucher{}, apperrors.ErrInvalidState
	}
	return v, nil
}

func (f *fakeWalletRepo) ExpireVouchers(now time.Time) (int64, error) {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	var n int64
	for id, v := range f.runner.state.vouchers {
		if v.Status == models.VoucherActive && !v.ExpiryDate.After(now) {
			v.Status = models.VoucherExpired
			f.runner.state.vouchers[id] = v
			n++
		}
	}
	return n, nil
}

// fakeAuthRepo cobre a parte de leitura/CRUD dos users fora de transação.
type fakeAuthRepo struct {
	runner   *memRunner
	mu       sync.Mutex
	creds    map[string]repository.Credentials
	sessions map[string]models.Session
	nextID   int
}

func newFakeAuthRepo(runner *memRunner) *fakeAuthRepo {
	return &fakeAuthRepo{
		runner:   runner,
		creds:    map[string]repository.Credentials{},
		sessions: map[string]models.Session{},
	}
}

func (f *fakeAuthRepo) setCreds(userID string, c repository.Credentials) {
	f.mu.Lock()
	f.creds[userID] = c
	f.mu.Unlock()
}

func (f *fakeAuthRepo) CreateUser(u models.User, hashedPassword string) error {
	f.runner.seedUser(u)
	f.setCreds(u.ID, repository.Credentials{PasswordHash: hashedPassword})
	return nil
}

func (f *fakeAuthRepo) GetUserByID(id string) (models.User, error) {
	u, ok := f.runner.snapshot().users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) getUserBy(match func(models.User) bool) (models.User, repository.Credentials, error) {
	st := f.runner.snapshot()
	candidates := []models.User{}
	for _, u := range st.users {
		if match(u) {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return models.User{}, repository.Credentials{}, apperrors.ErrUserNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	u := candidates[0]
	f.mu.Lock()
	c := f.creds[u.ID]
	f.mu.Unlock()
	return u, c, nil
}

func (f *fakeAuthRepo) GetUserByPhone(phone string) (models.User, repository.Credentials, error) {
	return f.getUserBy(func(u models.User) bool { return u.Phone != "" && u.Phone == phone })
}

func (f *fakeAuthRepo) GetUserByEmail(email string) (models.User, repository.Credentials, error) {
	return f.getUserBy(func(u models.User) bool { return u.Email != "" && u.Email == email })
}

func (f *fakeAuthRepo) UpdatePassword(userID, hashedPassword string) error {
	f.setCreds(userID, repository.Credentials{PasswordHash: hashedPassword})
	return nil
}

func (f *fakeAuthRepo) UpdateProfile(userID, name, email string) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u, ok := f.runner.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	f.runner.state.users[userID] = u
	return nil
}

func (f *fakeAuthRepo) SetAccountStatus(userID string, status models.AccountStatus) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u, ok := f.runner.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Status = status
	f.runner.state.users[userID] = u
	return nil
}

func (f *fakeAuthRepo) SetRole(userID string, role models.UserRole) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u := f.runner.state.users[userID]
	u.Role = role
	f.runner.state.users[userID] = u
	return nil
}

func (f *fakeAuthRepo) UpdateDocs(userID string, docs map[string]models.DriverDoc) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u, ok := f.runner.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	copied := map[string]models.DriverDoc{}
	for k, v := range docs {
		copied[k] = v
	}
	u.Docs = copied
	f.runner.state.users[userID] = u
	return nil
}

func (f *fakeAuthRepo) ReplaceDocURL(userID, docType, fromURL, toURL string) (bool, error) {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u, ok := f.runner.state.users[userID]
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	doc, ok := u.Docs[docType]
	if !ok || doc.URL != fromURL {
		return false, nil
	}
	doc.URL = toURL
	copied := map[string]models.DriverDoc{}
	for k, v := range u.Docs {
		copied[k] = v
	}
	copied[docType] = doc
	u.Docs = copied
	f.runner.state.users[userID] = u
	return true, nil
}

func (f *fakeAuthRepo) SetDriverStatus(userID string, status models.DriverStatus, reason string) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	u, ok := f.runner.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.DriverStatus = status
	u.RejectionReason = reason
	f.runner.state.users[userID] = u
	return nil
}

func (f *fakeAuthRepo) DeleteUser(userID string) error {
	f.runner.mu.Lock()
	delete(f.runner.state.users, userID)
	f.runner.mu.Unlock()
	return nil
}

func (f *fakeAuthRepo) listUsers(match func(models.User) bool) []models.User {
	out := []models.User{}
	for _, u := range f.runner.snapshot().users {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeAuthRepo) ListUsers(limit int) ([]models.User, error) {
	return f.listUsers(func(models.User) bool { return true }), nil
}

func (f *fakeAuthRepo) ListUsersByRole(role models.UserRole, limit int) ([]models.User, error) {
	return f.listUsers(func(u models.User) bool { return u.Role == role }), nil
}

func (f *fakeAuthRepo) ListGhostUsers(olderThan time.Time) ([]models.User, error) {
	return f.listUsers(func(u models.User) bool { return u.IsGhost() && u.CreatedAt.Before(olderThan) }), nil
}

func (f *fakeAuthRepo) ListUsersByPhone(phone string) ([]models.User, error) {
	return f.listUsers(func(u models.User) bool { return u.Phone != "" && u.Phone == phone }), nil
}

func (f *fakeAuthRepo) ListDuplicatePhones() ([]string, error) {
	counts := map[string]int{}
	for _, u := range f.runner.snapshot().users {
		if u.Phone != "" {
			counts[u.Phone]++
		}
	}
	out := []string{}
	for p, n := range counts {
		if n > 1 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeAuthRepo) CreateSession(userID, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sessions[refreshToken] = models.Session{
		ID: f.nextID, UserID: userID, UserAgent: userAgent, IP: ip,
		ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeAuthRepo) GetSessionByToken(token string) (models.Session, models.User, error) {
	f.mu.Lock()
	s, ok := f.sessions[token]
	f.mu.Unlock()
	if !ok {
		return models.Session{}, models.User{}, apperrors.ErrUserNotFound
	}
	u, err := f.GetUserByID(s.UserID)
	return s, u, err
}

func (f *fakeAuthRepo) UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.sessions {
		if s.ID == sessionID {
			delete(f.sessions, token)
			s.ExpiresAt = expiresAt
			f.sessions[newRefresh] = s
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}

func (f *fakeAuthRepo) DeleteSessionByID(sessionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.sessions {
		if s.ID == sessionID {
			delete(f.sessions, token)
		}
	}
	return nil
}

func (f *fakeAuthRepo) DeleteSessionByToken(token string) error {
	f.mu.Lock()
	delete(f.sessions, token)
	f.mu.Unlock()
	return nil
}

func (f *fakeAuthRepo) DeleteAllSessionsByUserID(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, token)
		}
	}
	return nil
}

func (f *fakeAuthRepo) GetActiveSessionsByUserID(userID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Session{}
	now := time.Now()
	for _, s := range f.sessions {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) DeleteExpiredSessions() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for token, s := range f.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

// fakeChatRepo lê mensagens/conversas do runner e guarda tickets localmente.
type fakeChatRepo struct {
	runner  *memRunner
	mu      sync.Mutex
	tickets map[string]models.Ticket
}

func newFakeChatRepo(runner *memRunner) *fakeChatRepo {
	return &fakeChatRepo{runner: runner, tickets: map[string]models.Ticket{}}
}

func (f *fakeChatRepo) listMessages(match func(models.Message) bool) []models.Message {
	out := []models.Message{}
	for _, m := range f.runner.snapshot().messages {
		if match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (f *fakeChatRepo) ListMessagesByConv(convKey string, limit int) ([]models.Message, error) {
	return f.listMessages(func(m models.Message) bool { return m.ConvKey == convKey }), nil
}

func (f *fakeChatRepo) ListMessagesForUser(userID string, limit int) ([]models.Message, error) {
	return f.listMessages(func(m models.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID || m.ReceiverID == models.BroadcastReceiver
	}), nil
}

func (f *fakeChatRepo) ListBroadcasts(limit int) ([]models.Message, error) {
	return f.listMessages(func(m models.Message) bool { return m.ReceiverID == models.BroadcastReceiver }), nil
}

func (f *fakeChatRepo) CountUnread(userID string) (int, error) {
	return len(f.listMessages(func(m models.Message) bool { return m.ReceiverID == userID && !m.IsRead })), nil
}

func (f *fakeChatRepo) MarkConversationRead(convKey, readerID string) (int64, error) {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	var n int64
	for id, m := range f.runner.state.messages {
		if m.ConvKey == convKey && m.ReceiverID == readerID && !m.IsRead {
			m.IsRead = true
			f.runner.state.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (f *fakeChatRepo) UpdateMessageAsset(id, imageURL string, meta models.MessageMeta) error {
	f.runner.mu.Lock()
	defer f.runner.mu.Unlock()
	m, ok := f.runner.state.messages[id]
	if !ok {
		return apperrors.ErrInvalidState
	}
	m.ImageURL = imageURL
	m.Metadata = meta
	f.runner.state.messages[id] = m
	return nil
}

func (f *fakeChatRepo) ListConversationsForUser(userID string, limit int) ([]models.Conversation, error) {
	out := []models.Conversation{}
	for _, c := range f.runner.snapshot().convs {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeChatRepo) GetConversation(key string) (models.Conversation, error) {
	c, ok := f.runner.snapshot().convs[key]
	if !ok {
		return models.Conversation{}, apperrors.ErrInvalidState
	}
	return c, nil
}

func (f *fakeChatRepo) CreateTicket(t models.Ticket) error {
	f.mu.Lock()
	f.tickets[t.ID] = t
	f.mu.Unlock()
	return nil
}

func (f *fakeChatRepo) GetTicketByID(id string) (models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return models.Ticket{}, apperrors.ErrInvalidState
	}
	return t, nil
}

func (f *fakeChatRepo) ListTicketsByStatus(status models.TicketStatus, limit int) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Ticket{}
	for _, t := range f.tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) ListTicketsByCreator(creatorID string, limit int) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Ticket{}
	for _, t := range f.tickets {
		if t.CreatorID == creatorID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) AssignTicket(id, assigneeID, assigneeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return apperrors.ErrInvalidState
	}
	t.AssigneeID = assigneeID
	t.AssigneeName = assigneeName
	t.Status = models.TicketAssigned
	f.tickets[id] = t
	return nil
}

func (f *fakeChatRepo) SetTicketStatus(id string, status models.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return apperrors.ErrInvalidState
	}
	t.Status = status
	f.tickets[id] = t
	return nil
}
