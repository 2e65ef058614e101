package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"p7s/pkg/models"
)

type ChatRepository interface {
	ListMessagesByConv(convKey string, limit int) ([]models.Message, error)
	ListMessagesForUser(userID string, limit int) ([]models.Message, error)
	ListBroadcasts(limit int) ([]models.Message, error)
	CountUnread(userID string) (int, error)
	MarkConversationRead(convKey, readerID string) (int64, error)
	UpdateMessageAsset(id, imageURL string, meta models.MessageMeta) error
	ListConversationsForUser(userID string, limit int) ([]models.Conversation, error)
	GetConversation(key string) (models.Conversation, error)

	CreateTicket(t models.Ticket) error
	GetTicketByID(id string) (models.Ticket, error)
	ListTicketsByStatus(status models.TicketStatus, limit int) ([]models.Ticket, error)
	ListTicketsByCreator(creatorID string, limit int) ([]models.Ticket, error)
	AssignTicket(id, assigneeID, assigneeName string) error
	SetTicketStatus(id string, status models.TicketStatus) error
}

type chatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) listMessages(query string, args ...interface{}) ([]models.Message, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *chatRepository) ListMessagesByConv(convKey string, limit int) ([]models.Message, error) {
	return r.listMessages(
		`SELECT `+messageColumns+` FROM messages WHERE conv_key = $1 ORDER BY timestamp DESC LIMIT $2`,
		convKey, limit)
}

// ListMessagesForUser inclui os comunicados globais junto com as mensagens
// diretas do usuário.
func (r *chatRepository) ListMessagesForUser(userID string, limit int) ([]models.Message, error) {
	return r.listMessages(
		`SELECT `+messageColumns+` FROM messages
		 WHERE sender_id = $1 OR receiver_id = $1 OR receiver_id = $2
		 ORDER BY timestamp DESC LIMIT $3`,
		userID, models.BroadcastReceiver, limit)
}

func (r *chatRepository) ListBroadcasts(limit int) ([]models.Message, error) {
	return r.listMessages(
		`SELECT `+messageColumns+` FROM messages WHERE receiver_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		models.BroadcastReceiver, limit)
}

func (r *chatRepository) CountUnread(userID string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT is_read`, userID,
	).Scan(&n)
	return n, err
}

// MarkConversationRead marca como lidas só as mensagens endereçadas ao
// leitor; as que ele mandou ficam como estão.
func (r *chatRepository) MarkConversationRead(convKey, readerID string) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE messages SET is_read = true
		 WHERE conv_key = $1 AND receiver_id = $2 AND NOT is_read`,
		convKey, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateMessageAsset troca o preview inline pela URL permanente quando o
// upload em background conclui (ou registra a falha nos metadados).
func (r *chatRepository) UpdateMessageAsset(id, imageURL string, meta models.MessageMeta) error {
	metaRaw, _ := json.Marshal(meta)
	_, err := r.db.Exec(
		`UPDATE messages SET image_url = $2, metadata = $3 WHERE id = $1`,
		id, imageURL, metaRaw)
	return err
}

func (r *chatRepository) ListConversationsForUser(userID string, limit int) ([]models.Conversation, error) {
	rows, err := r.db.Query(
		`SELECT key, participants, order_id, last_message, last_sender_id, updated_at
		 FROM conversations WHERE $1 = ANY(participants)
		 ORDER BY updated_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	convs := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *chatRepository) GetConversation(key string) (models.Conversation, error) {
	return scanConversation(r.db.QueryRow(
		`SELECT key, participants, order_id, last_message, last_sender_id, updated_at
		 FROM conversations WHERE key = $1`, key))
}

func scanConversation(rs rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var orderID sql.NullString
	err := rs.Scan(&c.Key, pq.Array(&c.Participants), &orderID, &c.LastMessage, &c.LastSenderID, &c.UpdatedAt)
	c.OrderID = orderID.String
	return c, err
}

func (r *chatRepository) CreateTicket(t models.Ticket) error {
	_, err := r.db.Exec(
		`INSERT INTO tickets (id, creator_id, creator_name, creator_role, category, subject,
		                      order_id, status, assignee_id, assignee_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, NULLIF($9,''), NULLIF($10,''), $11, $12)`,
		t.ID, t.CreatorID, t.CreatorName, t.CreatorRole, t.Category, t.Subject,
		t.OrderID, t.Status, t.AssigneeID, t.AssigneeName, t.CreatedAt, t.UpdatedAt)
	return err
}

const ticketColumns = `id, creator_id, creator_name, creator_role, category, subject, order_id, status, assignee_id, assignee_name, created_at, updated_at`

func scanTicket(rs rowScanner) (models.Ticket, error) {
	var t models.Ticket
	var orderID, assigneeID, assigneeName sql.NullString
	err := rs.Scan(&t.ID, &t.CreatorID, &t.CreatorName, &t.CreatorRole, &t.Category, &t.Subject,
		&orderID, &t.Status, &assigneeID, &assigneeName, &t.CreatedAt, &t.UpdatedAt)
	t.OrderID = orderID.String
	t.AssigneeID = assigneeID.String
	t.AssigneeName = assigneeName.String
	return t, err
}

func (r *chatRepository) GetTicketByID(id string) (models.Ticket, error) {
	return scanTicket(r.db.QueryRow(
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
}

func (r *chatRepository) listTickets(query string, args ...interface{}) ([]models.Ticket, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *chatRepository) ListTicketsByStatus(status models.TicketStatus, limit int) ([]models.Ticket, error) {
	return r.listTickets(
		`SELECT `+ticketColumns+` FROM tickets WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
}

func (r *chatRepository) ListTicketsByCreator(creatorID string, limit int) ([]models.Ticket, error) {
	return r.listTickets(
		`SELECT `+ticketColumns+` FROM tickets WHERE creator_id = $1 ORDER BY created_at DESC LIMIT $2`,
		creatorID, limit)
}

func (r *chatRepository) AssignTicket(id, assigneeID, assigneeName string) error {
	_, err := r.db.Exec(
		`UPDATE tickets SET assignee_id = $2, assignee_name = $3, status = $4, updated_at = now()
		 WHERE id = $1`,
		id, assigneeID, assigneeName, models.TicketAssigned)
	return err
}

func (r *chatRepository) SetTicketStatus(id string, status models.TicketStatus) error {
	_, err := r.db.Exec(
		`UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}
