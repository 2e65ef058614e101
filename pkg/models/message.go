package models

import (
	"sort"
	"strings"
	"time"
)

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageSystem MessageType = "SYSTEM"
)

type SyncStatus string

const (
	SyncUploading SyncStatus = "uploading"
	SyncSent      SyncStatus = "sent"
)

// BroadcastReceiver é o destinatário especial dos comunicados globais.
const BroadcastReceiver = "ALL"

// AdminSender mascara a identidade dos atendentes nas conversas de suporte;
// quem respondeu de verdade fica em realSenderId.
const AdminSender = "SYSTEM_ADMIN"

type MessageMeta struct {
	Status       SyncStatus `json:"status"`
	IsAdminReply bool       `json:"isAdminReply,omitempty"`
	IsBroadcast  bool       `json:"isBroadcast,omitempty"`
	IsSynced     bool       `json:"isSynced,omitempty"`
	UploadError  bool       `json:"uploadError,omitempty"`
}

// Message: o preview inline (imageUrl em data-URL) é gravado junto com o
// registro — a visibilidade nunca depende do upload do asset.
type Message struct {
	ID           string      `json:"id"`
	ConvKey      string      `json:"convKey"`
	SenderID     string      `json:"senderId"`
	RealSenderID string      `json:"realSenderId,omitempty"`
	ReceiverID   string      `json:"receiverId"`
	Type         MessageType `json:"type"`
	Content      string      `json:"content"`
	ImageURL     string      `json:"imageUrl,omitempty"`
	OrderID      string      `json:"orderId,omitempty"`
	TicketID     string      `json:"ticketId,omitempty"`
	IsRead       bool        `json:"isRead"`
	Metadata     MessageMeta `json:"metadata"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Conversation é o resumo denormalizado de um par de participantes
// (+ pedido opcional), atualizado na mesma transação da mensagem.
type Conversation struct {
	Key          string    `json:"key"`
	Participants []string  `json:"participants"`
	OrderID      string    `json:"orderId,omitempty"`
	LastMessage  string    `json:"lastMessage"`
	LastSenderID string    `json:"lastSenderId"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConversationKey é estável para o par — independe de quem mandou primeiro.
func ConversationKey(a, b, orderID string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	key := strings.Join(pair, ":")
	if orderID != "" {
		key += ":" + orderID
	}
	return key
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketAssigned TicketStatus = "ASSIGNED"
	TicketResolved TicketStatus = "RESOLVED"
)

type Ticket struct {
	ID           string       `json:"id"`
	CreatorID    string       `json:"creatorId"`
	CreatorName  string       `json:"creatorName"`
	CreatorRole  UserRole     `json:"creatorRole"`
	Category     string       `json:"category"`
	Subject      string       `json:"subject"`
	OrderID      string       `json:"orderId,omitempty"`
	Status       TicketStatus `json:"status"`
	AssigneeID   string       `json:"assigneeId,omitempty"`
	AssigneeName string       `json:"assigneeName,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
