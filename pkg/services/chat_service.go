package services

import (
	"context"
	"log"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"
	"p7s/pkg/storage"

	"github.com/google/uuid"
)

// Reducer produz a codificação reduzida + preview embutível de um anexo,
// de forma síncrona. Colaborador injetado; o padrão repassa o data-URL
// que o cliente já reduziu.
type Reducer func(dataURL string) (string, error)

func passthroughReducer(dataURL string) (string, error) {
	if !storage.IsDataURL(dataURL) {
		return "", apperrors.ErrInvalidState
	}
	return dataURL, nil
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	OrderID    string `json:"orderId,omitempty"`
	TicketID   string `json:"ticketId,omitempty"`
	ImageData  string `json:"imageData,omitempty"`
	AsAdmin    bool   `json:"asAdmin,omitempty"`
}

type ChatService interface {
	Send(ctx context.Context, senderID string, req SendMessageRequest) (models.Message, error)
	Broadcast(ctx context.Context, adminID, content string) (models.Message, error)
	MarkRead(ctx context.Context, convKey, readerID string) error
	ListConversation(convKey string, limit int) ([]models.Message, error)
	ListForUser(userID string, limit int) ([]models.Message, error)
	ListConversations(userID string, limit int) ([]models.Conversation, error)
	CountUnread(userID string) (int, error)

	CreateTicket(ctx context.Context, creatorID, category, subject, orderID string) (models.Ticket, error)
	ClaimTicket(ctx context.Context, ticketID, adminID string) error
	ResolveTicket(ctx context.Context, ticketID, actorID string) error
	ListTickets(status models.TicketStatus, limit int) ([]models.Ticket, error)

	WaitUploads()
}

type chatService struct {
	runner   repository.Runner
	chat     repository.ChatRepository
	users    repository.AuthRepository
	promoter *storage.Promoter
	reduce   Reducer
	notifier ChangeNotifier
}

func NewChatService(runner repository.Runner, chat repository.ChatRepository, users repository.AuthRepository,
	promoter *storage.Promoter, reduce Reducer, notifier ChangeNotifier) ChatService {
	if reduce == nil {
		reduce = passthroughReducer
	}
	return &chatService{runner: runner, chat: chat, users: users, promoter: promoter, reduce: reduce, notifier: notifier}
}

// Send grava a mensagem durável com o preview inline ANTES de retornar; a
// visibilidade nunca espera o upload do asset. O resumo da conversa comita
// na mesma transação.
func (s *chatService) Send(ctx context.Context, senderID string, req SendMessageRequest) (models.Message, error) {
	if req.ReceiverID == "" || (req.Content == "" && req.ImageData == "") {
		return models.Message{}, apperrors.ErrInvalidState
	}

	sender, err := s.users.GetUserByID(senderID)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Type:       models.MessageText,
		Content:    req.Content,
		OrderID:    req.OrderID,
		TicketID:   req.TicketID,
		Metadata:   models.MessageMeta{Status: models.SyncSent},
		Timestamp:  time.Now(),
	}

	// Atendentes aparecem como SYSTEM_ADMIN; quem respondeu fica no
	// realSenderId para auditoria.
	if req.AsAdmin {
		if !sender.Role.IsAdmin() {
			return models.Message{}, apperrors.ErrUnauthorized
		}
		msg.RealSenderID = senderID
		msg.SenderID = models.AdminSender
		msg.Metadata.IsAdminReply = true
	}

	if req.ImageData != "" {
		preview, err := s.reduce(req.ImageData)
		if err != nil {
			return models.Message{}, err
		}
		msg.Type = models.MessageImage
		msg.ImageURL = preview
		msg.Metadata.Status = models.SyncUploading
	}

	msg.ConvKey = models.ConversationKey(msg.SenderID, msg.ReceiverID, req.OrderID)
	conv := models.Conversation{
		Key:          msg.ConvKey,
		Participants: []string{msg.SenderID, msg.ReceiverID},
		OrderID:      req.OrderID,
		LastMessage:  summaryText(msg),
		LastSenderID: msg.SenderID,
		UpdatedAt:    msg.Timestamp,
	}

	err = s.runner.InTx(ctx, func(store repository.Store) error {
		if err := store.InsertMessage(ctx, msg); err != nil {
			return err
		}
		return store.UpsertConversation(ctx, conv)
	})
	if err != nil {
		return models.Message{}, err
	}

	s.notifier.PublishChange("messages", msg.ID)
	s.notifier.PublishChange("conversations", msg.ConvKey)

	if msg.Metadata.Status == models.SyncUploading {
		s.promoteAsset(msg)
	}
	return msg, nil
}

// promoteAsset é a fase dois: upload em background e flip de status. Falha
// deixa o preview inline como conteúdo permanente, com uploadError marcado;
// a mensagem nunca fica invisível nem presa.
func (s *chatService) promoteAsset(msg models.Message) {
	s.promoter.Promote("chat_images", msg.ID, msg.ImageURL, func(permanentURL string, uploadErr error) {
		meta := msg.Metadata
		meta.Status = models.SyncSent
		url := msg.ImageURL
		if uploadErr != nil {
			meta.UploadError = true
		} else {
			meta.IsSynced = true
			url = permanentURL
		}
		if err := s.chat.UpdateMessageAsset(msg.ID, url, meta); err != nil {
			log.Printf("[CHAT] Flip de status de %s falhou: %v", msg.ID, err)
			return
		}
		s.notifier.PublishChange("messages", msg.ID)
	})
}

func summaryText(msg models.Message) string {
	if msg.Type == models.MessageImage {
		return "[imagem]"
	}
	return msg.Content
}

// Broadcast publica um comunicado global, visível a todos os usuários.
func (s *chatService) Broadcast(ctx context.Context, adminID, content string) (models.Message, error) {
	admin, err := s.users.GetUserByID(adminID)
	if err != nil {
		return models.Message{}, err
	}
	if !admin.Role.IsAdmin() {
		return models.Message{}, apperrors.ErrUnauthorized
	}
	if content == "" {
		return models.Message{}, apperrors.ErrInvalidState
	}

	msg := models.Message{
		ID:           uuid.NewString(),
		ConvKey:      models.ConversationKey(models.AdminSender, models.BroadcastReceiver, ""),
		SenderID:     models.AdminSender,
		RealSenderID: adminID,
		ReceiverID:   models.BroadcastReceiver,
		Type:         models.MessageSystem,
		Content:      content,
		Metadata:     models.MessageMeta{Status: models.SyncSent, IsBroadcast: true},
		Timestamp:    time.Now(),
	}
	err = s.runner.InTx(ctx, func(store repository.Store) error {
		return store.InsertMessage(ctx, msg)
	})
	if err != nil {
		return models.Message{}, err
	}

	log.Printf("[CHAT] Broadcast por=%s", adminID)
	s.notifier.PublishChange("messages", msg.ID)
	return msg, nil
}

func (s *chatService) MarkRead(ctx context.Context, convKey, readerID string) error {
	n, err := s.chat.MarkConversationRead(convKey, readerID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.notifier.PublishChange("messages", "")
	}
	return nil
}

func (s *chatService) ListConversation(convKey string, limit int) ([]models.Message, error) {
	return s.chat.ListMessagesByConv(convKey, limit)
}

func (s *chatService) ListForUser(userID string, limit int) ([]models.Message, error) {
	return s.chat.ListMessagesForUser(userID, limit)
}

func (s *chatService) ListConversations(userID string, limit int) ([]models.Conversation, error) {
	return s.chat.ListConversationsForUser(userID, limit)
}

func (s *chatService) CountUnread(userID string) (int, error) {
	return s.chat.CountUnread(userID)
}

func (s *chatService) CreateTicket(ctx context.Context, creatorID, category, subject, orderID string) (models.Ticket, error) {
	creator, err := s.users.GetUserByID(creatorID)
	if err != nil {
		return models.Ticket{}, err
	}
	if subject == "" {
		return models.Ticket{}, apperrors.ErrInvalidState
	}
	now := time.Now()
	t := models.Ticket{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		CreatorName: creator.Name,
		CreatorRole: creator.Role,
		Category:    category,
		Subject:     subject,
		OrderID:     orderID,
		Status:      models.TicketOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.chat.CreateTicket(t); err != nil {
		return models.Ticket{}, err
	}
	s.notifier.PublishChange("tickets", t.ID)
	return t, nil
}

func (s *chatService) ClaimTicket(ctx context.Context, ticketID, adminID string) error {
	admin, err := s.users.GetUserByID(adminID)
	if err != nil {
		return err
	}
	if !admin.Role.IsAdmin() {
		return apperrors.ErrUnauthorized
	}
	t, err := s.chat.GetTicketByID(ticketID)
	if err != nil {
		return err
	}
	if t.Status == models.TicketResolved {
		return apperrors.ErrInvalidState
	}
	if err := s.chat.AssignTicket(ticketID, adminID, admin.Name); err != nil {
		return err
	}
	s.notifier.PublishChange("tickets", ticketID)
	return nil
}

func (s *chatService) ResolveTicket(ctx context.Context, ticketID, actorID string) error {
	actor, err := s.users.GetUserByID(actorID)
	if err != nil {
		return err
	}
	t, err := s.chat.GetTicketByID(ticketID)
	if err != nil {
		return err
	}
	if t.CreatorID != actorID && !actor.Role.IsAdmin() {
		return apperrors.ErrUnauthorized
	}
	if err := s.chat.SetTicketStatus(ticketID, models.TicketResolved); err != nil {
		return err
	}
	s.notifier.PublishChange("tickets", ticketID)
	return nil
}

func (s *chatService) ListTickets(status models.TicketStatus, limit int) ([]models.Ticket, error) {
	return s.chat.ListTicketsByStatus(status, limit)
}

// WaitUploads drena as promoções pendentes. Shutdown e testes.
func (s *chatService) WaitUploads() {
	s.promoter.WaitUploads()
}
