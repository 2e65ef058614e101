package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/storage"
)

// pngDataURL é um preview inline mínimo válido para os testes.
const pngDataURL = "data:image/png;base64,aW1hZ2VtLXRlc3Q="

// stubBlob sobe para uma URL fixa ou falha sob demanda.
type stubBlob struct {
	mu   sync.Mutex
	fail bool
	puts []string
}

func (s *stubBlob) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", fmt.Errorf("bucket indisponível")
	}
	s.puts = append(s.puts, objectName)
	return "https://blobs.test/" + objectName, nil
}

type chatFixture struct {
	runner   *memRunner
	chat     *fakeChatRepo
	users    *fakeAuthRepo
	blob     *stubBlob
	notifier *fakeNotifier
	svc      ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	runner := newMemRunner()
	chat := newFakeChatRepo(runner)
	users := newFakeAuthRepo(runner)
	blob := &stubBlob{}
	notifier := &fakeNotifier{}
	svc := NewChatService(runner, chat, users, storage.NewPromoter(blob), nil, notifier)
	f := &chatFixture{runner: runner, chat: chat, users: users, blob: blob, notifier: notifier, svc: svc}
	runner.seedUser(models.User{ID: "pax-1", Name: "Ana", Role: models.RolePassenger, CreatedAt: time.Now()})
	runner.seedUser(models.User{ID: "drv-1", Name: "Bruno", Role: models.RoleDriver, CreatedAt: time.Now()})
	runner.seedUser(models.User{ID: "adm-1", Name: "Carla", Role: models.RoleAdminCS, CreatedAt: time.Now()})
	return f
}

func TestSendTextUpdatesConversation(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", Content: "chego em 5 minutos", OrderID: "ord-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Type != models.MessageText || msg.Metadata.Status != models.SyncSent {
		t.Fatalf("mensagem errada: %+v", msg)
	}
	wantKey := models.ConversationKey("pax-1", "drv-1", "ord-1")
	if msg.ConvKey != wantKey {
		t.Fatalf("convKey = %q, esperado %q", msg.ConvKey, wantKey)
	}

	st := f.runner.snapshot()
	conv, ok := st.convs[wantKey]
	if !ok {
		t.Fatal("conversa não criada na mesma transação")
	}
	if conv.LastMessage != "chego em 5 minutos" || conv.LastSenderID != "pax-1" {
		t.Fatalf("resumo errado: %+v", conv)
	}
	if !f.notifier.sawCollection("messages") || !f.notifier.sawCollection("conversations") {
		t.Fatal("mudanças não publicadas")
	}

	if _, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{ReceiverID: "drv-1"}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("mensagem vazia: err = %v, esperado InvalidState", err)
	}
}

func TestSendImageVisibleBeforeUploadResolves(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", ImageData: pngDataURL,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Type != models.MessageImage {
		t.Fatalf("type = %s, esperado IMAGE", msg.Type)
	}
	if msg.ImageURL != pngDataURL || msg.Metadata.Status != models.SyncUploading {
		t.Fatalf("mensagem devolvida sem preview durável: %+v", msg)
	}
	// O registro já está comitado com o preview, antes do upload terminar.
	stored := f.runner.snapshot().messages[msg.ID]
	if stored.ImageURL != pngDataURL {
		t.Fatal("preview não persistido")
	}
	if got := f.runner.snapshot().convs[msg.ConvKey].LastMessage; got != "[imagem]" {
		t.Fatalf("resumo = %q, esperado [imagem]", got)
	}

	f.svc.WaitUploads()
	stored = f.runner.snapshot().messages[msg.ID]
	if stored.Metadata.Status != models.SyncSent || !stored.Metadata.IsSynced {
		t.Fatalf("flip de status não aconteceu: %+v", stored.Metadata)
	}
	if !strings.HasPrefix(stored.ImageURL, "https://blobs.test/chat_images/") {
		t.Fatalf("URL permanente errada: %q", stored.ImageURL)
	}
}

func TestSendImageUploadFailureKeepsPreview(t *testing.T) {
	f := newChatFixture(t)
	f.blob.fail = true

	msg, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", ImageData: pngDataURL,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	f.svc.WaitUploads()

	stored := f.runner.snapshot().messages[msg.ID]
	if stored.Metadata.Status != models.SyncSent {
		t.Fatalf("status = %s, esperado sent mesmo com falha", stored.Metadata.Status)
	}
	if !stored.Metadata.UploadError || stored.Metadata.IsSynced {
		t.Fatalf("flags erradas: %+v", stored.Metadata)
	}
	if stored.ImageURL != pngDataURL {
		t.Fatal("preview descartado na falha de upload")
	}
}

func TestSendImageRejectsNonDataURL(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", ImageData: "https://exemplo.com/foto.png",
	})
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("err = %v, esperado InvalidState", err)
	}
	if len(f.runner.snapshot().messages) != 0 {
		t.Fatal("mensagem gravada apesar do anexo inválido")
	}
}

func TestSendAsAdminMasksIdentity(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.svc.Send(context.Background(), "adm-1", SendMessageRequest{
		ReceiverID: "pax-1", Content: "resposta do suporte", AsAdmin: true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.SenderID != models.AdminSender || msg.RealSenderID != "adm-1" {
		t.Fatalf("máscara errada: sender=%s real=%s", msg.SenderID, msg.RealSenderID)
	}
	if !msg.Metadata.IsAdminReply {
		t.Fatal("isAdminReply não marcado")
	}
	wantKey := models.ConversationKey(models.AdminSender, "pax-1", "")
	if msg.ConvKey != wantKey {
		t.Fatalf("convKey = %q, esperado a da identidade mascarada", msg.ConvKey)
	}

	_, err = f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", Content: "oi", AsAdmin: true,
	})
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("não-admin mascarado: err = %v, esperado Unauthorized", err)
	}
}

func TestBroadcastVisibleToEveryone(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.svc.Broadcast(context.Background(), "adm-1", "manutenção programada")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if msg.ReceiverID != models.BroadcastReceiver || msg.Type != models.MessageSystem {
		t.Fatalf("broadcast errado: %+v", msg)
	}
	if !msg.Metadata.IsBroadcast {
		t.Fatal("isBroadcast não marcado")
	}

	for _, uid := range []string{"pax-1", "drv-1"} {
		msgs, err := f.svc.ListForUser(uid, 50)
		if err != nil {
			t.Fatalf("ListForUser(%s): %v", uid, err)
		}
		if len(msgs) != 1 || msgs[0].ID != msg.ID {
			t.Fatalf("broadcast invisível para %s: %+v", uid, msgs)
		}
	}

	if _, err := f.svc.Broadcast(context.Background(), "pax-1", "x"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("não-admin: err = %v, esperado Unauthorized", err)
	}
}

func TestMarkReadOnlyFlipsReceiverSide(t *testing.T) {
	f := newChatFixture(t)

	sent, err := f.svc.Send(context.Background(), "pax-1", SendMessageRequest{
		ReceiverID: "drv-1", Content: "oi",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n, _ := f.svc.CountUnread("drv-1"); n != 1 {
		t.Fatalf("não lidas = %d, esperado 1", n)
	}

	if err := f.svc.MarkRead(context.Background(), sent.ConvKey, "drv-1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := f.svc.CountUnread("drv-1"); n != 0 {
		t.Fatalf("não lidas após leitura = %d", n)
	}
	// O remetente marcando de novo não muda nada.
	if err := f.svc.MarkRead(context.Background(), sent.ConvKey, "pax-1"); err != nil {
		t.Fatalf("MarkRead remetente: %v", err)
	}
}

func TestTicketLifecycle(t *testing.T) {
	f := newChatFixture(t)

	tk, err := f.svc.CreateTicket(context.Background(), "pax-1", "pagamento", "cobrança duplicada", "ord-9")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.Status != models.TicketOpen || tk.CreatorName != "Ana" {
		t.Fatalf("ticket errado: %+v", tk)
	}

	if err := f.svc.ClaimTicket(context.Background(), tk.ID, "pax-1"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("não-admin assumindo: err = %v, esperado Unauthorized", err)
	}
	if err := f.svc.ClaimTicket(context.Background(), tk.ID, "adm-1"); err != nil {
		t.Fatalf("ClaimTicket: %v", err)
	}
	got, _ := f.chat.GetTicketByID(tk.ID)
	if got.Status != models.TicketAssigned || got.AssigneeID != "adm-1" || got.AssigneeName != "Carla" {
		t.Fatalf("atribuição errada: %+v", got)
	}

	if err := f.svc.ResolveTicket(context.Background(), tk.ID, "drv-1"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("terceiro resolvendo: err = %v, esperado Unauthorized", err)
	}
	if err := f.svc.ResolveTicket(context.Background(), tk.ID, "pax-1"); err != nil {
		t.Fatalf("criador resolvendo: %v", err)
	}
	got, _ = f.chat.GetTicketByID(tk.ID)
	if got.Status != models.TicketResolved {
		t.Fatalf("status = %s, esperado RESOLVED", got.Status)
	}
	if err := f.svc.ClaimTicket(context.Background(), tk.ID, "adm-1"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("assumir resolvido: err = %v, esperado InvalidState", err)
	}
}
