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

// RequiredDriverDocs são os documentos que um motorista precisa ter
// aprovados antes de poder aceitar pedidos.
var RequiredDriverDocs = []string{"license", "insurance", "vehicle"}

type UserService interface {
	GetUser(id string) (models.User, error)
	ListUsers(limit int) ([]models.User, error)
	ListDrivers(limit int) ([]models.User, error)
	SetAccountStatus(ctx context.Context, adminID, userID string, status models.AccountStatus) error
	DeleteUser(ctx context.Context, adminID, userID string) error

	SubmitDoc(ctx context.Context, userID, docType, number, expiryDate, dataURL string) error
	ReviewDoc(ctx context.Context, adminID, userID, docType string, approve bool, reason string) error
	ApproveDriver(ctx context.Context, adminID, userID string) error
	RejectDriver(ctx context.Context, adminID, userID, reason string) error

	CleanupGhosts(ctx context.Context, olderThan time.Duration) (int, error)
	CleanupDuplicatePhones(ctx context.Context) (int, error)
	MergeAccounts(ctx context.Context, primaryID, duplicateID string) error

	ArchiveTerminal(ctx context.Context, retention time.Duration) (int, error)
	WaitUploads()
}

type userService struct {
	runner   repository.Runner
	users    repository.AuthRepository
	orders   repository.OrderRepository
	promoter *storage.Promoter
	notifier ChangeNotifier
}

func NewUserService(runner repository.Runner, users repository.AuthRepository, orders repository.OrderRepository,
	promoter *storage.Promoter, notifier ChangeNotifier) UserService {
	return &userService{runner: runner, users: users, orders: orders, promoter: promoter, notifier: notifier}
}

func (s *userService) GetUser(id string) (models.User, error) {
	return s.users.GetUserByID(id)
}

func (s *userService) ListUsers(limit int) ([]models.User, error) {
	return s.users.ListUsers(limit)
}

func (s *userService) ListDrivers(limit int) ([]models.User, error) {
	return s.users.ListUsersByRole(models.RoleDriver, limit)
}

func (s *userService) requireAdmin(adminID string) (models.User, error) {
	admin, err := s.users.GetUserByID(adminID)
	if err != nil {
		return models.User{}, err
	}
	if !admin.Role.IsAdmin() {
		return models.User{}, apperrors.ErrUnauthorized
	}
	return admin, nil
}

func (s *userService) SetAccountStatus(ctx context.Context, adminID, userID string, status models.AccountStatus) error {
	if _, err := s.requireAdmin(adminID); err != nil {
		return err
	}
	if err := s.users.SetAccountStatus(userID, status); err != nil {
		return err
	}
	s.notifier.PublishChange("users", userID)
	return nil
}

func (s *userService) DeleteUser(ctx context.Context, adminID, userID string) error {
	admin, err := s.requireAdmin(adminID)
	if err != nil {
		return err
	}
	if admin.Role != models.RoleAdminSuper {
		return apperrors.ErrUnauthorized
	}
	if err := s.users.DeleteUser(userID); err != nil {
		return err
	}
	log.Printf("[USER] Conta removida: id=%s por=%s", userID, adminID)
	s.notifier.PublishChange("users", userID)
	return nil
}

// SubmitDoc é escrita em duas fases: o documento entra com o preview
// inline e fica visível na hora; o upload real acontece em background e a
// URL permanente substitui o preview quando chega.
func (s *userService) SubmitDoc(ctx context.Context, userID, docType, number, expiryDate, dataURL string) error {
	if !storage.IsDataURL(dataURL) {
		return apperrors.ErrInvalidState
	}
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleDriver {
		return apperrors.ErrUnauthorized
	}

	docs := user.Docs
	if docs == nil {
		docs = map[string]models.DriverDoc{}
	}
	docs[docType] = models.DriverDoc{
		URL:        dataURL,
		Number:     number,
		ExpiryDate: expiryDate,
		Status:     models.DocPending,
		UpdatedAt:  time.Now(),
	}
	if err := s.users.UpdateDocs(userID, docs); err != nil {
		return err
	}
	if user.DriverStatus == models.DriverPendingDocs || user.DriverStatus == models.DriverRejected {
		if err := s.users.SetDriverStatus(userID, models.DriverUnderReview, ""); err != nil {
			return err
		}
	}
	s.notifier.PublishChange("users", userID)

	s.promoter.Promote("driver_docs/"+userID, docType, dataURL, func(permanentURL string, uploadErr error) {
		if uploadErr != nil {
			// O preview inline segue valendo; o admin ainda consegue revisar.
			log.Printf("[USER] Upload do documento %s/%s falhou: %v", userID, docType, uploadErr)
			return
		}
		// Troca condicionada à URL do preview: um reenvio no meio do
		// upload vence e o resultado antigo é descartado.
		swapped, err := s.users.ReplaceDocURL(userID, docType, dataURL, permanentURL)
		if err != nil {
			log.Printf("[USER] Troca de URL do documento %s/%s falhou: %v", userID, docType, err)
			return
		}
		if !swapped {
			log.Printf("[USER] Documento %s/%s mudou durante o upload, troca descartada", userID, docType)
			return
		}
		s.notifier.PublishChange("users", userID)
	})
	return nil
}

func (s *userService) ReviewDoc(ctx context.Context, adminID, userID, docType string, approve bool, reason string) error {
	if _, err := s.requireAdmin(adminID); err != nil {
		return err
	}
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return err
	}
	doc, ok := user.Docs[docType]
	if !ok {
		return apperrors.ErrInvalidState
	}

	now := time.Now()
	doc.ReviewedAt = &now
	if approve {
		doc.Status = models.DocApproved
		doc.RejectReason = ""
	} else {
		doc.Status = models.DocRejected
		doc.RejectReason = reason
	}
	user.Docs[docType] = doc
	if err := s.users.UpdateDocs(userID, user.Docs); err != nil {
		return err
	}
	s.notifier.PublishChange("users", userID)
	return nil
}

// ApproveDriver exige todos os documentos obrigatórios aprovados.
func (s *userService) ApproveDriver(ctx context.Context, adminID, userID string) error {
	if _, err := s.requireAdmin(adminID); err != nil {
		return err
	}
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleDriver {
		return apperrors.ErrInvalidState
	}
	for _, docType := range RequiredDriverDocs {
		doc, ok := user.Docs[docType]
		if !ok || doc.Status != models.DocApproved {
			return apperrors.ErrInvalidState
		}
	}
	if err := s.users.SetDriverStatus(userID, models.DriverApproved, ""); err != nil {
		return err
	}
	log.Printf("[USER] Motorista aprovado: id=%s por=%s", userID, adminID)
	s.notifier.PublishChange("users", userID)
	return nil
}

func (s *userService) RejectDriver(ctx context.Context, adminID, userID, reason string) error {
	if _, err := s.requireAdmin(adminID); err != nil {
		return err
	}
	if err := s.users.SetDriverStatus(userID, models.DriverRejected, reason); err != nil {
		return err
	}
	s.notifier.PublishChange("users", userID)
	return nil
}

// CleanupGhosts remove contas órfãs (sem nome, telefone e email) mais
// velhas que a janela dada.
func (s *userService) CleanupGhosts(ctx context.Context, olderThan time.Duration) (int, error) {
	ghosts, err := s.users.ListGhostUsers(time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, g := range ghosts {
		if !g.IsGhost() {
			continue
		}
		if err := s.users.DeleteUser(g.ID); err != nil {
			log.Printf("[USER] Remoção de fantasma %s falhou: %v", g.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("[USER] Limpeza: %d contas fantasma removidas", removed)
		s.notifier.PublishChange("users", "")
	}
	return removed, nil
}

// CleanupDuplicatePhones funde contas com o mesmo telefone na mais antiga.
func (s *userService) CleanupDuplicatePhones(ctx context.Context) (int, error) {
	phones, err := s.users.ListDuplicatePhones()
	if err != nil {
		return 0, err
	}
	merged := 0
	for _, phone := range phones {
		dupes, err := s.users.ListUsersByPhone(phone)
		if err != nil || len(dupes) < 2 {
			continue
		}
		primary := dupes[0]
		for _, dup := range dupes[1:] {
			if err := s.MergeAccounts(ctx, primary.ID, dup.ID); err != nil {
				log.Printf("[USER] Fusão de %s em %s falhou: %v", dup.ID, primary.ID, err)
				continue
			}
			merged++
		}
	}
	return merged, nil
}

// MergeAccounts dobra os pontos da duplicata na conta principal, com
// lançamento de auditoria, e depois apaga a duplicata.
func (s *userService) MergeAccounts(ctx context.Context, primaryID, duplicateID string) error {
	if primaryID == duplicateID {
		return apperrors.ErrInvalidState
	}
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		primary, err := store.UserForUpdate(ctx, primaryID)
		if err != nil {
			return err
		}
		dup, err := store.UserForUpdate(ctx, duplicateID)
		if err != nil {
			return err
		}
		if dup.Points == 0 {
			return nil
		}
		if err := store.AdjustUserPoints(ctx, duplicateID, -dup.Points); err != nil {
			return err
		}
		if err := store.AdjustUserPoints(ctx, primaryID, dup.Points); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogTransfer,
			UserID:       primaryID,
			UserName:     primary.Name,
			OperatorID:   duplicateID,
			OperatorName: dup.Name,
			Amount:       dup.Points,
			Note:         "Fusão de conta duplicada " + duplicateID,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(duplicateID); err != nil {
		return err
	}
	log.Printf("[USER] Contas fundidas: %s -> %s", duplicateID, primaryID)
	s.notifier.PublishChange("users", primaryID)
	s.notifier.PublishChange("users", duplicateID)
	return nil
}

// ArchiveTerminal move pedidos terminais velhos (e as mensagens deles)
// para as tabelas frias. Nunca apaga: destruição só via arquivamento.
func (s *userService) ArchiveTerminal(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	old, err := s.orders.ListTerminalOrdersBefore(cutoff)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, o := range old {
		if err := s.orders.ArchiveOrder(o.ID); err != nil {
			log.Printf("[USER] Arquivamento de %s falhou: %v", o.ID, err)
			continue
		}
		archived++
	}
	if archived > 0 {
		log.Printf("[USER] Arquivados %d pedidos terminais", archived)
		s.notifier.PublishChange("orders", "")
	}
	return archived, nil
}

func (s *userService) WaitUploads() {
	s.promoter.WaitUploads()
}
