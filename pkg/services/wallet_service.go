package services

import (
	"context"
	"log"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"

	"github.com/google/uuid"
)

// WalletService é o ledger de pontos. Invariante central: toda mutação de
// saldo comita junto com exatamente um registro de auditoria. Log órfão ou
// mutação sem log são ambos violação.
type WalletService interface {
	Mint(ctx context.Context, operatorID string, amount int64, note string) error
	Grant(ctx context.Context, operatorID, targetUserID string, amount int64, note string) error
	Transfer(ctx context.Context, callerID, targetUserID string, amount int64, note string) error
	Purchase(ctx context.Context, callerID string, amount int64, note string) error
	IssueVoucher(ctx context.Context, operatorID, targetUserID string, vtype models.VoucherType, amount int64, title string, daysValid int) (models.Voucher, error)
	TreasuryBalance() (int64, error)
	ListLogs(limit int) ([]models.WalletLog, error)
	ListLogsByUser(userID string, limit int) ([]models.WalletLog, error)
	ListActiveVouchers(userID string) ([]models.Voucher, error)
	ExpireVouchers() (int64, error)
}

type walletService struct {
	runner   repository.Runner
	wallet   repository.WalletRepository
	notifier ChangeNotifier
}

func NewWalletService(runner repository.Runner, wallet repository.WalletRepository, notifier ChangeNotifier) WalletService {
	return &walletService{runner: runner, wallet: wallet, notifier: notifier}
}

// Mint cria pontos do nada no tesouro da plataforma. Restrito ao super
// admin; qualquer outro papel recebe Unauthorized em vez de no-op
// silencioso.
func (s *walletService) Mint(ctx context.Context, operatorID string, amount int64, note string) error {
	if amount <= 0 {
		return apperrors.ErrInvalidState
	}
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		operator, err := store.UserForUpdate(ctx, operatorID)
		if err != nil {
			return err
		}
		if operator.Role != models.RoleAdminSuper {
			return apperrors.ErrUnauthorized
		}
		if err := store.AdjustTreasury(ctx, amount); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogMint,
			OperatorID:   operatorID,
			OperatorName: operator.Name,
			Amount:       amount,
			Note:         note,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[WALLET] Mint: operador=%s quantia=%d", operatorID, amount)
	s.notifier.PublishChange("wallet_logs", "")
	return nil
}

// Grant move pontos do tesouro para um usuário.
func (s *walletService) Grant(ctx context.Context, operatorID, targetUserID string, amount int64, note string) error {
	if amount <= 0 {
		return apperrors.ErrInvalidState
	}
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		operator, err := store.UserForUpdate(ctx, operatorID)
		if err != nil {
			return err
		}
		if !operator.Role.IsAdmin() {
			return apperrors.ErrUnauthorized
		}
		target, err := store.UserForUpdate(ctx, targetUserID)
		if err != nil {
			return err
		}
		treasury, err := store.TreasuryForUpdate(ctx)
		if err != nil {
			return err
		}
		if treasury < amount {
			return apperrors.ErrInsufficientBalance
		}
		if err := store.AdjustTreasury(ctx, -amount); err != nil {
			return err
		}
		if err := store.AdjustUserPoints(ctx, targetUserID, amount); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogGrant,
			UserID:       targetUserID,
			UserName:     target.Name,
			OperatorID:   operatorID,
			OperatorName: operator.Name,
			Amount:       amount,
			Note:         note,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[WALLET] Grant: operador=%s alvo=%s quantia=%d", operatorID, targetUserID, amount)
	s.notifier.PublishChange("users", targetUserID)
	s.notifier.PublishChange("wallet_logs", "")
	return nil
}

// Transfer move pontos entre usuários. A checagem de saldo acontece DENTRO
// da transação, sobre a linha travada; transferências concorrentes da mesma
// conta nunca passam do saldo.
func (s *walletService) Transfer(ctx context.Context, callerID, targetUserID string, amount int64, note string) error {
	if amount <= 0 {
		return apperrors.ErrInvalidState
	}
	if callerID == targetUserID {
		return apperrors.ErrInvalidState
	}
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		caller, err := store.UserForUpdate(ctx, callerID)
		if err != nil {
			return err
		}
		if caller.Points < amount {
			return apperrors.ErrInsufficientBalance
		}
		target, err := store.UserForUpdate(ctx, targetUserID)
		if err != nil {
			return err
		}
		if err := store.AdjustUserPoints(ctx, callerID, -amount); err != nil {
			return err
		}
		if err := store.AdjustUserPoints(ctx, targetUserID, amount); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogTransfer,
			UserID:       targetUserID,
			UserName:     target.Name,
			OperatorID:   callerID,
			OperatorName: caller.Name,
			Amount:       amount,
			Note:         note,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[WALLET] Transfer: de=%s para=%s quantia=%d", callerID, targetUserID, amount)
	s.notifier.PublishChange("users", callerID)
	s.notifier.PublishChange("users", targetUserID)
	s.notifier.PublishChange("wallet_logs", "")
	return nil
}

// Purchase credita a própria conta. A confirmação do pagamento externo já
// aconteceu antes de chegar aqui.
func (s *walletService) Purchase(ctx context.Context, callerID string, amount int64, note string) error {
	if amount <= 0 {
		return apperrors.ErrInvalidState
	}
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		caller, err := store.UserForUpdate(ctx, callerID)
		if err != nil {
			return err
		}
		if err := store.AdjustUserPoints(ctx, callerID, amount); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogPurchase,
			UserID:       callerID,
			UserName:     caller.Name,
			OperatorID:   callerID,
			OperatorName: caller.Name,
			Amount:       amount,
			Note:         note,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[WALLET] Purchase: usuário=%s quantia=%d", callerID, amount)
	s.notifier.PublishChange("users", callerID)
	s.notifier.PublishChange("wallet_logs", "")
	return nil
}

// IssueVoucher cria um voucher com saldo próprio e validade computada.
func (s *walletService) IssueVoucher(ctx context.Context, operatorID, targetUserID string, vtype models.VoucherType, amount int64, title string, daysValid int) (models.Voucher, error) {
	if amount <= 0 || daysValid <= 0 {
		return models.Voucher{}, apperrors.ErrInvalidState
	}
	var voucher models.Voucher
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		operator, err := store.UserForUpdate(ctx, operatorID)
		if err != nil {
			return err
		}
		if !operator.Role.IsAdmin() {
			return apperrors.ErrUnauthorized
		}
		target, err := store.UserForUpdate(ctx, targetUserID)
		if err != nil {
			return err
		}
		now := time.Now()
		voucher = models.Voucher{
			ID:         uuid.NewString(),
			UserID:     targetUserID,
			Type:       vtype,
			Title:      title,
			Amount:     amount,
			Balance:    amount,
			ExpiryDate: now.AddDate(0, 0, daysValid),
			Status:     models.VoucherActive,
			IssuerID:   operatorID,
			CreatedAt:  now,
		}
		if err := store.InsertVoucher(ctx, voucher); err != nil {
			return err
		}
		return store.InsertWalletLog(ctx, models.WalletLog{
			ID:           uuid.NewString(),
			Type:         models.LogVoucherIssue,
			UserID:       targetUserID,
			UserName:     target.Name,
			OperatorID:   operatorID,
			OperatorName: operator.Name,
			Amount:       amount,
			Note:         title,
			VoucherID:    voucher.ID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return models.Voucher{}, err
	}
	log.Printf("[WALLET] Voucher emitido: id=%s alvo=%s quantia=%d", voucher.ID, targetUserID, amount)
	s.notifier.PublishChange("vouchers", voucher.ID)
	s.notifier.PublishChange("wallet_logs", "")
	return voucher, nil
}

func (s *walletService) TreasuryBalance() (int64, error) {
	return s.wallet.GetTreasuryBalance()
}

func (s *walletService) ListLogs(limit int) ([]models.WalletLog, error) {
	return s.wallet.ListLogs(limit)
}

func (s *walletService) ListLogsByUser(userID string, limit int) ([]models.WalletLog, error) {
	return s.wallet.ListLogsByUser(userID, limit)
}

func (s *walletService) ListActiveVouchers(userID string) ([]models.Voucher, error) {
	return s.wallet.ListActiveVouchers(userID, time.Now())
}

func (s *walletService) ExpireVouchers() (int64, error) {
	n, err := s.wallet.ExpireVouchers(time.Now())
	if err == nil && n > 0 {
		s.notifier.PublishChange("vouchers", "")
	}
	return n, err
}
