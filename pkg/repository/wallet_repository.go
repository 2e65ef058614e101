package repository

import (
	"database/sql"
	"time"

	"p7s/pkg/models"
)

type WalletRepository interface {
	GetTreasuryBalance() (int64, error)
	ListLogs(limit int) ([]models.WalletLog, error)
	ListLogsByUser(userID string, limit int) ([]models.WalletLog, error)
	ListActiveVouchers(userID string, now time.Time) ([]models.Voucher, error)
	GetVoucherByID(id string) (models.Voucher, error)
	ExpireVouchers(now time.Time) (int64, error)
}

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetTreasuryBalance() (int64, error) {
	var total int64
	err := r.db.QueryRow(`SELECT total_points FROM platform_wallet WHERE singleton`).Scan(&total)
	return total, err
}

const walletLogColumns = `id, type, user_id, user_name, operator_id, operator_name, amount, note, voucher_id, created_at`

func (r *walletRepository) listLogs(query string, args ...interface{}) ([]models.WalletLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := []models.WalletLog{}
	for rows.Next() {
		var l models.WalletLog
		var userID, voucherID sql.NullString
		if err := rows.Scan(&l.ID, &l.Type, &userID, &l.UserName, &l.OperatorID,
			&l.OperatorName, &l.Amount, &l.Note, &voucherID, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UserID = userID.String
		l.VoucherID = voucherID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *walletRepository) ListLogs(limit int) ([]models.WalletLog, error) {
	return r.listLogs(
		`SELECT `+walletLogColumns+` FROM wallet_logs ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *walletRepository) ListLogsByUser(userID string, limit int) ([]models.WalletLog, error) {
	return r.listLogs(
		`SELECT `+walletLogColumns+` FROM wallet_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
}

const voucherColumns = `id, user_id, type, title, amount, balance, expiry_date, status, issuer_id, created_at`

func scanVoucher(rs rowScanner) (models.Voucher, error) {
	var v models.Voucher
	err := rs.Scan(&v.ID, &v.UserID, &v.Type, &v.Title, &v.Amount, &v.Balance,
		&v.ExpiryDate, &v.Status, &v.IssuerID, &v.CreatedAt)
	return v, err
}

// ListActiveVouchers ordena por validade mais próxima: quem vai expirar
// primeiro deve ser consumido primeiro.
func (r *walletRepository) ListActiveVouchers(userID string, now time.Time) ([]models.Voucher, error) {
	rows, err := r.db.Query(
		`SELECT `+voucherColumns+` FROM vouchers
		 WHERE user_id = $1 AND status = $2 AND expiry_date > $3 AND balance > 0
		 ORDER BY expiry_date`,
		userID, models.VoucherActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vouchers := []models.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *walletRepository) GetVoucherByID(id string) (models.Voucher, error) {
	return scanVoucher(r.db.QueryRow(
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id))
}

func (r *walletRepository) ExpireVouchers(now time.Time) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE vouchers SET status = $1 WHERE status = $2 AND expiry_date <= $3`,
		models.VoucherExpired, models.VoucherActive, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
