package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
)

type AuthRepository interface {
	CreateUser(u models.User, hashedPassword string) error
	GetUserByID(id string) (models.User, error)
	GetUserByPhone(phone string) (models.User, Credentials, error)
	GetUserByEmail(email string) (models.User, Credentials, error)
	UpdatePassword(userID, hashedPassword string) error
	UpdateProfile(userID, name, email string) error
	SetAccountStatus(userID string, status models.AccountStatus) error
	SetRole(userID string, role models.UserRole) error
	UpdateDocs(userID string, docs map[string]models.DriverDoc) error
	ReplaceDocURL(userID, docType, fromURL, toURL string) (bool, error)
	SetDriverStatus(userID string, status models.DriverStatus, reason string) error
	DeleteUser(userID string) error
	ListUsers(limit int) ([]models.User, error)
	ListUsersByRole(role models.UserRole, limit int) ([]models.User, error)
	ListGhostUsers(olderThan time.Time) ([]models.User, error)
	ListUsersByPhone(phone string) ([]models.User, error)
	ListDuplicatePhones() ([]string, error)

	CreateSession(userID, refreshToken, userAgent, ip string, expiresAt time.Time) error
	GetSessionByToken(token string) (models.Session, models.User, error)
	UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error
	DeleteSessionByID(sessionID int) error
	DeleteSessionByToken(token string) error
	DeleteAllSessionsByUserID(userID string) error
	GetActiveSessionsByUserID(userID string) ([]models.Session, error)
	DeleteExpiredSessions() (int64, error)
}

// Credentials carrega os dois formatos de senha que podem existir para uma
// conta: o hash bcrypt atual e, para contas migradas, a senha antiga em
// claro que ainda não foi re-hasheada.
type Credentials struct {
	PasswordHash   string
	LegacyPassword string
}

type authRepository struct {
	db *sql.DB
}

func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

func (r *authRepository) CreateUser(u models.User, hashedPassword string) error {
	docs, _ := json.Marshal(u.Docs)
	_, err := r.db.Exec(
		`INSERT INTO users (id, phone, email, name, role, status, points, driver_status, rejection_reason, docs, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), $10, $11, $12)`,
		u.ID, u.Phone, u.Email, u.Name, u.Role, u.Status, u.Points,
		string(u.DriverStatus), u.RejectionReason, docs, hashedPassword, u.CreatedAt,
	)
	return err
}

func (r *authRepository) GetUserByID(id string) (models.User, error) {
	u, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return u, apperrors.ErrUserNotFound
	}
	return u, err
}

func (r *authRepository) getUserByField(field, value string) (models.User, Credentials, error) {
	var creds Credentials
	var legacy sql.NullString
	row := r.db.QueryRow(
		`SELECT `+userColumns+`, password_hash, legacy_password
		 FROM users WHERE `+field+` = $1 AND `+field+` <> ''
		 ORDER BY created_at LIMIT 1`, value)
	var u models.User
	var docsRaw []byte
	var driverStatus, rejection sql.NullString
	var updatedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.Role, &u.Status, &u.Points,
		&driverStatus, &rejection, &docsRaw, &u.CreatedAt, &updatedAt,
		&creds.PasswordHash, &legacy)
	if err == sql.ErrNoRows {
		return u, creds, apperrors.ErrUserNotFound
	}
	if err != nil {
		return u, creds, err
	}
	u.DriverStatus = models.DriverStatus(driverStatus.String)
	u.RejectionReason = rejection.String
	if updatedAt.Valid {
		t := updatedAt.Time
		u.UpdatedAt = &t
	}
	if len(docsRaw) > 0 {
		json.Unmarshal(docsRaw, &u.Docs)
	}
	creds.LegacyPassword = legacy.String
	return u, creds, nil
}

func (r *authRepository) GetUserByPhone(phone string) (models.User, Credentials, error) {
	return r.getUserByField("phone", phone)
}

func (r *authRepository) GetUserByEmail(email string) (models.User, Credentials, error) {
	return r.getUserByField("email", email)
}

func (r *authRepository) UpdatePassword(userID, hashedPassword string) error {
	_, err := r.db.Exec(
		`UPDATE users SET password_hash = $2, legacy_password = NULL, updated_at = now() WHERE id = $1`,
		userID, hashedPassword,
	)
	return err
}

func (r *authRepository) UpdateProfile(userID, name, email string) error {
	res, err := r.db.Exec(
		`UPDATE users SET name = COALESCE(NULLIF($2,''), name), email = COALESCE(NULLIF($3,''), email), updated_at = now()
		 WHERE id = $1`,
		userID, name, email,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *authRepository) SetAccountStatus(userID string, status models.AccountStatus) error {
	res, err := r.db.Exec(
		`UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, userID, status,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *authRepository) SetRole(userID string, role models.UserRole) error {
	_, err := r.db.Exec(
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, userID, role,
	)
	return err
}

func (r *authRepository) UpdateDocs(userID string, docs map[string]models.DriverDoc) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	res, err := r.db.Exec(
		`UPDATE users SET docs = $2, updated_at = now() WHERE id = $1`, userID, raw,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ReplaceDocURL troca a URL de um documento num único statement,
// condicionada à URL atual. Reenvio no meio do upload muda a URL e a troca
// antiga não casa mais; nenhum outro documento do mapa é tocado.
func (r *authRepository) ReplaceDocURL(userID, docType, fromURL, toURL string) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE users
		 SET docs = jsonb_set(docs, ARRAY[$2, 'url'], to_jsonb($4::text)), updated_at = now()
		 WHERE id = $1 AND docs -> $2 ->> 'url' = $3`,
		userID, docType, fromURL, toURL,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *authRepository) SetDriverStatus(userID string, status models.DriverStatus, reason string) error {
	res, err := r.db.Exec(
		`UPDATE users SET driver_status = $2, rejection_reason = NULLIF($3,''), updated_at = now() WHERE id = $1`,
		userID, status, reason,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *authRepository) DeleteUser(userID string) error {
	_, err := r.db.Exec(`DELETE FROM users WHERE id = $1`, userID)
	return err
}

func (r *authRepository) listUsers(query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *authRepository) ListUsers(limit int) ([]models.User, error) {
	return r.listUsers(
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *authRepository) ListUsersByRole(role models.UserRole, limit int) ([]models.User, error) {
	return r.listUsers(
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2`, role, limit)
}

// ListGhostUsers retorna contas órfãs (sem nome, telefone e email) criadas
// antes do corte. São alvo da limpeza periódica.
func (r *authRepository) ListGhostUsers(olderThan time.Time) ([]models.User, error) {
	return r.listUsers(
		`SELECT `+userColumns+` FROM users
		 WHERE phone = '' AND email = '' AND name = '' AND created_at < $1`, olderThan)
}

// ListUsersByPhone retorna todas as contas com o mesmo telefone, mais
// antiga primeiro. Usado pela deduplicação.
func (r *authRepository) ListUsersByPhone(phone string) ([]models.User, error) {
	return r.listUsers(
		`SELECT `+userColumns+` FROM users WHERE phone = $1 AND phone <> '' ORDER BY created_at`, phone)
}

func (r *authRepository) ListDuplicatePhones() ([]string, error) {
	rows, err := r.db.Query(
		`SELECT phone FROM users WHERE phone <> '' GROUP BY phone HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	phones := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

func (r *authRepository) CreateSession(userID, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, refreshToken, userAgent, ip, expiresAt,
	)
	return err
}

func (r *authRepository) GetSessionByToken(token string) (models.Session, models.User, error) {
	var session models.Session
	var user models.User
	err := r.db.QueryRow(
		`SELECT s.id, s.user_id, s.expires_at, u.phone, u.email, u.name, u.role, u.status, u.points, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.refresh_token = $1`, token,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt,
		&user.Phone, &user.Email, &user.Name, &user.Role, &user.Status, &user.Points, &user.CreatedAt)
	user.ID = session.UserID
	return session, user, err
}

func (r *authRepository) UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`,
		sessionID, newRefresh, expiresAt,
	)
	return err
}

func (r *authRepository) DeleteSessionByID(sessionID int) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

func (r *authRepository) DeleteSessionByToken(token string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE refresh_token = $1`, token)
	return err
}

func (r *authRepository) DeleteAllSessionsByUserID(userID string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *authRepository) GetActiveSessionsByUserID(userID string) ([]models.Session, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, user_agent, ip, expires_at, created_at
		 FROM sessions WHERE user_id = $1 AND expires_at > now() ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *authRepository) DeleteExpiredSessions() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
