package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error)
	Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error)
	Refresh(refreshToken string) (models.AuthResponse, error)
	Me(userID string) (models.User, error)
	Logout(refreshToken string, userID string) error
	LogoutAll(userID string) error
	Sessions(userID string) ([]models.Session, error)
	ParseAccessToken(tokenStr string) (string, models.UserRole, error)
	GetJwtSecret() string
	CleanupExpiredSessions() (int64, error)
}

// Authenticator é um passo da cadeia de login: valida as credenciais ou
// devolve false para o próximo passo tentar. A ordem é explícita e cada
// passo é testável sozinho.
type Authenticator interface {
	Authenticate(userID string, creds repository.Credentials, password string) (bool, error)
}

// bcryptAuthenticator valida contra o hash atual.
type bcryptAuthenticator struct{}

func (bcryptAuthenticator) Authenticate(userID string, creds repository.Credentials, password string) (bool, error) {
	if creds.PasswordHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) == nil, nil
}

// legacyAuthenticator aceita a senha em claro das contas migradas e
// re-hasheia na hora, apagando a coluna antiga.
type legacyAuthenticator struct {
	repo repository.AuthRepository
}

func (a legacyAuthenticator) Authenticate(userID string, creds repository.Credentials, password string) (bool, error) {
	if creds.LegacyPassword == "" {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(creds.LegacyPassword), []byte(password)) != 1 {
		return false, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if err := a.repo.UpdatePassword(userID, string(hashed)); err != nil {
		log.Printf("[AUTH] Re-hash da conta %s falhou: %v", userID, err)
	}
	return true, nil
}

type cachedUser struct {
	User      models.User
	ExpiresAt time.Time
}

type authService struct {
	repo      repository.AuthRepository
	chain     []Authenticator
	jwtSecret string

	mu   sync.RWMutex
	byID map[string]*cachedUser
}

func NewAuthService(repo repository.AuthRepository) AuthService {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-key-change-in-production"
	}

	s := &authService{
		repo:      repo,
		jwtSecret: secret,
		byID:      make(map[string]*cachedUser),
	}
	s.chain = []Authenticator{bcryptAuthenticator{}, legacyAuthenticator{repo: repo}}
	go s.cleanupUsers()
	return s
}

func (s *authService) GetJwtSecret() string {
	return s.jwtSecret
}

// NormalizePhone aplica as regras por região: +852 exige 8 dígitos, +86
// exige 11. O número guardado sempre inclui o código.
func NormalizePhone(regionCode, phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	if regionCode == "" {
		regionCode = "+852"
	}
	switch regionCode {
	case "+852":
		if len(digits) != 8 {
			return "", fmt.Errorf("telefone de Hong Kong deve ter 8 dígitos")
		}
	case "+86":
		if len(digits) != 11 {
			return "", fmt.Errorf("telefone da China deve ter 11 dígitos")
		}
	default:
		if len(digits) < 5 || len(digits) > 15 {
			return "", fmt.Errorf("telefone inválido")
		}
	}
	return regionCode + digits, nil
}

func validatePassword(p string) error {
	if len(p) < 6 {
		return fmt.Errorf("senha deve ter ao menos 6 caracteres")
	}
	if len(p) > 72 {
		return fmt.Errorf("senha muito longa")
	}
	return nil
}

func (s *authService) Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error) {
	phone, err := NormalizePhone(req.RegionCode, req.Phone)
	if err != nil {
		return models.AuthResponse{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return models.AuthResponse{}, err
	}

	role := req.Role
	if role == "" {
		role = models.RolePassenger
	}
	if role.IsAdmin() {
		// Contas administrativas só nascem pela rota de admin.
		return models.AuthResponse{}, apperrors.ErrUnauthorized
	}

	if _, _, err := s.repo.GetUserByPhone(phone); err == nil {
		return models.AuthResponse{}, fmt.Errorf("telefone já cadastrado")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("erro interno")
	}

	user := models.User{
		ID:        uuid.NewString(),
		Phone:     phone,
		Name:      req.Name,
		Role:      role,
		Status:    models.AccountActive,
		CreatedAt: time.Now(),
	}
	if role == models.RoleDriver {
		user.DriverStatus = models.DriverPendingDocs
	}

	if err := s.repo.CreateUser(user, string(hashed)); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return models.AuthResponse{}, fmt.Errorf("telefone já cadastrado")
		}
		return models.AuthResponse{}, fmt.Errorf("erro ao criar conta")
	}

	log.Printf("[AUTH] Conta criada: id=%s papel=%s", user.ID, user.Role)
	s.setUser(user)
	return s.createSessionAndRespond(user, userAgent, ip)
}

// Login roda a cadeia de autenticadores em ordem: hash bcrypt primeiro,
// depois a senha legada (que re-hasheia ao acertar). O chamador não vê
// qual passo validou.
func (s *authService) Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error) {
	if req.Input == "" || req.Password == "" {
		return models.AuthResponse{}, fmt.Errorf("telefone/email e senha obrigatórios")
	}

	var user models.User
	var creds repository.Credentials
	var err error
	if strings.Contains(req.Input, "@") {
		user, creds, err = s.repo.GetUserByEmail(strings.ToLower(req.Input))
	} else {
		input := req.Input
		if !strings.HasPrefix(input, "+") {
			if normalized, nerr := NormalizePhone("+852", input); nerr == nil {
				input = normalized
			}
		}
		user, creds, err = s.repo.GetUserByPhone(input)
	}
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("credenciais incorretas")
	}
	if user.Status == models.AccountBanned {
		return models.AuthResponse{}, apperrors.ErrUnauthorized
	}

	ok := false
	for _, auth := range s.chain {
		ok, err = auth.Authenticate(user.ID, creds, req.Password)
		if err != nil {
			return models.AuthResponse{}, fmt.Errorf("erro interno")
		}
		if ok {
			break
		}
	}
	if !ok {
		return models.AuthResponse{}, fmt.Errorf("credenciais incorretas")
	}

	s.setUser(user)
	return s.createSessionAndRespond(user, userAgent, ip)
}

func (s *authService) Refresh(refreshToken string) (models.AuthResponse, error) {
	if refreshToken == "" {
		return models.AuthResponse{}, fmt.Errorf("refresh token não informado")
	}

	session, user, err := s.repo.GetSessionByToken(refreshToken)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("sessão inválida ou expirada")
	}
	if time.Now().After(session.ExpiresAt) {
		s.repo.DeleteSessionByID(session.ID)
		return models.AuthResponse{}, fmt.Errorf("sessão expirada, faça login novamente")
	}

	newRefresh := generateRefreshToken()
	newExpiry := time.Now().Add(30 * 24 * time.Hour)
	if err := s.repo.UpdateSession(session.ID, newRefresh, newExpiry); err != nil {
		return models.AuthResponse{}, fmt.Errorf("erro interno")
	}

	accessToken := s.generateAccessToken(user)
	s.setUser(user)

	return models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		User:         user,
		ExpiresIn:    3600,
	}, nil
}

func (s *authService) Me(userID string) (models.User, error) {
	if user, ok := s.getUser(userID); ok {
		return user, nil
	}
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}
	s.setUser(user)
	return user, nil
}

func (s *authService) Logout(refreshToken string, userID string) error {
	if refreshToken != "" {
		s.repo.DeleteSessionByToken(refreshToken)
	}
	if userID != "" {
		s.deleteUserCache(userID)
	}
	return nil
}

func (s *authService) LogoutAll(userID string) error {
	err := s.repo.DeleteAllSessionsByUserID(userID)
	s.deleteUserCache(userID)
	return err
}

func (s *authService) Sessions(userID string) ([]models.Session, error) {
	return s.repo.GetActiveSessionsByUserID(userID)
}

// ParseAccessToken valida o JWT e devolve identidade + papel. Usado pelo
// middleware HTTP e pelo upgrade de websocket.
func (s *authService) ParseAccessToken(tokenStr string) (string, models.UserRole, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", apperrors.ErrUnauthorized
	}
	claims := token.Claims.(*jwt.MapClaims)
	userID, _ := (*claims)["user_id"].(string)
	role, _ := (*claims)["role"].(string)
	if userID == "" {
		return "", "", apperrors.ErrUnauthorized
	}
	return userID, models.UserRole(role), nil
}

func (s *authService) CleanupExpiredSessions() (int64, error) {
	return s.repo.DeleteExpiredSessions()
}

// Internal helpers

func (s *authService) getUser(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.byID[id]; ok && time.Now().Before(item.ExpiresAt) {
		return item.User, true
	}
	return models.User{}, false
}

func (s *authService) setUser(user models.User) {
	s.mu.Lock()
	s.byID[user.ID] = &cachedUser{User: user, ExpiresAt: time.Now().Add(15 * time.Minute)}
	s.mu.Unlock()
}

func (s *authService) deleteUserCache(id string) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *authService) cleanupUsers() {
	for {
		time.Sleep(10 * time.Minute)
		s.mu.Lock()
		now := time.Now()
		for k, v := range s.byID {
			if now.After(v.ExpiresAt) {
				delete(s.byID, k)
			}
		}
		s.mu.Unlock()
	}
}

func (s *authService) createSessionAndRespond(user models.User, userAgent, ip string) (models.AuthResponse, error) {
	accessToken := s.generateAccessToken(user)
	refreshToken := generateRefreshToken()
	expiresAt := time.Now().Add(30 * 24 * time.Hour)

	if err := s.repo.CreateSession(user.ID, refreshToken, userAgent, ip, expiresAt); err != nil {
		return models.AuthResponse{}, fmt.Errorf("erro ao criar sessão")
	}

	return models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		ExpiresIn:    3600,
	}, nil
}

func (s *authService) generateAccessToken(user models.User) string {
	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"role":       string(user.Role),
		"exp":        time.Now().Add(1 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
		"token_type": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, _ := token.SignedString([]byte(s.jwtSecret))
	return tokenStr
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
