package models

import "time"

type UserRole string

const (
	RolePassenger  UserRole = "PASSENGER"
	RoleDriver     UserRole = "DRIVER"
	RoleAdminSuper UserRole = "ADMIN_SUPER"
	RoleAdminCS    UserRole = "ADMIN_CS"
	RoleAdminDB    UserRole = "ADMIN_DB"
)

func (r UserRole) IsAdmin() bool {
	return r == RoleAdminSuper || r == RoleAdminCS || r == RoleAdminDB
}

type AccountStatus string

const (
	AccountActive  AccountStatus = "ACTIVE"
	AccountBanned  AccountStatus = "BANNED"
	AccountPending AccountStatus = "PENDING"
)

type DriverStatus string

const (
	DriverPendingDocs DriverStatus = "PENDING_DOCS"
	DriverUnderReview DriverStatus = "UNDER_REVIEW"
	DriverApproved    DriverStatus = "APPROVED"
	DriverRejected    DriverStatus = "REJECTED"
)

type DocStatus string

const (
	DocMissing  DocStatus = "MISSING"
	DocPending  DocStatus = "PENDING"
	DocApproved DocStatus = "APPROVED"
	DocRejected DocStatus = "REJECTED"
)

// DriverDoc é um documento de onboarding (carta de condução, seguro...).
// URL começa como preview inline e é trocada pela URL permanente quando o
// upload em background conclui.
type DriverDoc struct {
	URL          string     `json:"url,omitempty"`
	Number       string     `json:"number,omitempty"`
	ExpiryDate   string     `json:"expiryDate,omitempty"`
	Status       DocStatus  `json:"status"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
}

type User struct {
	ID              string               `json:"id"`
	Phone           string               `json:"phone"`
	Email           string               `json:"email"`
	Name            string               `json:"name"`
	Role            UserRole             `json:"role"`
	Status          AccountStatus        `json:"status"`
	Points          int64                `json:"points"`
	DriverStatus    DriverStatus         `json:"driverStatus,omitempty"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	Docs            map[string]DriverDoc `json:"docs,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       *time.Time           `json:"updatedAt,omitempty"`
}

// IsGhost: registro órfão sem nome, telefone e email — elegível para limpeza.
func (u User) IsGhost() bool {
	return u.Name == "" && u.Phone == "" && u.Email == ""
}

type RegisterRequest struct {
	RegionCode string   `json:"regionCode"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password"`
	Name       string   `json:"name"`
	Role       UserRole `json:"role"`
}

type LoginRequest struct {
	Input    string `json:"input"` // telefone ou email
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
	ExpiresIn    int    `json:"expires_in"`
}

type Session struct {
	ID        int       `json:"id"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
