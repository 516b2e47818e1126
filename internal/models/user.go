package models

import (
	"slices"
	"time"
)

// Role is a user's access level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Permission names an action the API guards.
type Permission string

const (
	PermViewCars      Permission = "view_cars"
	PermManageCars    Permission = "manage_cars"
	PermUpdateMileage Permission = "update_mileage"
	PermViewAlerts    Permission = "view_alerts"
	PermReportAlerts  Permission = "report_alerts"
	PermViewPlans     Permission = "view_plans"
	PermManagePlans   Permission = "manage_plans"
	PermViewShops     Permission = "view_shops"
	PermManageShops   Permission = "manage_shops"
	PermManageUsers   Permission = "manage_users"
)

// Admins hold every permission and are not listed.
var rolePermissions = map[Role][]Permission{
	RoleManager: {
		PermViewCars, PermManageCars, PermUpdateMileage,
		PermViewAlerts, PermReportAlerts,
		PermViewPlans, PermManagePlans,
		PermViewShops, PermManageShops,
	},
	RoleOperator: {
		PermViewCars, PermUpdateMileage,
		PermViewAlerts, PermReportAlerts,
		PermViewPlans, PermManagePlans,
		PermViewShops,
	},
	RoleViewer: {PermViewCars, PermViewAlerts, PermViewPlans, PermViewShops},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Can reports whether the role grants p.
func (r Role) Can(p Permission) bool {
	if r == RoleAdmin {
		return true
	}
	return slices.Contains(rolePermissions[r], p)
}

// User is an account that can sign in to the API.
type User struct {
	ID           string     `bson:"_id" json:"id"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	FirstName    string     `bson:"first_name" json:"first_name"`
	LastName     string     `bson:"last_name" json:"last_name"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Redirect string `json:"redirect,omitempty"` // page to open in the main app after hand-off
}

// RegisterRequest creates an account. Passwords are capped at bcrypt's
// 72-byte input limit.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Role      Role   `json:"role" validate:"required,oneof=admin manager operator viewer"`
}

// UpdateProfileRequest changes the non-empty fields of the caller's profile.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	HandoffURL   string `json:"handoff_url,omitempty"`
	User         User   `json:"user"`
}

// Claims is the identity carried by a validated token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// Can reports whether the token's role grants p.
func (c *Claims) Can(p Permission) bool {
	return c != nil && c.Role.Can(p)
}
