package domain

import "time"

type Tenant struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Slug      string     `gorm:"uniqueIndex;size:128;not null" json:"slug"`
	Status    string     `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

// TenantUserLink joins an identity-provider subject (by email) to a tenant
// and role. Bearer tokens authenticate users; this table authorizes them.
type TenantUserLink struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"size:36;not null;uniqueIndex:idx_tenant_user_email" json:"tenant_id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:idx_tenant_user_email;index" json:"email"`
	Role      string    `gorm:"size:32;not null;default:member" json:"role"`
	Scopes    string    `gorm:"size:512" json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleMember     = "member"
)
