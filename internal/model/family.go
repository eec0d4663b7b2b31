package model

import "time"

// Member roles within a family.
const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FamilyMember struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Color     string    `json:"color"`
	PinHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *FamilyMember) IsParent() bool {
	return m.Role == RoleParent
}
