package user

import "time"

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	RoleAdminID int64 = 1
	RoleUserID  int64 = 2
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleID       int64     `json:"role_id"`
	Role         *Role     `json:"role,omitempty"` // set by FindByIDWithRole only
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}
