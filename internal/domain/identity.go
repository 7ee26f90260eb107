package domain

import "strings"

// Role: роль вызывающего, выданная сервисом аутентификации.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity: проверенная идентичность, которая явно передаётся в каждую операцию.
type Identity struct {
	UserID string
	Role   Role
}

// ParseRole нормализует роль из заголовка; неизвестные значения считаются customer.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleCustomer
}

// Authenticated сообщает, что идентичность заполнена.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// IsAdmin сообщает, что у вызывающего административная роль.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Require возвращает ErrUnauthorized для пустой идентичности.
func (i Identity) Require() error {
	if !i.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin проверяет административную роль.
func (i Identity) RequireAdmin() error {
	if err := i.Require(); err != nil {
		return err
	}
	if !i.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CanAccess разрешает доступ владельцу ресурса и администратору.
func (i Identity) CanAccess(ownerID string) bool {
	return i.IsAdmin() || (i.Authenticated() && i.UserID == ownerID)
}
