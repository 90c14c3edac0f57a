package domain

import "time"

// Role определяет уровень доступа аккаунта.
type Role string

const (
	// RoleCustomer — обычный покупатель: видит каталог и свои заказы.
	RoleCustomer Role = "customer"
	// RoleAdmin — администратор: управление каталогом, скидками и заказами.
	RoleAdmin Role = "admin"
)

// User описывает аккаунт покупателя или администратора.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate проверяет обязательные поля аккаунта.
func (u *User) Validate() []error {
	var errs []error

	if u.Name == "" {
		errs = append(errs, ErrUserNameRequired)
	}
	if u.Email == "" {
		errs = append(errs, ErrEmailInvalid)
	}

	return errs
}
