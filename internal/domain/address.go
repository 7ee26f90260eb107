package domain

import (
	"strings"
	"time"
)

// Address: адрес доставки пользователя. У пользователя не больше одного IsDefault.
type Address struct {
	ID         string
	UserID     string
	FullName   string
	Phone      string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AddressSnapshot: отвязанная копия адреса внутри заказа.
type AddressSnapshot struct {
	FullName   string
	Phone      string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Snapshot замораживает адрес для заказа.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// Validate проверяет обязательные поля адреса.
func (a Address) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrUnauthorized
	}
	for _, field := range []string{a.FullName, a.Street, a.City, a.Country} {
		if strings.TrimSpace(field) == "" {
			return ErrInvalidArgument
		}
	}
	return nil
}
