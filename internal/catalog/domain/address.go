package domain

import "github.com/google/uuid"

type Address struct {
	ID      uuid.UUID
	UserID  string
	Street  string
	City    string
	State   string
	Pincode string
	Country string
}
