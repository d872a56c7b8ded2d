package models

import "time"

type Customer struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	CustomerCity string    `json:"customerCity"`
	MobileNo     string    `json:"mobileNo"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
