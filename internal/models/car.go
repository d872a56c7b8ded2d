package models

import "time"

const MinCarYear = 1900

type Car struct {
	ID        string    `json:"id" yaml:"-"`
	Brand     string    `json:"brand" yaml:"brand"`
	Model     string    `json:"model" yaml:"model"`
	Year      int       `json:"year" yaml:"year"`
	Color     string    `json:"color" yaml:"color"`
	DailyRate float64   `json:"dailyRate" yaml:"daily_rate"`
	CarImage  string    `json:"carImage" yaml:"car_image"`
	RegNo     string    `json:"regNo" yaml:"reg_no"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// CarAvailability answers whether a car is free for an inclusive date range.
type CarAvailability struct {
	CarID     string     `json:"carId"`
	StartDate Date       `json:"startDate"`
	EndDate   Date       `json:"endDate"`
	Available bool       `json:"available"`
	Conflicts []*Booking `json:"conflicts"`
}
