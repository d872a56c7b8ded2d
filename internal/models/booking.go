package models

import "time"

type Booking struct {
	ID              string    `json:"id"`
	BookingUID      string    `json:"bookingUid"`
	CarID           string    `json:"carId"`
	CustomerID      string    `json:"customerId"`
	StartDate       Date      `json:"startDate"`
	EndDate         Date      `json:"endDate"`
	Discount        float64   `json:"discount"`
	TotalBillAmount float64   `json:"totalBillAmount"`
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	CustomerName    string    `json:"customerName"`
	MobileNo        string    `json:"mobileNo"`
	CustomerCity    string    `json:"customerCity"`
	Email           string    `json:"email"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Version         int64     `json:"version"`
}

// Days is the inclusive number of rental days.
func (b *Booking) Days() int {
	return InclusiveDays(b.StartDate, b.EndDate)
}

// Overlaps reports whether the booking intersects the inclusive range [start, end].
func (b *Booking) Overlaps(start, end Date) bool {
	return !start.After(b.EndDate) && !end.Before(b.StartDate)
}

// InclusiveDays counts both the first and the last day.
func InclusiveDays(start, end Date) int {
	return start.DaysUntil(end) + 1
}

// BookingFilter narrows booking searches. Zero values are ignored.
type BookingFilter struct {
	MobileNo     string `json:"mobileNo"`
	CustomerName string `json:"customerName"`
	CarID        string `json:"carId"`
	CustomerID   string `json:"-"`
	From         Date   `json:"fromBookingDate"`
	To           Date   `json:"toBookingDate"`
	Page         int    `json:"page"`
	PageSize     int    `json:"pageSize"`
}

// Offset returns the row offset for 1-based pages; 0 disables paging.
func (f BookingFilter) Offset() int {
	if f.Page <= 1 || f.PageSize <= 0 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

type DashboardData struct {
	TodayTotalAmount float64 `json:"todayTotalAmount"`
	TotalBookings    int     `json:"totalBookings"`
	TotalCustomers   int     `json:"totalCustomers"`
	TotalCars        int     `json:"totalCars"`
}
