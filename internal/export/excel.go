// Package export renders bookings into .xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"carrental/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	ScheduleSheet = "Schedule"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// maxScheduleDays caps the width of the schedule grid.
	maxScheduleDays = 366
)

var bookingHeaders = []string{
	"Booking UID", "Car", "Customer", "Mobile No", "City", "Email",
	"Start Date", "End Date", "Days", "Discount", "Total Bill Amount",
}

// FileName is the download name for an export of [from, to].
func FileName(from, to models.Date) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from, to)
}

// WriteBookings writes a workbook with the booking list and a car by day
// schedule for [from, to].
func WriteBookings(w io.Writer, from, to models.Date, bookings []*models.Booking, cars []*models.Car) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BookingsSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	if err := writeBookingList(f, bookings); err != nil {
		return err
	}

	if _, err := f.NewSheet(ScheduleSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeSchedule(f, from, to, bookings, cars); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

func writeBookingList(f *excelize.File, bookings []*models.Booking) error {
	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(BookingsSheet, cell, h); err != nil {
			return err
		}
	}
	style, err := headerStyle(f, "#DDEBF7")
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingsSheet, "A1", lastHeader, style)

	for i, b := range bookings {
		row := []interface{}{
			b.BookingUID,
			strings.TrimSpace(b.Brand + " " + b.Model),
			b.CustomerName,
			b.MobileNo,
			b.CustomerCity,
			b.Email,
			b.StartDate.String(),
			b.EndDate.String(),
			b.Days(),
			b.Discount,
			b.TotalBillAmount,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(BookingsSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "K", 18)
	return f.SetPanes(BookingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeSchedule lays out one row per car and one column per day; a booked
// cell holds the customer name.
func writeSchedule(f *excelize.File, from, to models.Date, bookings []*models.Booking, cars []*models.Car) error {
	days := models.InclusiveDays(from, to)
	if days < 1 {
		days = 1
	}
	if days > maxScheduleDays {
		days = maxScheduleDays
	}

	_ = f.SetCellValue(ScheduleSheet, "A1", fmt.Sprintf("Period: %s - %s", from, to))
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(days + 1)
	_ = f.MergeCell(ScheduleSheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(ScheduleSheet, "A1", "A1", titleStyle)

	dateStyle, err := headerStyle(f, "#DDEBF7")
	if err != nil {
		return err
	}
	carStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	bookedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for d := 0; d < days; d++ {
		cell, _ := excelize.CoordinatesToCellName(d+2, 2)
		_ = f.SetCellValue(ScheduleSheet, cell, from.AddDays(d).Format("02.01"))
		_ = f.SetCellStyle(ScheduleSheet, cell, cell, dateStyle)
	}

	rowOf := make(map[string]int, len(cars))
	for i, c := range cars {
		row := i + 3
		rowOf[c.ID] = row
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(ScheduleSheet, cell, fmt.Sprintf("%s %s (%s)", c.Brand, c.Model, c.RegNo))
		_ = f.SetCellStyle(ScheduleSheet, cell, cell, carStyle)
	}

	for _, b := range bookings {
		row, ok := rowOf[b.CarID]
		if !ok {
			continue
		}
		for d := 0; d < days; d++ {
			day := from.AddDays(d)
			if !b.Overlaps(day, day) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(d+2, row)
			_ = f.SetCellValue(ScheduleSheet, cell, b.CustomerName)
			_ = f.SetCellStyle(ScheduleSheet, cell, cell, bookedStyle)
		}
	}

	_ = f.SetColWidth(ScheduleSheet, "A", "A", 30)
	if days > 0 {
		_ = f.SetColWidth(ScheduleSheet, "B", lastCol, 14)
	}
	return nil
}
