package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"carrental/internal/export"
	"carrental/internal/models"
	"carrental/internal/service"

	"github.com/gorilla/mux"
)

func nonNilBookings(b []*models.Booking) []*models.Booking {
	if b == nil {
		return []*models.Booking{}
	}
	return b
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	bookings, total, err := s.bookings.ListBookings(r.Context(), page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writePage(w, "Success", nonNilBookings(bookings), total)
}

func (s *HTTPServer) handleCreateAdminBooking(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.CreateAdminBooking(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Booking created successfully", booking)
}

func (s *HTTPServer) handleCreateUserBooking(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.CreateUserBooking(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Booking created successfully", booking)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	bookings, err := s.bookings.CustomerBookings(r.Context(), actor, actor.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", nonNilBookings(bookings))
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetBooking(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var upd service.BookingUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.bookings.UpdateBooking(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"], upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Booking updated successfully", booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.bookings.DeleteBooking(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Booking deleted successfully", nil)
}

// handleFilterBookings accepts the filter as a JSON body. The carId field may
// arrive as a string or a number; zero and empty mean "any car".
func (s *HTTPServer) handleFilterBookings(w http.ResponseWriter, r *http.Request) {
	var in struct {
		models.BookingFilter
		CarID any `json:"carId"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := in.BookingFilter
	f.CarID = carIDString(in.CarID)
	if page, size := pageParams(r); page > 0 {
		f.Page, f.PageSize = page, size
	}

	bookings, total, err := s.bookings.FilterBookings(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writePage(w, "Success", nonNilBookings(bookings), total)
}

func carIDString(v any) string {
	switch id := v.(type) {
	case string:
		if id == "0" {
			return ""
		}
		return id
	case float64:
		if id == 0 {
			return ""
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	var from, to models.Date
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *models.Date
	}{{"from", &from}, {"to", &to}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s date; expected YYYY-MM-DD", p.name))
			return
		}
		*p.dst = d
	}

	bookings, from, to, err := s.bookings.BookingsForExport(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cars, err := s.cars.ListCars(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, from, to, bookings, cars); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.bookings.Dashboard(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", data)
}
