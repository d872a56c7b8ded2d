package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"carrental/internal/database"
	"carrental/internal/service"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Message string `json:"message"`
	Result  bool   `json:"result"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{Message: message, Result: true, Data: data})
}

// writePage adds X-Total-Count so clients can page without a second call.
func writePage(w http.ResponseWriter, message string, data any, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeOK(w, http.StatusOK, message, data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Message: message, Result: false})
}

// writeServiceError maps err to a status and message and logs server faults.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusForError(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeError(w, code, msg)
}

func statusForError(err error) (int, string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, service.ErrWrongPassword):
		return http.StatusBadRequest, "Invalid current password."
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "Too many login attempts. Try again later."
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusForbidden, "Invalid token."

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Access denied."
	case errors.Is(err, service.ErrSelfModification):
		return http.StatusForbidden, "Admins cannot demote or delete themselves."

	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, service.ErrCustomerExists):
		return http.StatusConflict, "Customer with this mobile/email already exists."
	case errors.Is(err, service.ErrCarRegNoExists):
		return http.StatusConflict, "Car Registration No Already Exist"
	case errors.Is(err, database.ErrCarNotAvailable):
		return http.StatusConflict, "Car is already booked for the selected dates."
	case errors.Is(err, database.ErrConcurrentModification):
		return http.StatusConflict, "Booking was modified by someone else. Reload and try again."
	case errors.Is(err, database.ErrInUse):
		return http.StatusConflict, "Record has bookings and cannot be deleted."
	case errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict, "Record already exists."

	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, service.ErrCustomerNotFound):
		return http.StatusNotFound, "Customer not found"
	case errors.Is(err, service.ErrCarNotFound):
		return http.StatusNotFound, "Car not found"
	case errors.Is(err, service.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not found"

	case errors.Is(err, service.ErrInvalidDateRange):
		return http.StatusBadRequest, "Invalid date range. Start Date must be before or equal to End Date."
	case errors.Is(err, service.ErrPastDate):
		return http.StatusBadRequest, "Start date cannot be in the past."
	case errors.Is(err, service.ErrDateTooFar):
		return http.StatusBadRequest, "Booking date is too far in the future."
	case errors.Is(err, service.ErrNonPositiveTotal):
		return http.StatusBadRequest, "Total bill amount must be greater than zero."
	}
	return http.StatusInternalServerError, "Internal server error"
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pageParams reads page and pageSize from the query string; bad values are ignored.
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return page, size
}
