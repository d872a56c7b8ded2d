package api

import (
	"net/http"

	"carrental/internal/models"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) handleListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := s.cars.ListCars(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", cars)
}

func (s *HTTPServer) handleGetCar(w http.ResponseWriter, r *http.Request) {
	car, err := s.cars.GetCar(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", car)
}

func (s *HTTPServer) handleCreateCar(w http.ResponseWriter, r *http.Request) {
	var car models.Car
	if err := decodeJSON(r, &car); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cars.CreateCar(r.Context(), &car); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Vehicle created successfully", car)
}

func (s *HTTPServer) handleUpdateCar(w http.ResponseWriter, r *http.Request) {
	var car models.Car
	if err := decodeJSON(r, &car); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	car.ID = mux.Vars(r)["id"]

	if err := s.cars.UpdateCar(r.Context(), &car); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Vehicle updated successfully", car)
}

func (s *HTTPServer) handleDeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := s.cars.DeleteCar(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Vehicle deleted successfully", nil)
}

// handleCarAvailability answers GET /cars/{id}/availability?from=&to=.
func (s *HTTPServer) handleCarAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := models.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from is required (YYYY-MM-DD)")
		return
	}
	to, err := models.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to is required (YYYY-MM-DD)")
		return
	}

	availability, err := s.cars.CheckAvailability(r.Context(), mux.Vars(r)["id"], from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", availability)
}
