package api

import (
	"net/http"

	"carrental/internal/models"
	"carrental/internal/service"
)

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully and customer profile created.", user)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields.")
		return
	}

	res, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", res)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r.Context(), claimsFrom(r.Context()))
	writeOK(w, http.StatusOK, "Logout successful", nil)
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	customer, err := s.customers.GetProfile(r.Context(), actor, actor.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Success", customer)
}

type profileResponse struct {
	User     *models.User     `json:"user"`
	Customer *models.Customer `json:"customer"`
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, customer, err := s.auth.UpdateProfile(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile updated successfully.", profileResponse{User: user, Customer: customer})
}
