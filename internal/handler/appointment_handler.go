package handler

import (
	"context"
	"net/http"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/service"
)

type createAppointmentRequest struct {
	MedecinID string `json:"medecinId"`
	Date      string `json:"date"`
	Heure     string `json:"heure"`
}

type createAppointmentResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type appointmentResponse struct {
	ID        string       `json:"id"`
	PatientID string       `json:"patientId"`
	MedecinID string       `json:"medecinId"`
	Date      string       `json:"date"`
	Heure     string       `json:"heure"`
	Status    model.Status `json:"status"`
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: service.MsgUnauthorized})
		return
	}

	var req createAppointmentRequest
	if !decode(w, r, &req) {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: service.MsgFieldsRequired})
		return
	}

	apptID, err := h.appts.Create(r.Context(), id, service.CreateInput{
		MedecinID: req.MedecinID,
		Date:      req.Date,
		Time:      req.Heure,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAppointmentResponse{Message: service.MsgBooked, ID: apptID})
}

func (h *Handler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.appts.ListForPatient)
}

func (h *Handler) ListPractitionerAppointments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.appts.ListForPractitioner)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, id auth.Identity) ([]model.Appointment, error)) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: service.MsgUnauthorized})
		return
	}
	appts, err := fetch(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appts))
}

// toResponse never returns nil so an empty list encodes as [].
func toResponse(appts []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentResponse{
			ID:        a.ID,
			PatientID: a.PatientID,
			MedecinID: a.PractitionerID,
			Date:      a.Date,
			Heure:     a.Time,
			Status:    a.Status,
		})
	}
	return out
}
