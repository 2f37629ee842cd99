package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/services"
)

type PhaseHandler struct {
	phaseService   services.PhaseService
	seedingService services.SeedingService
}

func NewPhaseHandler(phaseService services.PhaseService, seedingService services.SeedingService) *PhaseHandler {
	return &PhaseHandler{
		phaseService:   phaseService,
		seedingService: seedingService,
	}
}

func (h *PhaseHandler) GetPhaseHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phase, err := h.phaseService.GetFullPhase(r.Context(), eventID, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phase": phase}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) CreateSeedingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Type models.SeedingType `json:"type"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	seeding, err := h.seedingService.CreateSeeding(r.Context(), eventID, phaseID, input.Type)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"seeding": seeding}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) GetSeedingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	seeding, err := h.seedingService.GetSeeding(r.Context(), eventID, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"seeding": seeding}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) UpdateSeedingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Entries []models.SeedEntry `json:"entries"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	seeding, err := h.seedingService.UpdateSeeding(r.Context(), eventID, phaseID, input.Entries)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"seeding": seeding}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) FinalizeSeedingHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	seeding, err := h.seedingService.FinalizeSeeding(r.Context(), eventID, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"seeding": seeding}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) GenerateBracketHandler(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		BracketType models.BracketType `json:"bracket_type"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phase, err := h.phaseService.GenerateBracket(r.Context(), eventID, phaseID, input.BracketType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"phase": phase}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
