package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-engine/services"
)

type SetHandler struct {
	phaseService services.PhaseService
	setService   services.SetService
}

func NewSetHandler(phaseService services.PhaseService, setService services.SetService) *SetHandler {
	return &SetHandler{
		phaseService: phaseService,
		setService:   setService,
	}
}

func (h *SetHandler) GetSetHandler(w http.ResponseWriter, r *http.Request) {
	setID, err := getIDFromURL(r, "setID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	set, err := h.setService.GetSet(r.Context(), setID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"set": set}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SetHandler) CallSetHandler(w http.ResponseWriter, r *http.Request) {
	setID, err := getIDFromURL(r, "setID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	set, err := h.phaseService.MarkSetCalled(r.Context(), setID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"set": set}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SetHandler) StartSetHandler(w http.ResponseWriter, r *http.Request) {
	setID, err := getIDFromURL(r, "setID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	set, err := h.phaseService.MarkSetInProgress(r.Context(), setID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"set": set}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SetHandler) ReportSetHandler(w http.ResponseWriter, r *http.Request) {
	setID, err := getIDFromURL(r, "setID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ReportResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.phaseService.ReportSetResult(r.Context(), setID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{
		"set":             outcome.Set,
		"advanced_set":    outcome.Advanced,
		"phase_completed": outcome.PhaseCompleted,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SetHandler) ResetSetHandler(w http.ResponseWriter, r *http.Request) {
	setID, err := getIDFromURL(r, "setID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Cascade bool `json:"cascade"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.phaseService.ResetSet(r.Context(), setID, input.Cascade)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sets": outcome.Sets}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
