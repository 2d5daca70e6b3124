package handlers

import (
	"net/http"

	"github.com/Mabdi59/tournapro/middleware"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/services"
)

type DivisionHandler struct {
	divisionService services.DivisionService
	scheduleService services.ScheduleService
}

func NewDivisionHandler(ds services.DivisionService, ss services.ScheduleService) *DivisionHandler {
	return &DivisionHandler{
		divisionService: ds,
		scheduleService: ss,
	}
}

func (h *DivisionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.DivisionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	division, err := h.divisionService.CreateDivision(r.Context(), currentUserID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, division)
}

// GetHandler returns the division with its teams and matches.
func (h *DivisionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	division, err := h.divisionService.GetDivision(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, division)
}

func (h *DivisionHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	divisions, err := h.divisionService.ListDivisions(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if divisions == nil {
		divisions = []models.Division{}
	}

	respond(w, r, http.StatusOK, divisions)
}

func (h *DivisionHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.DivisionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	division, err := h.divisionService.UpdateDivision(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, division)
}

func (h *DivisionHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.divisionService.DeleteDivision(r.Context(), currentUserID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GenerateScheduleHandler godoc
// @Summary Сгенерировать расписание дивизиона
// @Tags divisions
// @Description Заменяет все матчи дивизиона новым расписанием по формату турнира.
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param divisionID path int true "Division ID"
// @Success 201 {array} models.Match
// @Failure 400 {object} map[string]string "Недостаточно команд"
// @Failure 403 {object} map[string]string "Не организатор"
// @Failure 409 {object} map[string]string "Дивизион занят другим запросом / турнир завершён"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/divisions/{divisionID}/generate-schedule [post]
func (h *DivisionHandler) GenerateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	matches, err := h.scheduleService.GenerateSchedule(r.Context(), currentUserID, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, matches)
}
