package handlers

import (
	"net/http"

	"github.com/Mabdi59/tournapro/middleware"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/services"
)

type RefereeHandler struct {
	refereeService services.RefereeService
}

func NewRefereeHandler(rs services.RefereeService) *RefereeHandler {
	return &RefereeHandler{refereeService: rs}
}

func (h *RefereeHandler) CreateReferee(w http.ResponseWriter, r *http.Request) {
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

	var input services.RefereeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	referee, err := h.refereeService.CreateReferee(r.Context(), currentUserID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, referee)
}

func (h *RefereeHandler) BulkCreateReferees(w http.ResponseWriter, r *http.Request) {
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

	var inputs []services.RefereeInput
	if err := readJSON(w, r, &inputs); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	referees, err := h.refereeService.BulkCreateReferees(r.Context(), currentUserID, tournamentID, inputs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, referees)
}

// ListReferees godoc
// @Summary Список судей турнира
// @Tags referees
// @Description Доступно только организатору: в ответе контактные данные.
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {array} models.Referee
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/referees [get]
func (h *RefereeHandler) ListReferees(w http.ResponseWriter, r *http.Request) {
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

	referees, err := h.refereeService.ListReferees(r.Context(), currentUserID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if referees == nil {
		referees = []*models.Referee{}
	}

	respond(w, r, http.StatusOK, referees)
}

func (h *RefereeHandler) UpdateReferee(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "refereeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.RefereeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	referee, err := h.refereeService.UpdateReferee(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, referee)
}

func (h *RefereeHandler) DeleteReferee(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "refereeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.refereeService.DeleteReferee(r.Context(), currentUserID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
