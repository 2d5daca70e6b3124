package handlers

import (
	"net/http"

	"github.com/Mabdi59/tournapro/middleware"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

func (h *MatchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, match)
}

func (h *MatchHandler) ListDivisionMatchesHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListDivisionMatches(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if matches == nil {
		matches = []*models.Match{}
	}

	respond(w, r, http.StatusOK, matches)
}

// SubmitResultHandler godoc
// @Summary Ввести или исправить результат матча
// @Tags matches
// @Description Пересчитывает таблицу и продвигает победителя/проигравшего по сетке.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param matchID path int true "Match ID"
// @Param input body services.SubmitResultInput true "Score"
// @Success 200 {object} models.Match
// @Failure 400 {object} map[string]interface{} "Неверный счёт"
// @Failure 409 {object} map[string]string "Ничья в плей-офф / команды не определены"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/matches/{matchID}/result [put]
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.SubmitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SubmitResult(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, match)
}

func (h *MatchHandler) ClearResultHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := h.matchService.ClearResult(r.Context(), currentUserID, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, match)
}

// ScheduleHandler sets kickoff time and venue; an empty string clears a field.
func (h *MatchHandler) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.ScheduleMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ScheduleMatch(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, match)
}

func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := h.matchService.StartMatch(r.Context(), currentUserID, ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, match)
}
