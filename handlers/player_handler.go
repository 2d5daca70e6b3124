package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Mabdi59/tournapro/middleware"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/services"
)

type PlayerHandler struct {
	playerService services.PlayerService
}

func NewPlayerHandler(ps services.PlayerService) *PlayerHandler {
	return &PlayerHandler{playerService: ps}
}

func (h *PlayerHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.PlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.CreatePlayer(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, player)
}

func (h *PlayerHandler) BulkCreatePlayers(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var inputs []services.PlayerInput
	if err := readJSON(w, r, &inputs); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	players, err := h.playerService.BulkCreatePlayers(r.Context(), currentUserID, ids[0], ids[1], inputs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, players)
}

func (h *PlayerHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	players, err := h.playerService.ListPlayers(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if players == nil {
		players = []*models.Player{}
	}

	respond(w, r, http.StatusOK, players)
}

func (h *PlayerHandler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.PlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.UpdatePlayer(r.Context(), currentUserID, ids[0], ids[1], input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, player)
}

func (h *PlayerHandler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.playerService.DeletePlayer(r.Context(), currentUserID, ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddStats godoc
// @Summary Добавить статистику игроку
// @Tags players
// @Description Значения в теле прибавляются к текущим; отрицательные корректируют ошибки ввода.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param playerID path int true "Player ID"
// @Param input body models.PlayerStats true "Delta"
// @Success 200 {object} models.Player
// @Failure 409 {object} map[string]string "Итог ушёл бы ниже нуля"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/players/{playerID}/stats [patch]
func (h *PlayerHandler) AddStats(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var delta models.PlayerStats
	if err := readJSON(w, r, &delta); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.AddStats(r.Context(), currentUserID, ids[0], ids[1], delta)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, player)
}

func (h *PlayerHandler) TopScorers(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
	}

	scorers, err := h.playerService.TopScorers(r.Context(), tournamentID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if scorers == nil {
		scorers = []models.TopScorer{}
	}

	respond(w, r, http.StatusOK, scorers)
}
