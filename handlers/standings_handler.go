package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/Mabdi59/tournapro/export"
	"github.com/Mabdi59/tournapro/models"
	"github.com/Mabdi59/tournapro/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
	matchService     services.MatchService
}

func NewStandingsHandler(ss services.StandingsService, ms services.MatchService) *StandingsHandler {
	return &StandingsHandler{
		standingsService: ss,
		matchService:     ms,
	}
}

// GetHandler godoc
// @Summary Турнирная таблица дивизиона
// @Tags standings
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param divisionID path int true "Division ID"
// @Success 200 {array} models.Standing
// @Failure 404 {object} map[string]string "Дивизион не найден"
// @Router /tournaments/{tournamentID}/divisions/{divisionID}/standings [get]
func (h *StandingsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	_, table, err := h.standingsService.DivisionStandings(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if table == nil {
		table = []models.Standing{}
	}

	respond(w, r, http.StatusOK, table)
}

// ExportHandler отдаёт таблицу и матчи дивизиона в виде xlsx.
func (h *StandingsHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var (
		division *models.Division
		table    []models.Standing
		matches  []*models.Match
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		division, table, err = h.standingsService.DivisionStandings(ctx, ids[0], ids[1])
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = h.matchService.ListDivisionMatches(ctx, ids[0], ids[1])
		return err
	})
	if err := g.Wait(); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Пишем в буфер, чтобы при ошибке ещё можно было вернуть 500.
	var buf bytes.Buffer
	if err := export.WriteStandings(&buf, division, table, matches); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="division-%d-standings.xlsx"`, division.ID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *StandingsHandler) BracketHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.standingsService.Bracket(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, view)
}
