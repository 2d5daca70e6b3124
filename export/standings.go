// Package export renders division data into spreadsheet downloads.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Mabdi59/tournapro/models"
)

const (
	standingsSheet = "Standings"
	matchesSheet   = "Matches"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var standingsHeader = []any{"Rank", "Group", "Team", "Played", "Wins", "Draws", "Losses", "For", "Against", "Diff", "Points"}

var matchesHeader = []any{"#", "Stage", "Group", "Round", "Team 1", "Team 2", "Score", "Status", "Scheduled (UTC)", "Venue"}

// WriteStandings writes a workbook with the division table on the first
// sheet and its matches on the second.
func WriteStandings(w io.Writer, division *models.Division, table []models.Standing, matches []*models.Match) error {
	f := excelize.NewFile()
	defer f.Close()

	// Первый лист создаётся вместе с файлом, просто переименовываем его.
	if err := f.SetSheetName(f.GetSheetName(0), standingsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(matchesSheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", matchesSheet, err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	title := fmt.Sprintf("%s standings", division.Name)
	if err := f.SetCellValue(standingsSheet, "A1", title); err != nil {
		return err
	}
	if err := writeRows(f, standingsSheet, 2, header, standingsHeader, standingRows(table)); err != nil {
		return err
	}
	if err := writeRows(f, matchesSheet, 1, header, matchesHeader, matchRows(matches)); err != nil {
		return err
	}

	if err := f.SetColWidth(standingsSheet, "C", "C", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(matchesSheet, "E", "F", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(matchesSheet, "I", "I", 20); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, startRow, headerStyle int, header []any, rows [][]any) error {
	first, err := excelize.CoordinatesToCellName(1, startRow)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, first, &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), startRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, startRow+1+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func standingRows(table []models.Standing) [][]any {
	rows := make([][]any, 0, len(table))
	for _, s := range table {
		group := ""
		if s.Group != nil {
			group = *s.Group
		}
		rows = append(rows, []any{
			s.Rank, group, s.TeamName, s.Played, s.Wins, s.Draws, s.Losses,
			s.ScoreFor, s.ScoreAgainst, s.Differential, s.Points,
		})
	}
	return rows
}

func matchRows(matches []*models.Match) [][]any {
	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		group, venue, when, result := "", "", "", ""
		if m.GroupName != nil {
			group = *m.GroupName
		}
		if m.Venue != nil {
			venue = *m.Venue
		}
		if m.ScheduledTime != nil {
			when = m.ScheduledTime.UTC().Format("2006-01-02 15:04")
		}
		if m.HasResult() {
			result = fmt.Sprintf("%d - %d", *m.Team1Score, *m.Team2Score)
		}
		rows = append(rows, []any{
			m.Sequence, string(m.Stage), group, m.Round,
			slotLabel(m.Team1, m.Team1Source), slotLabel(m.Team2, m.Team2Source),
			result, string(m.Status), when, venue,
		})
	}
	return rows
}

// slotLabel names the team in a slot, or where it will come from.
func slotLabel(team *models.Team, source string) string {
	switch {
	case team != nil:
		return team.Name
	case source != "":
		return "TBD (" + source + ")"
	default:
		return "TBD"
	}
}
