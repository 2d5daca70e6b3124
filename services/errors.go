package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Mabdi59/tournapro/brackets"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrInsufficientTeams   = brackets.ErrInsufficientTeams
	ErrUnsupportedFormat   = brackets.ErrUnsupportedFormat
	ErrTeamsNotSet         = errors.New("both teams must be known before a result can be entered")
	ErrDrawNotAllowed      = errors.New("draws are not allowed in elimination matches")
	ErrInvalidScore        = errors.New("scores must be non-negative")
	ErrMatchNotPlayable    = errors.New("match has been cancelled")
	ErrInvalidScheduleTime = errors.New("scheduled time must be an ISO-8601 timestamp")
	ErrNegativeStats       = errors.New("player totals cannot go below zero")
	ErrLogoTooLarge        = errors.New("logo exceeds the maximum size")
	ErrInvalidLogoType     = errors.New("logo must be a PNG, JPEG, WebP or SVG image")

	// Ошибки конфликтов
	ErrConcurrentModification = errors.New("division is being modified by another request")
	ErrTeamNameConflict       = errors.New("team name is already in use")
	ErrDivisionNameConflict   = errors.New("division name is already in use")
	ErrTeamScheduled          = errors.New("team is part of a generated schedule; regenerate the schedule instead")
	ErrTournamentNotEditable  = errors.New("tournament is completed or cancelled")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrDivisionNotFound   = errors.New("division not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrRefereeNotFound    = errors.New("referee not found")

	// Ошибки турниров
	ErrTournamentInvalidDateRange        = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")

	ErrLogoStorageDisabled = errors.New("logo storage is not configured")
)

// ValidationError carries per-field messages. It matches ErrValidationFailed
// with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// validator collects field errors.
type validator map[string]string

func (v validator) check(ok bool, field, message string) {
	if !ok {
		if _, exists := v[field]; !exists {
			v[field] = message
		}
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}
