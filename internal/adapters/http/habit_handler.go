package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
	"github.com/habitkeeper/core/internal/ports"
)

// HabitHandler handles habit-related requests
type HabitHandler struct {
	habitService ports.HabitService
	logger       *logger.Logger
}

// NewHabitHandler creates a new habit handler
func NewHabitHandler(habitService ports.HabitService, logger *logger.Logger) *HabitHandler {
	return &HabitHandler{
		habitService: habitService,
		logger:       logger,
	}
}

// ListHabits godoc
// @Summary List habits
// @Description Return every habit together with completions and document metadata
// @Tags habits
// @Produce json
// @Success 200 {object} HabitListResponse
// @Failure 500 {object} ErrorResponse
// @Router /habits [get]
func (h *HabitHandler) ListHabits(c echo.Context) error {
	list, err := h.habitService.ListHabits(c.Request().Context())
	if err != nil {
		return h.serviceError(err, "Failed to load habits")
	}

	return c.JSON(http.StatusOK, HabitListResponse{Success: true, HabitList: list})
}

// CreateHabit godoc
// @Summary Create a habit
// @Description Create a habit; frequency defaults to daily and time to anytime
// @Tags habits
// @Accept json
// @Produce json
// @Param request body ports.CreateHabitRequest true "Habit data"
// @Success 201 {object} HabitCreatedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /habits [post]
func (h *HabitHandler) CreateHabit(c echo.Context) error {
	var req ports.CreateHabitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Habit name is required")
	}

	habit, total, err := h.habitService.CreateHabit(c.Request().Context(), req)
	if err != nil {
		return h.serviceError(err, "Failed to save habit")
	}

	return c.JSON(http.StatusCreated, HabitCreatedResponse{
		Success: true,
		Message: "Habit created successfully",
		Habit:   habit,
		Total:   total,
	})
}

// UpdateHabit godoc
// @Summary Update a habit
// @Description Apply name, description, frequency, time, completedToday and streak when present; other fields are ignored
// @Tags habits
// @Accept json
// @Produce json
// @Param id path int true "Habit ID"
// @Success 200 {object} HabitResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /habits/{id} [put]
func (h *HabitHandler) UpdateHabit(c echo.Context) error {
	id, err := parseHabitID(c)
	if err != nil {
		return err
	}

	fields := map[string]any{}
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	habit, err := h.habitService.UpdateHabit(c.Request().Context(), id, fields)
	if err != nil {
		return h.serviceError(err, "Failed to save changes")
	}

	return c.JSON(http.StatusOK, HabitResponse{
		Success: true,
		Message: "Habit updated successfully",
		Habit:   habit,
	})
}

// ToggleHabit godoc
// @Summary Toggle today's completion
// @Description Flip completedToday; completing raises the streak by one, un-completing lowers it without going below zero
// @Tags habits
// @Produce json
// @Param id path int true "Habit ID"
// @Success 200 {object} HabitResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /habits/{id}/toggle [patch]
func (h *HabitHandler) ToggleHabit(c echo.Context) error {
	id, err := parseHabitID(c)
	if err != nil {
		return err
	}

	habit, err := h.habitService.ToggleHabit(c.Request().Context(), id)
	if err != nil {
		return h.serviceError(err, "Failed to save changes")
	}

	message := "Habit unchecked"
	if habit.CompletedToday {
		message = "Habit completed"
	}

	return c.JSON(http.StatusOK, HabitResponse{
		Success: true,
		Message: message,
		Habit:   habit,
	})
}

// DeleteHabit godoc
// @Summary Delete a habit
// @Tags habits
// @Produce json
// @Param id path int true "Habit ID"
// @Success 200 {object} TotalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /habits/{id} [delete]
func (h *HabitHandler) DeleteHabit(c echo.Context) error {
	id, err := parseHabitID(c)
	if err != nil {
		return err
	}

	total, err := h.habitService.DeleteHabit(c.Request().Context(), id)
	if err != nil {
		return h.serviceError(err, "Failed to save changes")
	}

	return c.JSON(http.StatusOK, TotalResponse{
		Success: true,
		Message: "Habit deleted successfully",
		Total:   total,
	})
}

// GetStats godoc
// @Summary Habit statistics
// @Tags stats
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *HabitHandler) GetStats(c echo.Context) error {
	stats, err := h.habitService.Stats(c.Request().Context())
	if err != nil {
		return h.serviceError(err, "Failed to load statistics")
	}

	return c.JSON(http.StatusOK, StatsResponse{Success: true, Stats: stats})
}

// Backup godoc
// @Summary Create a backup
// @Description Write a timestamped copy of the document next to the data file
// @Tags data
// @Produce json
// @Success 200 {object} BackupResponse
// @Failure 500 {object} ErrorResponse
// @Router /backup [post]
func (h *HabitHandler) Backup(c echo.Context) error {
	name, err := h.habitService.BackupDocument(c.Request().Context())
	if err != nil {
		return h.serviceError(err, "Failed to create backup")
	}

	return c.JSON(http.StatusOK, BackupResponse{
		Success:    true,
		Message:    "Backup created successfully",
		BackupFile: name,
	})
}

// Export godoc
// @Summary Export the document
// @Description Download the whole habit document as a JSON attachment
// @Tags data
// @Produce json
// @Success 200 {object} entities.HabitDocument
// @Failure 500 {object} ErrorResponse
// @Router /export [get]
func (h *HabitHandler) Export(c echo.Context) error {
	export, err := h.habitService.ExportDocument(c.Request().Context())
	if err != nil {
		return h.serviceError(err, "Failed to export data")
	}

	data, err := json.MarshalIndent(export.Document, "", "  ")
	if err != nil {
		return h.serviceError(err, "Failed to export data")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// Import godoc
// @Summary Import a document
// @Description Replace every habit with the given ones; missing fields receive defaults
// @Tags data
// @Accept json
// @Produce json
// @Success 200 {object} TotalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /import [post]
func (h *HabitHandler) Import(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	total, err := h.habitService.ImportDocument(c.Request().Context(), payload)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, `Invalid data: must contain a "habits" array`)
		}
		return h.serviceError(err, "Failed to save imported data")
	}

	return c.JSON(http.StatusOK, TotalResponse{
		Success: true,
		Message: "Data imported successfully",
		Total:   total,
	})
}

// serviceError maps service errors onto HTTP errors
func (h *HabitHandler) serviceError(err error, message string) error {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Habit not found")
	}

	h.logger.Errorw(message, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
}

func parseHabitID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid habit ID")
	}
	return id, nil
}
