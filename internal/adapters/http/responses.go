package http

import (
	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/ports"
)

// Request/Response types
type HabitListResponse struct {
	Success bool `json:"success"`
	*ports.HabitList
}

type HabitCreatedResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Habit   *entities.Habit `json:"habit"`
	Total   int             `json:"total"`
}

type HabitResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Habit   *entities.Habit `json:"habit"`
}

type TotalResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Total   int    `json:"total"`
}

type StatsResponse struct {
	Success bool            `json:"success"`
	Stats   *entities.Stats `json:"stats"`
}

type BackupResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	BackupFile string `json:"backupFile"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
