package api

import "time"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type CreateTaskRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

type ScheduleEntry struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id,omitempty"`
	Title          string    `json:"title"`
	StartAt        time.Time `json:"start_at"`
	PlannedMinutes int       `json:"planned_minutes"`
	Status         string    `json:"status"`
	Source         string    `json:"source,omitempty"` // "manual" | "ai_suggestion" | "auto"
}

type StatsSummary struct {
	TotalTasks       int     `json:"total_tasks"`
	CompletedTasks   int     `json:"completed_tasks"`
	ScheduledMinutes int     `json:"scheduled_minutes"`
	CompletionRate   float64 `json:"completion_rate"`
	CurrentStreak    int     `json:"current_streak"`
}
