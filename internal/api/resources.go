package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tasks []Task
	if err := c.Do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.Do(ctx, http.MethodPost, "/tasks", req, &task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

func (c *Client) ListScheduleEntries(ctx context.Context, from, to time.Time) ([]ScheduleEntry, error) {
	path := fmt.Sprintf("/schedule-entries?from=%s&to=%s",
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(to.UTC().Format(time.RFC3339)),
	)
	var entries []ScheduleEntry
	if err := c.Do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("listing schedule entries: %w", err)
	}
	return entries, nil
}

func (c *Client) GetStats(ctx context.Context) (*StatsSummary, error) {
	var stats StatsSummary
	if err := c.Do(ctx, http.MethodGet, "/stats/summary", nil, &stats); err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return &stats, nil
}
