package http

import (
	"encoding/json"
	"time"

	"tasktracker/internal/domain"
	"tasktracker/internal/service"
)

type registerRequest struct {
	Username  string `json:"username" binding:"required,max=150"`
	Email     string `json:"email" binding:"omitempty,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// taskRequest is the body of create and full update. Owner fields in the
// payload are ignored.
type taskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.TaskStatus(r.Status),
		Priority:    domain.TaskPriority(r.Priority),
		DueDate:     r.DueDate,
	}
}

// optional records whether a JSON field was present and whether it was null.
type optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

type patchTaskRequest struct {
	Title       optional[string]    `json:"title"`
	Description optional[string]    `json:"description"`
	Status      optional[string]    `json:"status"`
	Priority    optional[string]    `json:"priority"`
	DueDate     optional[time.Time] `json:"due_date"`
}

func (r patchTaskRequest) patch() (service.TaskPatch, error) {
	var (
		p    service.TaskPatch
		verr service.ValidationError
	)
	for name, field := range map[string]struct{ set, null bool }{
		"title":    {r.Title.Set, r.Title.Null},
		"status":   {r.Status.Set, r.Status.Null},
		"priority": {r.Priority.Set, r.Priority.Null},
	} {
		if field.set && field.null {
			verr.Add(name, "this field may not be null")
		}
	}
	if len(verr.Fields) > 0 {
		return p, &verr
	}

	if r.Title.Set {
		p.Title = &r.Title.Value
	}
	if r.Description.Set {
		if r.Description.Null {
			p.ClearDescription = true
		} else {
			p.Description = &r.Description.Value
		}
	}
	if r.Status.Set {
		s := domain.TaskStatus(r.Status.Value)
		p.Status = &s
	}
	if r.Priority.Set {
		pr := domain.TaskPriority(r.Priority.Value)
		p.Priority = &pr
	}
	if r.DueDate.Set {
		if r.DueDate.Null {
			p.ClearDueDate = true
		} else {
			p.DueDate = &r.DueDate.Value
		}
	}
	return p, nil
}
