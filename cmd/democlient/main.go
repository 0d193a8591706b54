// democlient walks through the task tracker API against a running server:
// it signs in, creates and edits a few tasks, exercises the filters and
// finally logs out.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	BaseURL  string
	Username string
	Email    string
	Password string
	Timeout  time.Duration
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("democlient", pflag.ContinueOnError)
	flagSet.StringVar(&opts.BaseURL, "base-url", "http://localhost:8080/api", "API root URL")
	flagSet.StringVar(&opts.Username, "username", "demo", "account to register or log in with")
	flagSet.StringVar(&opts.Email, "email", "demo@example.com", "email used when registering")
	flagSet.StringVar(&opts.Password, "password", "demo-password", "account password")
	flagSet.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	c := newClient(opts.BaseURL, &http.Client{Timeout: opts.Timeout})
	return runScenario(context.Background(), c, opts, logger)
}

type client struct {
	baseURL string
	http    *http.Client
	access  string
	refresh string
}

func newClient(baseURL string, httpClient *http.Client) *client {
	return &client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// do sends body as JSON and decodes the response into out when the status
// matches want.
func (c *client) do(ctx context.Context, method, path string, body, out any, want int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type user struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

type session struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    user   `json:"user"`
}

// signIn registers the account and falls back to logging in when the
// username is already taken.
func (c *client) signIn(ctx context.Context, opts options) (user, error) {
	var s session
	err := c.do(ctx, http.MethodPost, "/auth/register/", map[string]string{
		"username": opts.Username,
		"email":    opts.Email,
		"password": opts.Password,
	}, &s, http.StatusCreated)

	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		err = c.do(ctx, http.MethodPost, "/auth/login/", map[string]string{
			"username": opts.Username,
			"password": opts.Password,
		}, &s, http.StatusOK)
	}
	if err != nil {
		return user{}, err
	}

	c.access, c.refresh = s.Access, s.Refresh
	return s.User, nil
}

func (c *client) refreshAccess(ctx context.Context) error {
	var out struct {
		Access string `json:"access"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh/", map[string]string{"refresh": c.refresh}, &out, http.StatusOK); err != nil {
		return err
	}
	c.access = out.Access
	return nil
}

func (c *client) logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/users/logout/", map[string]string{"refresh": c.refresh}, nil, http.StatusOK)
	if err == nil {
		c.access, c.refresh = "", ""
	}
	return err
}

func runScenario(ctx context.Context, c *client, opts options, logger *logrus.Logger) error {
	me, err := c.signIn(ctx, opts)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	logger.WithField("user_id", me.ID).WithField("username", me.Username).Info("signed in")

	dueDate := time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	drafts := []map[string]any{
		{"title": "Complete project", "description": "Finish the task tracker", "priority": "high", "due_date": dueDate},
		{"title": "Review documentation", "description": "Read the API reference", "priority": "medium"},
		{"title": "Write tests", "priority": "low", "status": "in_progress"},
	}
	created := make([]task, 0, len(drafts))
	for _, draft := range drafts {
		var t task
		if err := c.do(ctx, http.MethodPost, "/tasks/", draft, &t, http.StatusCreated); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		logger.WithField("task_id", t.ID).WithField("title", t.Title).Info("task created")
		created = append(created, t)
	}

	var listed []task
	if err := c.do(ctx, http.MethodGet, "/tasks/", nil, &listed, http.StatusOK); err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range listed {
		logger.WithField("task_id", t.ID).WithField("status", t.Status).Infof("listed %q", t.Title)
	}

	first := created[0]
	var detail task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d/", first.ID), nil, &detail, http.StatusOK); err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	logger.WithField("task_id", detail.ID).WithField("priority", detail.Priority).Info("task detail fetched")

	var updated task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/", first.ID), map[string]any{"status": "in_progress"}, &updated, http.StatusOK); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	logger.WithField("task_id", updated.ID).WithField("status", updated.Status).Info("task updated")

	var completed task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/mark_completed/", first.ID), nil, &completed, http.StatusOK); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.WithField("task_id", completed.ID).WithField("status", completed.Status).Info("task completed")

	for _, filter := range []string{"/tasks/by_status/?status=completed", "/tasks/by_priority/?priority=high"} {
		var matched []task
		if err := c.do(ctx, http.MethodGet, filter, nil, &matched, http.StatusOK); err != nil {
			return fmt.Errorf("filter %s: %w", filter, err)
		}
		logger.WithField("filter", filter).Infof("%d tasks matched", len(matched))
	}

	var profile struct {
		user
		Tasks []task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me/", nil, &profile, http.StatusOK); err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	logger.WithField("username", profile.Username).Infof("profile lists %d tasks", len(profile.Tasks))

	if err := c.refreshAccess(ctx); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	logger.Info("access token refreshed")

	last := created[len(created)-1]
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d/", last.ID), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	logger.WithField("task_id", last.ID).Info("task deleted")

	if err := c.logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	logger.Info("logged out")
	return nil
}
