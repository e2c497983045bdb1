// Package googletasks implements the service.Service interface using Google Tasks API.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtasks "google.golang.org/api/tasks/v1"

	"gtodo/internal/config"
	"gtodo/internal/prefs"
	"gtodo/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for a single API call.
	APITimeout = 5 * time.Second

	// Scope is the OAuth scope for Google Tasks.
	Scope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements service.Service against one Google task list.
type Client struct {
	svc     *gtasks.Service
	listID  string
	created *createdTimes
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.TokenFile, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.TokenFile, err)
	}

	// Refreshes the access token as needed.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))

	svc, err := gtasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}

	return &Client{
		svc:     svc,
		listID:  listOrDefault(cfg.Settings.Google.ListID),
		created: newCreatedTimes(prefs.NewFile(cfg.GoogleStatePath()), cfg.Logger()),
	}, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint (for testing).
// state keeps first-seen creation times; nil keeps them in memory.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, listID string, state prefs.Store) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := gtasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc, listID: listOrDefault(listID), created: newCreatedTimes(state, nil)}, nil
}

func listOrDefault(id string) string {
	if id == "" {
		return DefaultListID
	}
	return id
}

// List implements service.Service. Completed and hidden tasks are included
// unless filter asks for active tasks only.
func (c *Client) List(ctx context.Context, filter service.Filter) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	showCompleted := filter != service.FilterActive
	var result []service.Task
	seen := make(map[string]bool)
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(showCompleted).
		ShowHidden(showCompleted).
		ShowDeleted(false).
		Pages(ctx, func(resp *gtasks.Tasks) error {
			for _, item := range resp.Items {
				seen[item.Id] = true
				t := c.toTask(item)
				if filter.Match(t) {
					result = append(result, t)
				}
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	if filter == service.FilterAll {
		c.created.keep(seen)
	}
	return result, nil
}

// Create implements service.Service.
func (c *Client) Create(ctx context.Context, text string) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	item, err := c.svc.Tasks.Insert(c.listID, &gtasks.Task{Title: text, Status: statusNeedsAction}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return c.toTask(item), nil
}

// Update implements service.Service.
func (c *Client) Update(ctx context.Context, id string, isCompleted bool) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	patch := &gtasks.Task{Status: statusNeedsAction}
	if isCompleted {
		patch.Status = statusCompleted
	} else {
		// Reopening requires clearing the completion timestamp.
		patch.NullFields = []string{"Completed"}
	}
	if _, err := c.svc.Tasks.Patch(c.listID, id, patch).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// Remove implements service.Service.
func (c *Client) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(c.listID, id).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	c.created.forget(id)
	return nil
}

// ClearCompleted implements service.Service. Completed tasks are deleted one
// by one so the returned count is exact when a deletion fails part way.
func (c *Client) ClearCompleted(ctx context.Context) (int, error) {
	completed, err := c.List(ctx, service.FilterCompleted)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, t := range completed {
		if err := c.Remove(ctx, t.ID); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				// Already gone; someone else cleared it.
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// toTask maps an API task. The API has no creation timestamp, so the
// Updated time at first sight is pinned and reused from then on.
func (c *Client) toTask(item *gtasks.Task) service.Task {
	seen, err := time.Parse(time.RFC3339, item.Updated)
	if err != nil {
		seen = time.Now()
	}
	return service.Task{
		ID:           item.Id,
		Text:         item.Title,
		IsCompleted:  item.Status == statusCompleted,
		CreationTime: c.created.stamp(item.Id, seen.UTC()),
	}
}

// wrapError maps API errors to service errors and user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return service.ErrUnauthorized
		case http.StatusNotFound:
			return service.ErrNotFound
		}
	}
	return err
}

var _ service.Service = (*Client)(nil)
