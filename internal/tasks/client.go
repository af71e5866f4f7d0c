// Package tasks implements the work-unit polling loop and its calls to
// the task-provider endpoints.
package tasks

import (
	"context"
	"fmt"
	"net/http"

	"miner-agent/internal/comms"
)

// Category distinguishes real work units from liveness placeholders.
type Category string

const (
	// CategoryStandard carries a real payload for the processor.
	CategoryStandard Category = "standard"
	// CategoryPlaceholder exists purely to keep the liveness signal
	// flowing; it is acknowledged with no payload.
	CategoryPlaceholder Category = "placeholder"
)

// Task is a discrete unit of remote-assigned work. The agent holds no
// durable copy; it is fire-and-forget per cycle.
type Task struct {
	ID                  string   `json:"id"`
	Category            Category `json:"category"`
	ResourceRequirement int      `json:"resourceRequirement"`
}

// Client talks to the task-provider and task-completion endpoints.
type Client struct {
	comms       *comms.Client
	fetchURL    string
	completeURL string
}

func NewClient(c *comms.Client, fetchURL, completeURL string) *Client {
	return &Client{comms: c, fetchURL: fetchURL, completeURL: completeURL}
}

type fetchRequest struct {
	MiningToken string `json:"miningToken"`
	NodeID      string `json:"nodeId"`
	AuthCode    string `json:"authCode"`
}

type fetchResponse struct {
	Success      bool     `json:"success"`
	Task         *Task    `json:"task"`
	TaskCategory Category `json:"taskCategory,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Fetch requests a work unit. A nil task with a nil error means no unit
// is available this cycle.
func (c *Client) Fetch(ctx context.Context, token, identity, authCode string) (*Task, error) {
	req := fetchRequest{MiningToken: token, NodeID: identity, AuthCode: authCode}
	var resp fetchResponse
	if err := c.comms.PostJSON(ctx, c.fetchURL, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("task request declined: %s", resp.Message)
	}
	if resp.Task == nil {
		return nil, nil
	}
	task := *resp.Task
	if task.Category == "" {
		task.Category = resp.TaskCategory
	}
	if task.Category == "" {
		task.Category = CategoryStandard
	}
	return &task, nil
}

// Completion is the acknowledgement for a finished task. AuthCode must
// be freshly obtained; the fetch code is never reused here.
type Completion struct {
	TaskID   string   `json:"taskId"`
	NodeID   string   `json:"nodeId"`
	Status   string   `json:"status"`
	Category Category `json:"taskCategory"`
	AuthCode string   `json:"authCode"`
	Result   string   `json:"result,omitempty"`
}

type completeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Complete acknowledges a task with the server.
func (c *Client) Complete(ctx context.Context, done Completion) error {
	var resp completeResponse
	if err := c.comms.DoJSON(ctx, http.MethodPut, c.completeURL, done, &resp); err != nil {
		return fmt.Errorf("complete task %s: %w", done.TaskID, err)
	}
	if !resp.Success {
		return fmt.Errorf("completion of task %s declined: %s", done.TaskID, resp.Message)
	}
	return nil
}
