package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"miner-agent/internal/comms"
)

func newTaskServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(comms.NewClient(5*time.Second, 6000), srv.URL+"/task", srv.URL+"/complete")
}

func TestFetchReturnsTask(t *testing.T) {
	c := newTaskServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/task", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var req fetchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "tok", req.MiningToken)
		require.Equal(t, "node-1", req.NodeID)
		require.Equal(t, "code-1", req.AuthCode)
		json.NewEncoder(w).Encode(fetchResponse{
			Success: true,
			Task:    &Task{ID: "t-9", Category: CategoryStandard, ResourceRequirement: 2},
		})
	})

	task, err := c.Fetch(context.Background(), "tok", "node-1", "code-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, "t-9", task.ID)
	require.Equal(t, CategoryStandard, task.Category)
	require.Equal(t, 2, task.ResourceRequirement)
}

func TestFetchNullTaskMeansNoneAvailable(t *testing.T) {
	c := newTaskServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fetchResponse{Success: true, Task: nil, Message: "queue empty"})
	})

	task, err := c.Fetch(context.Background(), "tok", "node-1", "code-1")
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestFetchFillsCategoryFromTopLevelField(t *testing.T) {
	c := newTaskServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fetchResponse{
			Success:      true,
			Task:         &Task{ID: "t-10"},
			TaskCategory: CategoryPlaceholder,
		})
	})

	task, err := c.Fetch(context.Background(), "tok", "node-1", "code-1")
	require.NoError(t, err)
	require.Equal(t, CategoryPlaceholder, task.Category)
}

func TestCompleteSendsAcknowledgement(t *testing.T) {
	var got Completion
	c := newTaskServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/complete", r.URL.Path)
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(completeResponse{Success: true})
	})

	done := Completion{
		TaskID:   "t-9",
		NodeID:   "node-1",
		Status:   "completed",
		Category: CategoryStandard,
		AuthCode: "code-2",
		Result:   `{"ok":true}`,
	}
	require.NoError(t, c.Complete(context.Background(), done))
	require.Equal(t, done, got)
}

func TestCompleteDeclinedIsError(t *testing.T) {
	c := newTaskServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completeResponse{Success: false, Message: "unknown task"})
	})

	err := c.Complete(context.Background(), Completion{TaskID: "t-0"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown task")
}
