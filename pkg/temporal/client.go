package temporal

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Config holds Temporal client configuration
type Config struct {
	HostPort  string
	Namespace string
	Identity  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HostPort:  "localhost:7233",
		Namespace: "default",
		Identity:  "redistribution-worker",
	}
}

// TaskQueues contains the Temporal task queue names
var TaskQueues = struct {
	Redistribution string
}{
	Redistribution: "redistribution-queue",
}

// WorkflowNames contains the registered workflow names
var WorkflowNames = struct {
	TransferFulfillment string
}{
	TransferFulfillment: "TransferFulfillmentWorkflow",
}

// Client wraps the Temporal client
type Client struct {
	client client.Client
	config *Config
}

// NewClient dials the Temporal frontend
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
		Identity:  config.Identity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}

	return &Client{client: c, config: config}, nil
}

// Client returns the underlying Temporal client
func (c *Client) Client() client.Client {
	return c.client
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}

// StartWorkflow starts a workflow execution with a fixed ID on a task queue.
// An ID is never reused, even after the previous run closed.
func (c *Client) StartWorkflow(ctx context.Context, workflowID, taskQueue, workflowName string, args ...interface{}) (client.WorkflowRun, error) {
	return c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflowName, args...)
}

// WorkerOptions contains options for creating a worker
type WorkerOptions struct {
	TaskQueue                    string
	MaxConcurrentActivityPollers int
	MaxConcurrentWorkflowPollers int
	MaxConcurrentActivities      int
	MaxConcurrentWorkflows       int
}

// DefaultWorkerOptions returns default worker options
func DefaultWorkerOptions(taskQueue string) *WorkerOptions {
	return &WorkerOptions{
		TaskQueue:                    taskQueue,
		MaxConcurrentActivityPollers: 4,
		MaxConcurrentWorkflowPollers: 4,
		MaxConcurrentActivities:      100,
		MaxConcurrentWorkflows:       100,
	}
}

// NewWorker creates a new Temporal worker
func (c *Client) NewWorker(opts *WorkerOptions) worker.Worker {
	return worker.New(c.client, opts.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     opts.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: opts.MaxConcurrentWorkflows,
		MaxConcurrentActivityTaskPollers:       opts.MaxConcurrentActivityPollers,
		MaxConcurrentWorkflowTaskPollers:       opts.MaxConcurrentWorkflowPollers,
	})
}
