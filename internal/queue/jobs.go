// Package queue defines the asynq tasks shared by the API and the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// AnalyzeDocumentTask is scheduled each time a document file is uploaded.
	AnalyzeDocumentTask = "document:analyze"
)

// AnalyzePayload is serialized into the task payload so the worker knows
// which file record to analyze.
type AnalyzePayload struct {
	FileID string `json:"file_id"`
}

// NewAnalyzeTask builds the task for a file.
func NewAnalyzeTask(fileID string) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyzePayload{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(AnalyzeDocumentTask, data), nil
}

// ParseAnalyzePayload decodes a task payload.
func ParseAnalyzePayload(task *asynq.Task) (AnalyzePayload, error) {
	var payload AnalyzePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.FileID == "" {
		return payload, fmt.Errorf("decode payload: empty file id")
	}
	return payload, nil
}

// Client enqueues analysis jobs on Redis.
type Client struct {
	client *asynq.Client
}

// NewClient connects an asynq client to Redis.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// EnqueueAnalyze enqueues an analysis job for a file.
func (c *Client) EnqueueAnalyze(ctx context.Context, fileID string) error {
	task, err := NewAnalyzeTask(fileID)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue analyze task: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
