// Package queue moves single-image verifications through Redis with asynq.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/hibiken/asynq"
)

// TypeVerify is the task type for verifying one timesheet image.
const TypeVerify = "timesheet:verify"

// NewVerifyTask builds an asynq task carrying t as JSON.
func NewVerifyTask(t port.VerifyTask) (*asynq.Task, error) {
	if t.RunID == "" || t.ImagePath == "" {
		return nil, fmt.Errorf("verify task needs run_id and image_path")
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify task: %w", err)
	}
	return asynq.NewTask(TypeVerify, payload), nil
}

// ParseVerifyTask decodes the payload of a TypeVerify task.
func ParseVerifyTask(task *asynq.Task) (port.VerifyTask, error) {
	var t port.VerifyTask
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return t, fmt.Errorf("failed to unmarshal verify task: %w", err)
	}
	if t.RunID == "" || t.ImagePath == "" {
		return t, fmt.Errorf("verify task missing run_id or image_path")
	}
	return t, nil
}

// RedisOpt holds Redis connection settings.
type RedisOpt struct {
	Addr     string
	Password string
	DB       int
}

func (o RedisOpt) clientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}
