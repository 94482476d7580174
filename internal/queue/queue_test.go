package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) VerifyInto(ctx context.Context, runID, path string) (*verification.Result, error) {
	args := m.Called(ctx, runID, path)
	r, _ := args.Get(0).(*verification.Result)
	return r, args.Error(1)
}

func newTestConsumer(rec ResultRecorder, timeout time.Duration) *Consumer {
	return &Consumer{
		recorder: rec,
		config:   ConsumerConfig{Queue: "timesheets", TaskTimeout: timeout},
		logger:   zap.NewNop(),
	}
}

func TestVerifyTaskRoundTrip(t *testing.T) {
	task, err := NewVerifyTask(port.VerifyTask{RunID: "run-1", ImagePath: "/in/a.png"})
	require.NoError(t, err)
	assert.Equal(t, TypeVerify, task.Type())
	assert.JSONEq(t, `{"run_id":"run-1","image_path":"/in/a.png"}`, string(task.Payload()))

	parsed, err := ParseVerifyTask(task)
	require.NoError(t, err)
	assert.Equal(t, "run-1", parsed.RunID)
	assert.Equal(t, "/in/a.png", parsed.ImagePath)
}

func TestNewVerifyTask_MissingFields(t *testing.T) {
	_, err := NewVerifyTask(port.VerifyTask{RunID: "run-1"})
	assert.Error(t, err)
}

func TestHandleVerify(t *testing.T) {
	okResult := &verification.Result{ImagePath: "/in/a.png", Verdict: approval.Verdict{Status: approval.StatusApproved}}
	boom := errors.New("database is locked")

	tests := []struct {
		name      string
		payload   string
		setup     func(m *mockRecorder)
		wantErr   error
		skipRetry bool
	}{
		{
			name:    "verified",
			payload: `{"run_id":"run-1","image_path":"/in/a.png"}`,
			setup: func(m *mockRecorder) {
				m.On("VerifyInto", mock.Anything, "run-1", "/in/a.png").Return(okResult, nil)
			},
		},
		{
			name:      "malformed payload",
			payload:   `{"run_id":`,
			setup:     func(m *mockRecorder) {},
			skipRetry: true,
		},
		{
			name:    "unknown run",
			payload: `{"run_id":"ghost","image_path":"/in/a.png"}`,
			setup: func(m *mockRecorder) {
				m.On("VerifyInto", mock.Anything, "ghost", "/in/a.png").Return(nil, port.ErrNotFound)
			},
			skipRetry: true,
		},
		{
			name:    "store failure is retried",
			payload: `{"run_id":"run-1","image_path":"/in/a.png"}`,
			setup: func(m *mockRecorder) {
				m.On("VerifyInto", mock.Anything, "run-1", "/in/a.png").Return(okResult, boom)
			},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			tt.setup(rec)
			c := newTestConsumer(rec, time.Second)

			err := c.HandleVerify(context.Background(), asynq.NewTask(TypeVerify, []byte(tt.payload)))

			switch {
			case tt.skipRetry:
				assert.ErrorIs(t, err, asynq.SkipRetry)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, asynq.SkipRetry)
			default:
				assert.NoError(t, err)
			}
			rec.AssertExpectations(t)
		})
	}
}

func TestHandleVerify_AppliesTimeout(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("VerifyInto", mock.Anything, "run-1", "/in/a.png").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok)
		}).
		Return(&verification.Result{}, nil)
	c := newTestConsumer(rec, time.Minute)

	task, err := NewVerifyTask(port.VerifyTask{RunID: "run-1", ImagePath: "/in/a.png"})
	require.NoError(t, err)
	require.NoError(t, c.HandleVerify(context.Background(), task))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 20*time.Second, retryDelay(2, nil, nil))
	assert.Equal(t, time.Minute, retryDelay(10, nil, nil))
}
