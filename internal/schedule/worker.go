package schedule

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// ScheduleID is the fixed ID of the daily cron schedule.
const ScheduleID = "stormrisk-daily"

// Dial connects to the Temporal server, routing SDK logs through zap.
func Dial(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    zapAdapter{zap.L().Sugar()},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: dial temporal at %s", hostPort)
	}
	return c, nil
}

// NewWorker builds a worker serving the daily analysis queue.
func NewWorker(c client.Client, taskQueue string, a *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(DailyAnalysisWorkflow)
	w.RegisterActivity(a)
	return w
}

// CreateSchedule registers the daily cron. Hours are UTC; the default 06:30
// sits a few hours past the 00Z run so the file has time to publish.
func CreateSchedule(ctx context.Context, c client.Client, taskQueue, cronUTC string) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cronUTC},
			TimeZoneName:    "UTC",
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "daily-analysis",
			Workflow:  DailyAnalysisWorkflow,
			Args:      []interface{}{DailyRequest{}},
			TaskQueue: taskQueue,
		},
	})
	if err != nil {
		return eris.Wrap(err, "schedule: create")
	}
	return nil
}

// DeleteSchedule removes the daily cron.
func DeleteSchedule(ctx context.Context, c client.Client) error {
	if err := c.ScheduleClient().GetHandle(ctx, ScheduleID).Delete(ctx); err != nil {
		return eris.Wrap(err, "schedule: delete")
	}
	return nil
}

// zapAdapter satisfies the SDK's keyval logger interface on top of zap.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (l zapAdapter) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l zapAdapter) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l zapAdapter) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l zapAdapter) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
