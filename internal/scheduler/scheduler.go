package scheduler

import (
	"fmt"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// Notifier pushes a proactive message to a user. The bool mirrors the
// adapter's queue-accepted result.
type Notifier interface {
	SendNotification(userID, text string, rich *core.RichPayload, suggestions []string) bool
}

// FlowSweeper expires stale conversation flows.
type FlowSweeper interface {
	SweepStale() int
}

// Scheduler runs the recurring jobs: task reminders on the configured cron
// spec and a stale-flow sweep every ten minutes.
type Scheduler struct {
	cron     *cronlib.Cron
	tasks    *store.TaskStore
	messages *store.MessageStore
	notifier Notifier
	sweeper  FlowSweeper

	reminderSpec string
	now          func() time.Time
}

// New builds a scheduler. reminderSpec is a standard 5-field cron expression.
func New(tasks *store.TaskStore, messages *store.MessageStore, notifier Notifier, sweeper FlowSweeper, reminderSpec string) *Scheduler {
	return &Scheduler{
		cron:         cronlib.New(),
		tasks:        tasks,
		messages:     messages,
		notifier:     notifier,
		sweeper:      sweeper,
		reminderSpec: reminderSpec,
		now:          time.Now,
	}
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.reminderSpec, s.runReminders); err != nil {
		return fmt.Errorf("invalid reminder cron spec %q: %w", s.reminderSpec, err)
	}
	if _, err := s.cron.AddFunc("@every 10m", s.runSweep); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	s.cron.Start()
	logrus.WithField("reminder_spec", s.reminderSpec).Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits briefly for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		logrus.Warn("scheduler jobs did not finish before stop deadline")
	}
}

// runReminders sends each eligible user one reminder message covering their
// due tasks and the tasks scheduled for the current period.
func (s *Scheduler) runReminders() {
	userIDs, err := s.tasks.UsersWithActiveTasks()
	if err != nil {
		logrus.WithError(err).Error("reminder run could not list users")
		return
	}

	period := currentPeriod(s.now())
	sent := 0
	for _, userID := range userIDs {
		if s.remindUser(userID, period) {
			sent++
		}
	}
	logrus.WithFields(logrus.Fields{
		"users":  len(userIDs),
		"sent":   sent,
		"period": period,
	}).Info("reminder run finished")
}

// remindUser composes and sends one user's reminder. Returns true when a
// message was queued.
func (s *Scheduler) remindUser(userID, period string) bool {
	active, err := s.tasks.Active(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("reminder skipped, task lookup failed")
		return false
	}

	picked := pickReminderTasks(active, period)
	if len(picked) == 0 {
		return false
	}

	text := reminderText(len(picked))
	rich := &core.RichPayload{
		Title: "Task reminder",
		Type:  core.RichTypeTask,
	}
	for _, task := range picked {
		value := "priority " + task.Priority
		if task.DueDate != "" {
			value = "due " + task.DueDate + ", " + value
		}
		rich.Fields = append(rich.Fields, core.RichField{Name: task.Title, Value: value})
	}

	suggestions := []string{"show my tasks", "complete " + picked[0].Title}
	if !s.notifier.SendNotification(userID, text, rich, suggestions) {
		logrus.WithField("user_id", userID).Warn("reminder not accepted by adapter")
		return false
	}
	if err := s.messages.Append(userID, store.MessageKindNotification, text); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("reminder sent but not recorded")
	}
	return true
}

// runSweep expires abandoned flows.
func (s *Scheduler) runSweep() {
	if n := s.sweeper.SweepStale(); n > 0 {
		logrus.WithField("expired", n).Info("stale flows swept")
	}
}

// pickReminderTasks selects the tasks worth nudging about: anything with a
// due date, plus anything whose reminder periods include the current period.
func pickReminderTasks(tasks []store.Task, period string) []store.Task {
	var picked []store.Task
	for _, task := range tasks {
		if task.DueDate != "" || periodMatches(task.ReminderPeriods, period) {
			picked = append(picked, task)
		}
	}
	return picked
}

// periodMatches reports whether the stored reminder periods (a comma list
// like "morning,evening") name the given period.
func periodMatches(stored, period string) bool {
	if stored == "" {
		return false
	}
	return strings.Contains(strings.ToLower(stored), period)
}

// currentPeriod buckets the wall clock into morning / afternoon / evening.
func currentPeriod(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// reminderText phrases the nudge for the task count.
func reminderText(n int) string {
	if n == 1 {
		return "Gentle nudge: you have a task that could use a look today."
	}
	return fmt.Sprintf("Gentle nudge: you have %d tasks that could use a look today.", n)
}
