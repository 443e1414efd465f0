package handlers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// ReminderStarter begins the task-reminder follow-up flow for a freshly
// created task. A nil return means no follow-up prompt.
type ReminderStarter func(userID, taskID string) *core.InteractionResponse

// TaskHandler covers task creation, listing, completion, deletion, updates
// and stats. Deletion is two-step: the first request stashes the target and
// asks for confirmation.
type TaskHandler struct {
	tasks     *store.TaskStore
	reminders ReminderStarter

	mu             sync.Mutex
	pendingDeletes map[string]string
}

func NewTaskHandler(tasks *store.TaskStore, reminders ReminderStarter) *TaskHandler {
	return &TaskHandler{
		tasks:          tasks,
		reminders:      reminders,
		pendingDeletes: make(map[string]string),
	}
}

func (h *TaskHandler) CanHandle(intent string) bool {
	switch intent {
	case command.IntentCreateTask, command.IntentListTasks, command.IntentCompleteTask,
		command.IntentDeleteTask, command.IntentUpdateTask, command.IntentTaskStats:
		return true
	}
	return false
}

func (h *TaskHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	switch cmd.Intent {
	case command.IntentCreateTask:
		return h.create(userID, cmd)
	case command.IntentListTasks:
		return h.list(userID)
	case command.IntentCompleteTask:
		return h.complete(userID, cmd)
	case command.IntentDeleteTask:
		return h.requestDelete(userID, cmd)
	case command.IntentUpdateTask:
		return h.update(userID, cmd)
	case command.IntentTaskStats:
		return h.stats(userID)
	}
	return core.NewResponse("I'm not sure what to do with that task request. Try `help`.", true)
}

func (h *TaskHandler) Help() string {
	return "Manage your tasks: create them, list them, mark them done, and keep priorities straight."
}

func (h *TaskHandler) Examples() []string {
	return []string{
		"create task water the plants",
		"show my tasks",
		"complete task 1",
		"update task 1 priority high",
		"delete task 2",
	}
}

func (h *TaskHandler) create(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	title := cmd.StringEntity("title")
	if title == "" {
		return core.NewResponse("What should the task say? Try `create task <title>`.", true)
	}

	task, err := h.tasks.Create(userID, title, "", "")
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("task create failed")
		return core.NewResponse("I couldn't save that task. Please try again in a moment.", true)
	}

	msg := fmt.Sprintf("✅ Added task: '%s'", task.Title)
	if h.reminders != nil {
		if follow := h.reminders(userID, task.ID); follow != nil {
			return core.NewResponse(msg+"\n\n"+follow.Message, follow.Completed)
		}
	}
	return core.NewResponse(msg, true)
}

func (h *TaskHandler) list(userID string) core.InteractionResponse {
	active, err := h.tasks.Active(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("task list failed")
		return core.NewResponse("I couldn't load your tasks just now. Please try again.", true)
	}
	if len(active) == 0 {
		return core.NewResponse("You don't have any active tasks right now. Try `create task <title>` to add one.", true)
	}

	var b strings.Builder
	b.WriteString("📋 Your active tasks:\n")
	fields := make([]core.RichField, 0, len(active))
	for i, t := range active {
		line := fmt.Sprintf("%d. %s", i+1, t.Title)
		detail := t.Priority
		if t.DueDate != "" {
			detail += ", due " + t.DueDate
		}
		b.WriteString(fmt.Sprintf("%s [%s]\n", line, detail))
		fields = append(fields, core.RichField{Name: line, Value: detail, Inline: false})
	}

	rich := &core.RichPayload{
		Title:  "Active Tasks",
		Type:   core.RichTypeTask,
		Fields: fields,
		Footer: fmt.Sprintf("%d active", len(active)),
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true).WithRich(rich)
}

func (h *TaskHandler) complete(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	identifier := cmd.StringEntity("task_identifier")
	if identifier == "" {
		return core.NewResponse("Which task would you like to complete? Try `complete task <number>` or part of its title.", false)
	}

	task, err := h.tasks.FindByIdentifier(userID, identifier)
	switch {
	case errors.Is(err, store.ErrAmbiguousTask):
		return core.NewResponse(fmt.Sprintf("I found multiple matching tasks for '%s'. Please use the task number instead.", identifier), false)
	case errors.Is(err, store.ErrTaskNotFound):
		return core.NewResponse(fmt.Sprintf("I couldn't find a task matching '%s'. Try `show my tasks` to see the numbers.", identifier), false)
	case err != nil:
		logrus.WithError(err).WithField("user_id", userID).Warn("task lookup failed")
		return core.NewResponse("Something went wrong looking that task up. Please try again.", true)
	}

	if err := h.tasks.Complete(task.ID); err != nil {
		logrus.WithError(err).WithField("task_id", task.ID).Warn("task complete failed")
		return core.NewResponse("I couldn't mark that task complete. Please try again.", true)
	}
	return core.NewResponse(fmt.Sprintf("✅ Completed: %s", task.Title), true)
}

func (h *TaskHandler) requestDelete(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	identifier := cmd.StringEntity("task_identifier")
	if identifier == "" {
		return core.NewResponse("Which task should I delete? Try `delete task <number>`.", false)
	}

	task, err := h.tasks.FindByIdentifier(userID, identifier)
	switch {
	case errors.Is(err, store.ErrAmbiguousTask):
		return core.NewResponse(fmt.Sprintf("I found multiple matching tasks for '%s'. Please use the task number instead.", identifier), false)
	case errors.Is(err, store.ErrTaskNotFound):
		return core.NewResponse(fmt.Sprintf("I couldn't find a task matching '%s'. Try `show my tasks` to see the numbers.", identifier), false)
	case err != nil:
		logrus.WithError(err).WithField("user_id", userID).Warn("task lookup failed")
		return core.NewResponse("Something went wrong looking that task up. Please try again.", true)
	}

	h.mu.Lock()
	h.pendingDeletes[userID] = task.ID
	h.mu.Unlock()

	return core.NewResponse(fmt.Sprintf("Are you sure you want to delete '%s'? Reply 'confirm delete' to remove it, or 'cancel' to keep it.", task.Title), false)
}

// ConfirmDelete executes a previously requested deletion. Safe to call with
// nothing pending.
func (h *TaskHandler) ConfirmDelete(userID string) core.InteractionResponse {
	h.mu.Lock()
	taskID, ok := h.pendingDeletes[userID]
	delete(h.pendingDeletes, userID)
	h.mu.Unlock()

	if !ok {
		return core.NewResponse("There's nothing pending deletion. Try `delete task <number>` first.", true)
	}

	task, err := h.tasks.Get(taskID)
	if err != nil {
		return core.NewResponse("That task seems to be gone already.", true)
	}
	if err := h.tasks.Delete(taskID); err != nil {
		logrus.WithError(err).WithField("task_id", taskID).Warn("task delete failed")
		return core.NewResponse("I couldn't delete that task. Please try again.", true)
	}
	return core.NewResponse(fmt.Sprintf("🗑️ Deleted: %s", task.Title), true)
}

// CancelDelete drops any pending deletion for the user.
func (h *TaskHandler) CancelDelete(userID string) {
	h.mu.Lock()
	delete(h.pendingDeletes, userID)
	h.mu.Unlock()
}

func (h *TaskHandler) update(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	identifier := cmd.StringEntity("task_identifier")
	if identifier == "" {
		return core.NewResponse("Which task should I update? Try `update task <number> priority high`.", false)
	}

	task, err := h.tasks.FindByIdentifier(userID, identifier)
	switch {
	case errors.Is(err, store.ErrAmbiguousTask):
		return core.NewResponse(fmt.Sprintf("I found multiple matching tasks for '%s'. Please use the task number instead.", identifier), false)
	case errors.Is(err, store.ErrTaskNotFound):
		return core.NewResponse(fmt.Sprintf("I couldn't find a task matching '%s'. Try `show my tasks` to see the numbers.", identifier), false)
	case err != nil:
		logrus.WithError(err).WithField("user_id", userID).Warn("task lookup failed")
		return core.NewResponse("Something went wrong looking that task up. Please try again.", true)
	}

	fields := make(map[string]any)
	var changes []string
	if priority := cmd.StringEntity("priority"); priority != "" {
		fields["priority"] = priority
		changes = append(changes, "priority → "+priority)
	}
	if due := cmd.StringEntity("due_date"); due != "" {
		fields["due_date"] = due
		changes = append(changes, "due date → "+due)
	}
	if title := cmd.StringEntity("title"); title != "" {
		fields["title"] = title
		changes = append(changes, "title → '"+title+"'")
	}
	if len(fields) == 0 {
		return core.NewResponse("I can update a task's priority, due date, or title. Try `update task 1 priority high`.", true)
	}

	if err := h.tasks.Update(task.ID, fields); err != nil {
		logrus.WithError(err).WithField("task_id", task.ID).Warn("task update failed")
		return core.NewResponse("I couldn't update that task. Please try again.", true)
	}
	return core.NewResponse(fmt.Sprintf("✅ Updated '%s': %s", task.Title, strings.Join(changes, ", ")), true)
}

func (h *TaskHandler) stats(userID string) core.InteractionResponse {
	stats, err := h.tasks.Stats(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("task stats failed")
		return core.NewResponse("I couldn't load your task stats just now. Please try again.", true)
	}

	msg := fmt.Sprintf("📊 Task stats: %d active, %d completed, %d total.", stats.Active, stats.Completed, stats.Total)
	rich := &core.RichPayload{
		Title: "Task Stats",
		Type:  core.RichTypeTask,
		Fields: []core.RichField{
			{Name: "Active", Value: fmt.Sprintf("%d", stats.Active), Inline: true},
			{Name: "Completed", Value: fmt.Sprintf("%d", stats.Completed), Inline: true},
			{Name: "Total", Value: fmt.Sprintf("%d", stats.Total), Inline: true},
		},
	}
	return core.NewResponse(msg, true).WithRich(rich)
}
