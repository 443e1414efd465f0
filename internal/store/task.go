package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task priorities accepted by the parser and the update handler.
var TaskPriorities = []string{"low", "medium", "high", "urgent", "critical"}

// Task is the GORM model for a user task.
type Task struct {
	ID              string     `gorm:"primaryKey;column:id"`
	UserID          string     `gorm:"column:user_id;index:idx_task_user;not null"`
	Title           string     `gorm:"column:title;not null"`
	Priority        string     `gorm:"column:priority;not null;default:medium"`
	DueDate         string     `gorm:"column:due_date"`
	Completed       bool       `gorm:"column:completed;index:idx_task_user;default:0"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	ReminderPeriods string     `gorm:"column:reminder_periods"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for GORM
func (Task) TableName() string {
	return "tasks"
}

// TaskStats summarizes a user's task list.
type TaskStats struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

// ErrTaskNotFound is returned when an identifier matches no active task.
var ErrTaskNotFound = errors.New("task not found")

// ErrAmbiguousTask is returned when a fuzzy identifier matches several tasks.
var ErrAmbiguousTask = errors.New("multiple tasks match")

// TaskStore persists tasks in the shared sqlite database.
type TaskStore struct {
	db *gorm.DB
}

// Create stores a new active task and returns it.
func (ts *TaskStore) Create(userID, title, priority, dueDate string) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("task title cannot be empty")
	}
	if priority == "" {
		priority = "medium"
	}
	task := &Task{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    strings.TrimSpace(title),
		Priority: priority,
		DueDate:  dueDate,
	}
	if err := ts.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Active returns the user's active tasks in creation order. The 1-based
// position in this list is the task number users refer to.
func (ts *TaskStore) Active(userID string) ([]Task, error) {
	var tasks []Task
	err := ts.db.
		Where("user_id = ? AND completed = ?", userID, false).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// Get returns a task by its id.
func (ts *TaskStore) Get(id string) (*Task, error) {
	var task Task
	err := ts.db.Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIdentifier resolves a user-supplied task reference: a 1-based list
// number, an exact title, or a fuzzy title match tolerating small typos.
func (ts *TaskStore) FindByIdentifier(userID, identifier string) (*Task, error) {
	active, err := ts.Active(userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrTaskNotFound
	}

	ident := strings.TrimSpace(identifier)
	if n, convErr := strconv.Atoi(ident); convErr == nil {
		if n < 1 || n > len(active) {
			return nil, ErrTaskNotFound
		}
		return &active[n-1], nil
	}

	lowered := strings.ToLower(ident)

	// Exact title first, then substring, then fuzzy word matching.
	for i := range active {
		if strings.ToLower(active[i].Title) == lowered {
			return &active[i], nil
		}
	}

	var substringMatches []*Task
	for i := range active {
		if strings.Contains(strings.ToLower(active[i].Title), lowered) {
			substringMatches = append(substringMatches, &active[i])
		}
	}
	if len(substringMatches) == 1 {
		return substringMatches[0], nil
	}
	if len(substringMatches) > 1 {
		return nil, ErrAmbiguousTask
	}

	best, bestScore, tie := (*Task)(nil), 0.0, false
	for i := range active {
		score := fuzzyTitleScore(lowered, strings.ToLower(active[i].Title))
		switch {
		case score > bestScore:
			best, bestScore, tie = &active[i], score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if best == nil || bestScore < 0.6 {
		return nil, ErrTaskNotFound
	}
	if tie {
		return nil, ErrAmbiguousTask
	}
	return best, nil
}

// Complete marks a task as completed.
func (ts *TaskStore) Complete(id string) error {
	now := time.Now()
	result := ts.db.Model(&Task{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]any{"completed": true, "completed_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task entirely.
func (ts *TaskStore) Delete(id string) error {
	result := ts.db.Where("id = ?", id).Delete(&Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Update applies the given field changes to a task. Recognized keys: title,
// priority, due_date, reminder_periods.
func (ts *TaskStore) Update(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("no fields to update")
	}
	allowed := map[string]bool{"title": true, "priority": true, "due_date": true, "reminder_periods": true}
	updates := make(map[string]any, len(fields))
	for key, value := range fields {
		if !allowed[key] {
			return fmt.Errorf("cannot update field %q", key)
		}
		updates[key] = value
	}
	result := ts.db.Model(&Task{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Stats returns active/completed/total counts for a user.
func (ts *TaskStore) Stats(userID string) (TaskStats, error) {
	var stats TaskStats
	if err := ts.db.Model(&Task{}).Where("user_id = ? AND completed = ?", userID, false).Count(&stats.Active).Error; err != nil {
		return stats, err
	}
	if err := ts.db.Model(&Task{}).Where("user_id = ? AND completed = ?", userID, true).Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	stats.Total = stats.Active + stats.Completed
	return stats, nil
}

// DueTasks returns active tasks with a due date set, for reminder runs.
func (ts *TaskStore) DueTasks(userID string) ([]Task, error) {
	var tasks []Task
	err := ts.db.
		Where("user_id = ? AND completed = ? AND due_date <> ''", userID, false).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// UsersWithActiveTasks returns the distinct user ids that have at least one
// active task.
func (ts *TaskStore) UsersWithActiveTasks() ([]string, error) {
	var ids []string
	err := ts.db.Model(&Task{}).
		Where("completed = ?", false).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// fuzzyTitleScore rates how well a typed reference matches a title. Each
// reference word contributes its best per-word similarity; the score is the
// mean over reference words.
func fuzzyTitleScore(reference, title string) float64 {
	refWords := strings.Fields(reference)
	titleWords := strings.Fields(title)
	if len(refWords) == 0 || len(titleWords) == 0 {
		return 0
	}

	var total float64
	for _, rw := range refWords {
		best := 0.0
		for _, tw := range titleWords {
			if sim := wordSimilarity(rw, tw); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(refWords))
}

func wordSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
