package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// SchedulePeriod is one named block of the day and the message categories
// active during it.
type SchedulePeriod struct {
	Name       string   `json:"name" yaml:"name"`
	Start      string   `json:"start" yaml:"start"`
	End        string   `json:"end" yaml:"end"`
	Categories []string `json:"categories" yaml:"categories"`
}

// ScheduleCategories are the togglable per-period message categories.
var ScheduleCategories = []string{"tasks", "check-ins", "messages"}

// DefaultPeriods is the built-in day layout used when no resource file
// overrides it.
func DefaultPeriods() []SchedulePeriod {
	return []SchedulePeriod{
		{Name: "morning", Start: "08:00", End: "12:00", Categories: []string{"tasks", "check-ins", "messages"}},
		{Name: "afternoon", Start: "12:00", End: "17:00", Categories: []string{"tasks", "messages"}},
		{Name: "evening", Start: "17:00", End: "21:00", Categories: []string{"messages"}},
	}
}

// LoadPeriods reads the period layout from a JSON or YAML file. A missing
// file yields the defaults; a malformed one is an error.
func LoadPeriods(path string) ([]SchedulePeriod, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPeriods(), nil
	}
	if err != nil {
		return nil, err
	}

	var periods []SchedulePeriod
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &periods); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &periods); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &periods); err == nil {
			break
		}
		if err := yaml.Unmarshal(data, &periods); err != nil {
			return nil, fmt.Errorf("decode periods file: %w", err)
		}
	}
	if len(periods) == 0 {
		return DefaultPeriods(), nil
	}
	return periods, nil
}

// ScheduleHandler covers viewing the day layout and toggling per-period
// message categories. Per-user overrides live in preferences under
// schedule.<period>.<category>.
type ScheduleHandler struct {
	users   *store.UserStore
	periods []SchedulePeriod
	now     func() time.Time
}

func NewScheduleHandler(users *store.UserStore, periods []SchedulePeriod) *ScheduleHandler {
	if len(periods) == 0 {
		periods = DefaultPeriods()
	}
	return &ScheduleHandler{users: users, periods: periods, now: time.Now}
}

func (h *ScheduleHandler) CanHandle(intent string) bool {
	switch intent {
	case command.IntentShowSchedule, command.IntentScheduleStatus, command.IntentEditSchedule:
		return true
	}
	return false
}

func (h *ScheduleHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	switch cmd.Intent {
	case command.IntentShowSchedule:
		return h.show(userID)
	case command.IntentScheduleStatus:
		return h.status(userID)
	case command.IntentEditSchedule:
		return h.edit(userID, cmd)
	}
	return core.NewResponse("I'm not sure what to do with that schedule request. Try `help`.", true)
}

func (h *ScheduleHandler) Help() string {
	return "See when reminders and check-ins go out, and toggle categories per period."
}

func (h *ScheduleHandler) Examples() []string {
	return []string{
		"show schedule",
		"schedule status",
		"edit schedule period morning tasks",
	}
}

// categoryEnabled resolves a period/category flag: user override first, then
// the period's default list.
func (h *ScheduleHandler) categoryEnabled(userID string, period SchedulePeriod, category string) bool {
	if pref, err := h.users.Preference(userID, "schedule."+period.Name+"."+prefKey(category)); err == nil && pref.Exists() {
		return pref.Bool()
	}
	for _, c := range period.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func (h *ScheduleHandler) show(userID string) core.InteractionResponse {
	var b strings.Builder
	b.WriteString("🗓️ Your schedule:\n")
	fields := make([]core.RichField, 0, len(h.periods))
	for _, p := range h.periods {
		var enabled []string
		for _, c := range ScheduleCategories {
			if h.categoryEnabled(userID, p, c) {
				enabled = append(enabled, c)
			}
		}
		value := "nothing scheduled"
		if len(enabled) > 0 {
			value = strings.Join(enabled, ", ")
		}
		b.WriteString(fmt.Sprintf("%s (%s-%s): %s\n", p.Name, p.Start, p.End, value))
		fields = append(fields, core.RichField{
			Name:   fmt.Sprintf("%s (%s-%s)", capitalize(p.Name), p.Start, p.End),
			Value:  value,
			Inline: false,
		})
	}

	rich := &core.RichPayload{
		Title:  "Daily Schedule",
		Type:   core.RichTypeSchedule,
		Fields: fields,
		Footer: "Toggle with `edit schedule period <name> <category>`",
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true).WithRich(rich)
}

func (h *ScheduleHandler) status(userID string) core.InteractionResponse {
	now := h.now()
	clock := now.Format("15:04")
	current := "none"
	for _, p := range h.periods {
		if p.Start <= clock && clock < p.End {
			current = p.Name
			break
		}
	}
	if current == "none" {
		return core.NewResponse(fmt.Sprintf("It's %s, outside your scheduled periods. Nothing is due to go out right now.", now.Format("3:04 PM")), true)
	}

	var enabled []string
	for _, p := range h.periods {
		if p.Name != current {
			continue
		}
		for _, c := range ScheduleCategories {
			if h.categoryEnabled(userID, p, c) {
				enabled = append(enabled, c)
			}
		}
	}
	if len(enabled) == 0 {
		return core.NewResponse(fmt.Sprintf("It's the %s period, but all categories are off. Use `edit schedule period %s <category>` to turn one on.", current, current), true)
	}
	return core.NewResponse(fmt.Sprintf("It's the %s period. Active categories: %s.", current, strings.Join(enabled, ", ")), true)
}

func (h *ScheduleHandler) edit(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	periodName := strings.ToLower(cmd.StringEntity("period_name"))
	category := strings.ToLower(cmd.StringEntity("category"))
	if periodName == "" || category == "" {
		return core.NewResponse("Which period and category? Try `edit schedule period morning tasks`.", true)
	}

	var period *SchedulePeriod
	for i := range h.periods {
		if h.periods[i].Name == periodName {
			period = &h.periods[i]
			break
		}
	}
	if period == nil {
		names := make([]string, 0, len(h.periods))
		for _, p := range h.periods {
			names = append(names, p.Name)
		}
		return core.NewResponse(fmt.Sprintf("I don't know a period called '%s'. Your periods are: %s.", periodName, strings.Join(names, ", ")), true)
	}
	if !isScheduleCategory(category) {
		return core.NewResponse(fmt.Sprintf("'%s' isn't a schedule category. Choose from: %s.", category, strings.Join(ScheduleCategories, ", ")), true)
	}

	next := !h.categoryEnabled(userID, *period, category)
	if err := h.users.SetPreference(userID, "schedule."+period.Name+"."+prefKey(category), next); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("schedule toggle failed")
		return core.NewResponse("I couldn't save that schedule change. Please try again.", true)
	}

	state := "off"
	if next {
		state = "on"
	}
	return core.NewResponse(fmt.Sprintf("✅ %s are now %s during the %s period.", capitalize(category), state, period.Name), true)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func isScheduleCategory(category string) bool {
	for _, c := range ScheduleCategories {
		if c == category {
			return true
		}
	}
	return false
}

// prefKey maps a display category to a preference-path-safe key. gjson paths
// treat dashes literally, so check-ins stores as checkins.
func prefKey(category string) string {
	return strings.ReplaceAll(category, "-", "")
}
