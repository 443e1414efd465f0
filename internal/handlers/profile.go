package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// ProfileHandler covers viewing and editing account details and preferences.
type ProfileHandler struct {
	users    *store.UserStore
	tasks    *store.TaskStore
	checkins *store.CheckinStore
}

func NewProfileHandler(users *store.UserStore, tasks *store.TaskStore, checkins *store.CheckinStore) *ProfileHandler {
	return &ProfileHandler{users: users, tasks: tasks, checkins: checkins}
}

func (h *ProfileHandler) CanHandle(intent string) bool {
	switch intent {
	case command.IntentShowProfile, command.IntentUpdateProfile, command.IntentProfileStats:
		return true
	}
	return false
}

func (h *ProfileHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	switch cmd.Intent {
	case command.IntentShowProfile:
		return h.show(userID)
	case command.IntentUpdateProfile:
		return h.update(userID, cmd)
	case command.IntentProfileStats:
		return h.statsResponse(userID)
	}
	return core.NewResponse("I'm not sure what to do with that profile request. Try `help`.", true)
}

func (h *ProfileHandler) Help() string {
	return "View and update your profile: display name, timezone, and check-in preferences."
}

func (h *ProfileHandler) Examples() []string {
	return []string{
		"show profile",
		"update profile name Jess",
		"update profile timezone US/Eastern",
		"profile stats",
	}
}

func (h *ProfileHandler) show(userID string) core.InteractionResponse {
	user, err := h.users.ByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return core.NewResponse("I couldn't find your profile. Say `start` to set one up.", true)
		}
		logrus.WithError(err).WithField("user_id", userID).Warn("profile load failed")
		return core.NewResponse("I couldn't load your profile just now. Please try again.", true)
	}

	name := user.DisplayName
	if name == "" {
		name = "Not set"
	}
	checkins := "Disabled"
	if user.CheckinsEnabled {
		checkins = "Enabled"
	}
	timezone := "Not set"
	if tz, err := h.users.Preference(userID, "timezone"); err == nil && tz.Exists() {
		timezone = tz.String()
	}
	questions := "Defaults"
	if keys, err := h.users.EnabledQuestions(userID); err == nil && keys != nil {
		questions = fmt.Sprintf("%d selected", len(keys))
	}

	msg := fmt.Sprintf("👤 Profile | Name: %s | Check-ins: %s | Timezone: %s", name, checkins, timezone)
	rich := &core.RichPayload{
		Title: "Your Profile",
		Type:  core.RichTypeProfile,
		Fields: []core.RichField{
			{Name: "Name", Value: name, Inline: true},
			{Name: "Check-ins", Value: checkins, Inline: true},
			{Name: "Timezone", Value: timezone, Inline: true},
			{Name: "Check-in questions", Value: questions, Inline: true},
			{Name: "Member since", Value: user.CreatedAt.Format("Jan 2, 2006"), Inline: true},
		},
	}
	return core.NewResponse(msg, true).WithRich(rich)
}

func (h *ProfileHandler) update(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	field := strings.ToLower(cmd.StringEntity("field"))
	value := cmd.StringEntity("value")
	if field == "" || value == "" {
		return core.NewResponse("What should I update? Try `update profile timezone US/Eastern` or `update profile name Jess`.", true)
	}

	switch field {
	case "name":
		if err := h.users.SetDisplayName(userID, value); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("display name update failed")
			return core.NewResponse("I couldn't update your name. Please try again.", true)
		}
		return core.NewResponse(fmt.Sprintf("✅ Updated your name to %s.", value), true)
	case "checkins", "check-ins":
		enabled, ok := parseToggle(value)
		if !ok {
			return core.NewResponse("Check-ins can be turned `on` or `off`. Try `update profile checkins off`.", true)
		}
		if err := h.users.SetCheckinsEnabled(userID, enabled); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("checkins toggle failed")
			return core.NewResponse("I couldn't change your check-in setting. Please try again.", true)
		}
		if enabled {
			return core.NewResponse("✅ Check-ins are now enabled. Say `start checkin` whenever you're ready.", true)
		}
		return core.NewResponse("✅ Check-ins are now disabled. You can turn them back on anytime.", true)
	default:
		if err := h.users.SetPreference(userID, field, value); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "field": field}).Warn("preference update failed")
			return core.NewResponse("I couldn't save that preference. Please try again.", true)
		}
		return core.NewResponse(fmt.Sprintf("✅ Updated %s to %s.", field, value), true)
	}
}

func (h *ProfileHandler) statsResponse(userID string) core.InteractionResponse {
	user, err := h.users.ByID(userID)
	if err != nil {
		return core.NewResponse("I couldn't find your profile. Say `start` to set one up.", true)
	}

	taskStats, err := h.tasks.Stats(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("task stats failed")
		return core.NewResponse("I couldn't load your stats just now. Please try again.", true)
	}
	checkinCount, err := h.checkins.Count(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("checkin count failed")
		return core.NewResponse("I couldn't load your stats just now. Please try again.", true)
	}

	msg := fmt.Sprintf("📊 Profile stats: %d check-ins logged, %d tasks completed, %d active.",
		checkinCount, taskStats.Completed, taskStats.Active)
	rich := &core.RichPayload{
		Title: "Profile Stats",
		Type:  core.RichTypeProfile,
		Fields: []core.RichField{
			{Name: "Check-ins logged", Value: fmt.Sprintf("%d", checkinCount), Inline: true},
			{Name: "Tasks completed", Value: fmt.Sprintf("%d", taskStats.Completed), Inline: true},
			{Name: "Tasks active", Value: fmt.Sprintf("%d", taskStats.Active), Inline: true},
		},
		Footer: "Member since " + user.CreatedAt.Format("Jan 2, 2006"),
	}
	return core.NewResponse(msg, true).WithRich(rich)
}

func parseToggle(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "enable", "enabled", "1":
		return true, true
	case "off", "false", "no", "disable", "disabled", "0":
		return false, true
	}
	return false, false
}
