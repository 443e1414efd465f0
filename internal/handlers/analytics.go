package handlers

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// analyticsWindow is how many recent check-ins feed trend calculations.
const analyticsWindow = 14

// Habit questions scored as yes-rates in habit analysis.
var habitKeys = []string{"ate_breakfast", "exercise", "social_interaction", "outdoor_time", "medication_taken"}

// AnalyticsHandler summarizes check-in history: mood trends, habit rates,
// sleep patterns, and a combined wellness score.
type AnalyticsHandler struct {
	checkins *store.CheckinStore
	tasks    *store.TaskStore
}

func NewAnalyticsHandler(checkins *store.CheckinStore, tasks *store.TaskStore) *AnalyticsHandler {
	return &AnalyticsHandler{checkins: checkins, tasks: tasks}
}

func (h *AnalyticsHandler) CanHandle(intent string) bool {
	switch intent {
	case command.IntentShowAnalytics, command.IntentMoodTrends, command.IntentHabitAnalysis,
		command.IntentSleepAnalysis, command.IntentWellnessScore,
		command.IntentCheckinHistory, command.IntentCheckinStatus:
		return true
	}
	return false
}

func (h *AnalyticsHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	records, err := h.checkins.Recent(userID, analyticsWindow)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("checkin history load failed")
		return core.NewResponse("I couldn't load your check-in history just now. Please try again.", true)
	}
	if len(records) == 0 {
		return core.NewResponse("You haven't completed any check-ins yet, so there's nothing to analyze. Say `start checkin` to begin!", true)
	}

	switch cmd.Intent {
	case command.IntentShowAnalytics:
		return h.overview(userID, records)
	case command.IntentMoodTrends:
		return h.moodTrends(records)
	case command.IntentHabitAnalysis:
		return h.habits(records)
	case command.IntentSleepAnalysis:
		return h.sleep(records)
	case command.IntentWellnessScore:
		return h.wellness(records)
	case command.IntentCheckinHistory:
		return h.history(records)
	case command.IntentCheckinStatus:
		return h.checkinStatus(userID, records)
	}
	return core.NewResponse("I'm not sure what to do with that analytics request. Try `help`.", true)
}

func (h *AnalyticsHandler) Help() string {
	return "Understand your check-in history: mood trends, habits, sleep, and an overall wellness score."
}

func (h *AnalyticsHandler) Examples() []string {
	return []string{
		"show analytics",
		"mood trends",
		"habit analysis",
		"sleep analysis",
		"wellness score",
	}
}

func (h *AnalyticsHandler) overview(userID string, records []store.CheckinRecord) core.InteractionResponse {
	mood, moodN := averageAnswer(records, "mood")
	sleepHours, sleepN := averageAnswer(records, "sleep_hours")
	score := wellnessScore(records)

	fields := []core.RichField{
		{Name: "Check-ins analyzed", Value: fmt.Sprintf("%d", len(records)), Inline: true},
	}
	parts := []string{fmt.Sprintf("📈 Analytics over your last %d check-ins:", len(records))}
	if moodN > 0 {
		fields = append(fields, core.RichField{Name: "Average mood", Value: fmt.Sprintf("%.1f / 5", mood), Inline: true})
		parts = append(parts, fmt.Sprintf("average mood %.1f/5", mood))
	}
	if sleepN > 0 {
		fields = append(fields, core.RichField{Name: "Average sleep", Value: fmt.Sprintf("%.1f h", sleepHours), Inline: true})
		parts = append(parts, fmt.Sprintf("average sleep %.1fh", sleepHours))
	}
	fields = append(fields, core.RichField{Name: "Wellness score", Value: fmt.Sprintf("%d / 100", score), Inline: true})
	parts = append(parts, fmt.Sprintf("wellness score %d/100", score))

	rich := &core.RichPayload{
		Title:  "Wellness Analytics",
		Type:   core.RichTypeAnalytics,
		Fields: fields,
		Footer: "Try `mood trends`, `habit analysis`, or `sleep analysis` for detail",
	}
	return core.NewResponse(strings.Join(parts, " "), true).WithRich(rich)
}

func (h *AnalyticsHandler) moodTrends(records []store.CheckinRecord) core.InteractionResponse {
	values := answerSeries(records, "mood")
	if len(values) == 0 {
		return core.NewResponse("None of your recent check-ins recorded a mood score yet.", true)
	}

	avg := mean(values)
	direction := trendDirection(values)
	msg := fmt.Sprintf("🙂 Mood over your last %d check-ins: average %.1f/5, trend %s.", len(values), avg, direction)

	rich := &core.RichPayload{
		Title: "Mood Trends",
		Type:  core.RichTypeAnalytics,
		Fields: []core.RichField{
			{Name: "Average", Value: fmt.Sprintf("%.1f / 5", avg), Inline: true},
			{Name: "Trend", Value: direction, Inline: true},
			{Name: "Samples", Value: fmt.Sprintf("%d", len(values)), Inline: true},
		},
	}
	return core.NewResponse(msg, true).WithRich(rich)
}

func (h *AnalyticsHandler) habits(records []store.CheckinRecord) core.InteractionResponse {
	fields := make([]core.RichField, 0, len(habitKeys))
	var lines []string
	for _, key := range habitKeys {
		yes, total := yesRate(records, key)
		if total == 0 {
			continue
		}
		rate := int(math.Round(float64(yes) / float64(total) * 100))
		label := strings.ReplaceAll(key, "_", " ")
		fields = append(fields, core.RichField{Name: label, Value: fmt.Sprintf("%d%% (%d/%d)", rate, yes, total), Inline: true})
		lines = append(lines, fmt.Sprintf("%s %d%%", label, rate))
	}
	if len(fields) == 0 {
		return core.NewResponse("Your recent check-ins don't include any habit questions yet.", true)
	}

	rich := &core.RichPayload{
		Title:  "Habit Analysis",
		Type:   core.RichTypeAnalytics,
		Fields: fields,
		Footer: fmt.Sprintf("Based on your last %d check-ins", len(records)),
	}
	return core.NewResponse("💪 Habit rates: "+strings.Join(lines, ", ")+".", true).WithRich(rich)
}

func (h *AnalyticsHandler) sleep(records []store.CheckinRecord) core.InteractionResponse {
	hours := answerSeries(records, "sleep_hours")
	quality := answerSeries(records, "sleep_quality")
	if len(hours) == 0 && len(quality) == 0 {
		return core.NewResponse("Your recent check-ins don't include sleep questions yet.", true)
	}

	fields := make([]core.RichField, 0, 3)
	var parts []string
	if len(hours) > 0 {
		avg := mean(hours)
		fields = append(fields, core.RichField{Name: "Average hours", Value: fmt.Sprintf("%.1f", avg), Inline: true})
		parts = append(parts, fmt.Sprintf("averaging %.1f hours", avg))
		if avg < 6 {
			parts = append(parts, "that's on the low side")
		}
	}
	if len(quality) > 0 {
		avg := mean(quality)
		fields = append(fields, core.RichField{Name: "Average quality", Value: fmt.Sprintf("%.1f / 5", avg), Inline: true})
		parts = append(parts, fmt.Sprintf("quality %.1f/5", avg))
	}

	rich := &core.RichPayload{
		Title:  "Sleep Analysis",
		Type:   core.RichTypeAnalytics,
		Fields: fields,
		Footer: fmt.Sprintf("Based on your last %d check-ins", len(records)),
	}
	return core.NewResponse("😴 Sleep: "+strings.Join(parts, ", ")+".", true).WithRich(rich)
}

func (h *AnalyticsHandler) wellness(records []store.CheckinRecord) core.InteractionResponse {
	score := wellnessScore(records)
	var note string
	switch {
	case score >= 75:
		note = "You're doing great, keep it up!"
	case score >= 50:
		note = "Solid overall. A little more rest or movement could nudge it higher."
	default:
		note = "Things look tough lately. Small steps count, and I'm here to help."
	}
	msg := fmt.Sprintf("🌟 Your wellness score is %d/100. %s", score, note)

	rich := &core.RichPayload{
		Title:       "Wellness Score",
		Description: note,
		Type:        core.RichTypeAnalytics,
		Fields: []core.RichField{
			{Name: "Score", Value: fmt.Sprintf("%d / 100", score), Inline: true},
			{Name: "Check-ins analyzed", Value: fmt.Sprintf("%d", len(records)), Inline: true},
		},
	}
	return core.NewResponse(msg, true).WithRich(rich)
}

func (h *AnalyticsHandler) history(records []store.CheckinRecord) core.InteractionResponse {
	shown := records
	if len(shown) > 5 {
		shown = shown[:5]
	}

	var b strings.Builder
	b.WriteString("📔 Your recent check-ins:\n")
	for _, r := range shown {
		b.WriteString(fmt.Sprintf("%s: %s\n", r.CreatedAt.Format("Jan 2"), summarizeRecord(r)))
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true)
}

func (h *AnalyticsHandler) checkinStatus(userID string, records []store.CheckinRecord) core.InteractionResponse {
	count, err := h.checkins.Count(userID)
	if err != nil {
		count = int64(len(records))
	}
	last := records[0].CreatedAt
	return core.NewResponse(fmt.Sprintf("You've completed %d check-ins. The last one was %s.", count, last.Format("Jan 2 at 3:04 PM")), true)
}

func summarizeRecord(r store.CheckinRecord) string {
	var parts []string
	if mood := r.Answer("mood"); mood.Exists() && mood.Type == gjson.Number {
		parts = append(parts, fmt.Sprintf("mood %s/5", mood.Raw))
	}
	if sleep := r.Answer("sleep_hours"); sleep.Exists() && sleep.Type == gjson.Number {
		parts = append(parts, fmt.Sprintf("slept %sh", sleep.Raw))
	}
	if len(parts) == 0 {
		asked := r.QuestionsAsked()
		return fmt.Sprintf("%d questions answered", len(asked))
	}
	return strings.Join(parts, ", ")
}

// answerSeries collects numeric answers for a question key, oldest first.
// Skipped and missing answers are left out.
func answerSeries(records []store.CheckinRecord, key string) []float64 {
	values := make([]float64, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if v := records[i].Answer(key); v.Exists() && v.Type == gjson.Number {
			values = append(values, v.Float())
		}
	}
	return values
}

func averageAnswer(records []store.CheckinRecord, key string) (float64, int) {
	values := answerSeries(records, key)
	if len(values) == 0 {
		return 0, 0
	}
	return mean(values), len(values)
}

func yesRate(records []store.CheckinRecord, key string) (yes, total int) {
	for _, r := range records {
		v := r.Answer(key)
		if !v.Exists() || v.Type != gjson.True && v.Type != gjson.False {
			continue
		}
		total++
		if v.Bool() {
			yes++
		}
	}
	return yes, total
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// trendDirection compares the early half of a series against the late half.
func trendDirection(values []float64) string {
	if len(values) < 4 {
		return "steady"
	}
	half := len(values) / 2
	early := mean(values[:half])
	late := mean(values[half:])
	switch {
	case late-early > 0.3:
		return "improving"
	case early-late > 0.3:
		return "declining"
	default:
		return "steady"
	}
}

// wellnessScore blends mood (40%), habits (30%) and sleep (30%) into 0-100.
// Components without data fall back to a neutral 50.
func wellnessScore(records []store.CheckinRecord) int {
	moodComponent := 50.0
	if avg, n := averageAnswer(records, "mood"); n > 0 {
		moodComponent = (avg - 1) / 4 * 100
	}

	habitComponent := 50.0
	var yesTotal, habitTotal int
	for _, key := range habitKeys {
		yes, total := yesRate(records, key)
		yesTotal += yes
		habitTotal += total
	}
	if habitTotal > 0 {
		habitComponent = float64(yesTotal) / float64(habitTotal) * 100
	}

	sleepComponent := 50.0
	if avg, n := averageAnswer(records, "sleep_hours"); n > 0 {
		// 8 hours scores full marks, scaled linearly and capped.
		sleepComponent = math.Min(avg/8, 1) * 100
	}

	score := moodComponent*0.4 + habitComponent*0.3 + sleepComponent*0.3
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
