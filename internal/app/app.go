// Package app assembles the bot process: configuration, observability,
// storage, the message-processing core, the channel adapter, the webhook
// server, and the scheduler, with one ordered shutdown path.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/ai"
	"github.com/Jacfogel/MHM-sub009/internal/checkin"
	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/config"
	"github.com/Jacfogel/MHM-sub009/internal/conversation"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/discord"
	"github.com/Jacfogel/MHM-sub009/internal/handlers"
	"github.com/Jacfogel/MHM-sub009/internal/identity"
	"github.com/Jacfogel/MHM-sub009/internal/interaction"
	"github.com/Jacfogel/MHM-sub009/internal/obs"
	"github.com/Jacfogel/MHM-sub009/internal/obs/otel"
	"github.com/Jacfogel/MHM-sub009/internal/scheduler"
	"github.com/Jacfogel/MHM-sub009/internal/store"
	"github.com/Jacfogel/MHM-sub009/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component of the bot process.
type App struct {
	cfg *config.AppConfig

	store     *store.Store
	metrics   *otel.MeterSetup
	flows     *conversation.Manager
	pipeline  *interaction.Manager
	bot       *discord.Bot
	webhook   *webhook.Server
	tunnel    *webhook.Tunnel
	scheduler *scheduler.Scheduler
}

// New wires the whole process from configuration. Nothing is started yet;
// Start (or Run) brings the components up in order.
func New(cfg *config.AppConfig) (*App, error) {
	obs.SetupLogging(cfg.LogLevel, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	otelCfg := otel.DefaultConfig()
	otelCfg.Enabled = cfg.MetricsEnabled
	otelCfg.OTLPEndpoint = cfg.MetricsOTLPEndpoint
	metrics, err := otel.NewMeterSetup(context.Background(), otelCfg)
	if err != nil {
		return nil, fmt.Errorf("metrics setup: %w", err)
	}
	a.metrics = metrics

	st, err := store.Open(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	engine, err := checkin.LoadEngine(cfg.CheckinResourceDir(), rng)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load check-in catalog: %w", err)
	}

	states := conversation.NewStateStore(cfg.StatePath())
	inactivity := time.Duration(cfg.CheckinInactivityMinutes) * time.Minute
	a.flows = conversation.NewManager(states, engine, st.Users(), st.Checkins(), st.Tasks(), inactivity, rng)

	parser := command.NewParser(&storeState{tasks: st.Tasks(), users: st.Users(), checkins: st.Checkins()})

	taskHandler := handlers.NewTaskHandler(st.Tasks(), a.flows.StartTaskReminder)
	periods, err := handlers.LoadPeriods(filepath.Join(cfg.ResourcesRoot, "schedule_periods.yaml"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load schedule periods: %w", err)
	}

	status := &statusProxy{}
	registry := handlers.NewRegistry(
		taskHandler,
		handlers.NewProfileHandler(st.Users(), st.Tasks(), st.Checkins()),
		handlers.NewScheduleHandler(st.Users(), periods),
		handlers.NewAnalyticsHandler(st.Checkins(), st.Tasks()),
		handlers.NewMessagesHandler(st.Messages()),
		handlers.NewStatusHandler(status),
	)
	registry.Register(handlers.NewHelpHandler(registry))

	a.pipeline = interaction.NewManager(parser, registry, a.flows, interaction.Options{
		MinConfidence: cfg.MinCommandConfidence,
		MaxAILength:   cfg.AIMaxResponseLength,
	})
	a.pipeline.SetTaskDeletes(taskHandler)
	a.pipeline.SetTracker(metrics.Tracker())
	a.pipeline.RegisterStarter("checkin", a.flows.StartCheckin)
	a.pipeline.RegisterStarter("restart", a.flows.RestartCheckin)
	a.pipeline.RegisterStarter("clear", a.flows.ClearFlows)
	a.flows.SetCommandRunner(a.pipeline.RunCommand)

	a.wireChatbot()

	bot, err := discord.NewBot(discord.Config{
		Token:                cfg.DiscordBotToken,
		AppID:                cfg.DiscordApplicationID,
		SendTimeout:          time.Duration(cfg.SendTimeoutSeconds) * time.Second,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, &loggingPipeline{inner: a.pipeline, messages: st.Messages()}, st.Users())
	if err != nil {
		st.Close()
		return nil, err
	}
	bot.SetBridge(identity.NewBridge(st.Users(), bot))
	bot.SetFlowExpirer(a.flows)
	bot.SetTracker(metrics.Tracker())
	a.bot = bot
	status.set(bot)

	secret := cfg.WebhookSecret
	if secret == "" {
		secret = uuid.NewString()
		logrus.Warn("WEBHOOK_SECRET not set, generated an ephemeral one")
	}
	a.webhook = webhook.NewServer(secret, bot, status)

	if cfg.AutoTunnel && cfg.TunnelCommand != "" {
		a.tunnel = webhook.NewTunnel(cfg.TunnelCommand, cfg.WebhookPort)
	}

	a.scheduler = scheduler.New(st.Tasks(), st.Messages(), bot, a.flows, cfg.ReminderCron)

	return a, nil
}

// wireChatbot attaches the AI collaborator when configured. Failure to build
// the client only disables AI features.
func (a *App) wireChatbot() {
	if !a.cfg.AIEnabled {
		return
	}
	client, err := ai.NewClient(ai.Config{
		APIKey: a.cfg.OpenAIAPIKey,
		Model:  a.cfg.OpenAIModel,
	})
	if err != nil {
		logrus.WithError(err).Warn("AI features disabled")
		return
	}
	client.SetContextProvider(checkinContext(a.store.Checkins()))
	a.pipeline.SetChatbot(client)
}

// Start brings the components up: channel adapter first, then the webhook
// surface, the tunnel, and the scheduler. A failed start leaves the app in a
// state Shutdown can clean up.
func (a *App) Start() error {
	if err := a.bot.Start(); err != nil {
		return fmt.Errorf("start channel adapter: %w", err)
	}

	if err := a.webhook.Start(a.cfg.WebhookPort); err != nil {
		return fmt.Errorf("start webhook server: %w", err)
	}
	if token, err := a.webhook.Tokens().GenerateToken("external"); err == nil {
		logrus.WithField("token", token).Info("webhook notify token issued")
	}

	if a.tunnel != nil {
		if err := a.tunnel.Start(); err != nil {
			logrus.WithError(err).Warn("tunnel did not start")
		}
	}

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	logrus.Info("bot is up")
	return nil
}

// Shutdown tears the process down in order: tunnel, scheduler, channel
// adapter (which always ends STOPPED), webhook server, store, metrics. Safe
// after partial initialization.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.tunnel != nil {
		a.tunnel.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.bot != nil {
		a.bot.Stop()
	}
	if a.webhook != nil {
		if err := a.webhook.Stop(ctx); err != nil {
			logrus.WithError(err).Warn("webhook shutdown failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logrus.WithError(err).Warn("store close failed")
		}
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("metrics shutdown failed")
	}
	logrus.Info("shutdown complete")
}

// Run starts the app and blocks until the context is cancelled, then shuts
// down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		a.Shutdown()
		return err
	}
	<-ctx.Done()
	a.Shutdown()
	return nil
}

// statusProxy lets the status handler and webhook observe the adapter before
// it exists during wiring.
type statusProxy struct {
	bot *discord.Bot
}

func (p *statusProxy) set(bot *discord.Bot) { p.bot = bot }

func (p *statusProxy) Snapshot() core.ConnectionSnapshot {
	if p.bot == nil {
		return core.ConnectionSnapshot{Status: core.StatusUninitialized}
	}
	return p.bot.Snapshot()
}

// loggingPipeline records every reply the pipeline produces so "show
// messages" covers replies as well as notifications.
type loggingPipeline struct {
	inner    discord.Pipeline
	messages *store.MessageStore
}

func (p *loggingPipeline) Handle(userID, message string, channel core.ChannelKind) core.InteractionResponse {
	resp := p.inner.Handle(userID, message, channel)
	if resp.Message != "" {
		if err := p.messages.Append(userID, store.MessageKindReply, resp.Message); err != nil {
			logrus.WithError(err).Debug("reply not recorded")
		}
	}
	return resp
}

// storeState adapts the stores to the parser's user-state queries.
type storeState struct {
	tasks    *store.TaskStore
	users    *store.UserStore
	checkins *store.CheckinStore
}

func (s *storeState) HasActiveTasks(userID string) bool {
	stats, err := s.tasks.Stats(userID)
	return err == nil && stats.Active > 0
}

func (s *storeState) CheckinsEnabled(userID string) bool {
	user, err := s.users.ByID(userID)
	return err == nil && user.CheckinsEnabled
}

func (s *storeState) HasCheckinHistory(userID string) bool {
	count, err := s.checkins.Count(userID)
	return err == nil && count > 0
}

// checkinContext summarizes the latest check-in for the AI collaborator.
func checkinContext(checkins *store.CheckinStore) ai.ContextProvider {
	return func(userID string) string {
		records, err := checkins.Recent(userID, 1)
		if err != nil || len(records) == 0 {
			return ""
		}
		latest := records[0]
		parts := make([]string, 0, 8)
		for _, key := range latest.QuestionsAsked() {
			answer := latest.Answer(key)
			if !answer.Exists() {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", key, answer.String()))
		}
		if len(parts) == 0 {
			return ""
		}
		return fmt.Sprintf("Latest check-in (%s): %s",
			latest.CreatedAt.Format("Jan 2"), strings.Join(parts, ", "))
	}
}
