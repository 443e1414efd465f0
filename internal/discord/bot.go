// Package discord owns the live provider connection: a single worker drains
// a bounded command queue for outbound sends, gateway events feed the message
// core in reception order, and a state machine plus health prober keep the
// connection observable.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/identity"
	"github.com/Jacfogel/MHM-sub009/internal/obs/otel"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
	defaultTick        = 100 * time.Millisecond
	defaultReadyBudget = 60 * time.Second

	workerJoinTimeout = 10 * time.Second
	handlerGrace      = 2 * time.Second
)

// Pipeline is the message-processing entry the adapter feeds inbound text to.
type Pipeline interface {
	Handle(userID, message string, channel core.ChannelKind) core.InteractionResponse
}

// AccountDirectory maps internal user ids to provider ids for the
// "user:<internal>" recipient form.
type AccountDirectory interface {
	ProviderID(internalID string) (string, error)
}

// FlowExpirer drops an active check-in before an unrelated outbound reaches
// the user.
type FlowExpirer interface {
	ExpireCheckinDueToUnrelatedOutbound(userID string)
}

// session is the slice of the provider client the adapter drives.
// *discordgo.Session satisfies it.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	HeartbeatLatency() time.Duration
}

// Config carries the adapter settings.
type Config struct {
	Token string
	AppID string

	QueueSize            int
	SendTimeout          time.Duration
	Tick                 time.Duration
	ReadyBudget          time.Duration
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.ReadyBudget <= 0 {
		c.ReadyBudget = defaultReadyBudget
	}
}

type commandKind int

const (
	cmdSend commandKind = iota
	cmdStop
)

// workerCommand is the tagged union crossing from the core to the worker.
type workerCommand struct {
	kind        commandKind
	seq         uint64
	recipient   string
	text        string
	rich        *core.RichPayload
	suggestions []string
	view        []discordgo.MessageComponent
}

type sendResult struct {
	seq uint64
	ok  bool
}

// Bot runs the provider connection and bridges it to the message core.
type Bot struct {
	cfg      Config
	session  session
	pipeline Pipeline
	accounts AccountDirectory
	bridge   *identity.Bridge
	expirer  FlowExpirer
	tracker  *otel.MessageTracker

	state  *ConnState
	health *HealthChecker

	commands chan workerCommand
	results  chan sendResult
	seq      atomic.Uint64
	sendMu   sync.Mutex

	ready         chan struct{}
	readyOnce     sync.Once
	stopped       chan struct{}
	quit          chan struct{}
	stopOnce      sync.Once
	workerStarted atomic.Bool
	inflight      sync.WaitGroup
}

// NewBot creates the adapter around a fresh provider session. The session is
// not opened until Start.
func NewBot(cfg Config, pipeline Pipeline, accounts AccountDirectory) (*Bot, error) {
	b := newBot(cfg, nil, pipeline, accounts)

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return b, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	// Handlers must run in arrival order so the core sees inbound messages
	// the way users sent them.
	s.SyncEvents = true
	b.session = s
	return b, nil
}

func newBot(cfg Config, s session, pipeline Pipeline, accounts AccountDirectory) *Bot {
	cfg.applyDefaults()
	state := NewConnState()
	if cfg.MaxReconnectAttempts > 0 {
		state.maxAttempts = cfg.MaxReconnectAttempts
	}
	return &Bot{
		cfg:      cfg,
		session:  s,
		pipeline: pipeline,
		accounts: accounts,
		state:    state,
		health:   NewHealthChecker(state),
		commands: make(chan workerCommand, cfg.QueueSize),
		results:  make(chan sendResult, cfg.QueueSize),
		ready:    make(chan struct{}),
		stopped:  make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

// SetBridge wires the identity bridge. The bot is also the bridge's welcome
// messenger, so the two are connected after construction.
func (b *Bot) SetBridge(bridge *identity.Bridge) {
	b.bridge = bridge
}

// SetFlowExpirer wires the check-in expiry hook for unrelated outbounds.
func (b *Bot) SetFlowExpirer(expirer FlowExpirer) {
	b.expirer = expirer
}

// SetTracker wires message metrics. A nil tracker records nothing.
func (b *Bot) SetTracker(tracker *otel.MessageTracker) {
	b.tracker = tracker
}

// Start probes the network, opens the gateway, and waits for the ready event
// within the startup budget.
func (b *Bot) Start() error {
	b.state.Set(core.StatusInitializing)

	if b.session == nil {
		b.state.Set(core.StatusAuthFailure)
		return fmt.Errorf("discord: bot token not configured")
	}
	if !b.health.CheckDNS(b.health.hostname) {
		b.state.Set(core.StatusDNSFailure)
		logrus.WithError(core.NewDNSFailedError(core.ChannelDiscord, b.health.hostname, nil)).Error("startup aborted")
		return fmt.Errorf("discord: DNS probe failed")
	}
	if !b.health.CheckTCP() {
		b.state.Set(core.StatusNetworkFailure)
		logrus.WithError(core.NewNetworkUnreachableError(core.ChannelDiscord, b.health.hostname, nil)).Error("startup aborted")
		return fmt.Errorf("discord: network probe failed")
	}

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onDisconnect)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)
	b.state.MarkEventsRegistered()

	if err := b.session.Open(); err != nil {
		if isAuthError(err) {
			b.state.Set(core.StatusAuthFailure)
			logrus.WithError(core.NewAuthFailedError(core.ChannelDiscord, "gateway rejected the token", err)).Error("gateway open failed")
		} else {
			b.state.Set(core.StatusGatewayError)
			logrus.WithError(core.NewConnectionFailedError(core.ChannelDiscord, err.Error(), true).WithCause(err)).Error("gateway open failed")
		}
		return fmt.Errorf("open gateway: %w", err)
	}

	b.workerStarted.Store(true)
	go b.worker()

	select {
	case <-b.ready:
		b.state.Set(core.StatusConnected)
		return nil
	case <-time.After(b.cfg.ReadyBudget):
		b.state.Set(core.StatusGatewayError)
		return fmt.Errorf("discord: ready not seen within %s", b.cfg.ReadyBudget)
	}
}

// Stop shuts the adapter down. Safe after partial initialization and always
// leaves the status STOPPED.
func (b *Bot) Stop() {
	b.stopOnce.Do(b.stop)
}

func (b *Bot) stop() {
	defer b.state.Set(core.StatusStopped)

	if b.workerStarted.Load() {
		select {
		case b.commands <- workerCommand{kind: cmdStop}:
		default:
			close(b.quit)
		}
		select {
		case <-b.stopped:
		case <-time.After(workerJoinTimeout):
			logrus.Warn("adapter worker did not stop within its deadline")
		}
	}

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(handlerGrace):
		logrus.Warn("abandoning in-flight handlers after grace period")
	}

	if b.session != nil {
		if err := b.session.Close(); err != nil {
			logrus.WithError(err).Warn("gateway close failed")
		}
	}
}

// Send delivers one message through the worker queue. It blocks until the
// worker reports the outcome or the send timeout lapses; a timed-out send is
// not rolled back, its eventual result is discarded by the next waiter.
func (b *Bot) Send(recipient, text string, rich *core.RichPayload, suggestions []string) bool {
	return b.send(workerCommand{kind: cmdSend, recipient: recipient, text: text, rich: rich, suggestions: suggestions})
}

// SendNotification delivers a core-initiated message to a user's DM. An
// unrelated outbound silently drops any active check-in first, so the user
// never answers a question that is no longer pending.
func (b *Bot) SendNotification(userID, text string, rich *core.RichPayload, suggestions []string) bool {
	if b.expirer != nil {
		b.expirer.ExpireCheckinDueToUnrelatedOutbound(userID)
	}
	return b.Send("user:"+userID, text, rich, suggestions)
}

// SendDirect delivers welcome text straight to a provider id, before any
// account mapping exists. Part of the identity bridge's messenger contract.
func (b *Bot) SendDirect(externalID, text string) bool {
	return b.send(workerCommand{kind: cmdSend, recipient: "direct:" + externalID, text: text, view: welcomeRow()})
}

// SendChannel delivers welcome text to the channel a stranger wrote in, used
// when their DMs are closed.
func (b *Bot) SendChannel(channelID, text string) bool {
	return b.send(workerCommand{kind: cmdSend, recipient: channelID, text: text, view: welcomeRow()})
}

func (b *Bot) send(cmd workerCommand) bool {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	cmd.seq = b.seq.Add(1)

	timer := time.NewTimer(b.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case b.commands <- cmd:
	case <-b.stopped:
		return false
	case <-timer.C:
		return false
	}

	for {
		select {
		case res := <-b.results:
			if res.seq == cmd.seq {
				return res.ok
			}
			// Leftover from a send whose caller timed out. Discard and
			// keep waiting for our own result.
		case <-b.stopped:
			return false
		case <-timer.C:
			logrus.WithError(core.NewTimeoutError(core.ChannelDiscord, "send", int(b.cfg.SendTimeout.Milliseconds()))).Warn("send timed out")
			return false
		}
	}
}

// ManualReconnect tears the gateway session down and reopens it. Gated by
// the reconnect budget, the cooldown, and a fresh health pass.
func (b *Bot) ManualReconnect() error {
	if b.session == nil {
		return fmt.Errorf("discord: no session to reconnect")
	}
	if !b.state.ShouldReconnect(b.health.CheckNow) {
		return fmt.Errorf("discord: reconnection gated after %d attempts", b.state.Attempts())
	}
	b.state.RecordAttempt()

	if err := b.session.Close(); err != nil {
		logrus.WithError(err).Debug("close before reconnect failed")
	}
	if err := b.session.Open(); err != nil {
		b.state.Set(core.StatusGatewayError)
		return fmt.Errorf("reopen gateway: %w", err)
	}
	return nil
}

// Snapshot returns the connection state for the status surfaces.
func (b *Bot) Snapshot() core.ConnectionSnapshot {
	return b.state.Snapshot()
}

func (b *Bot) worker() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if b.drain() {
				return
			}
			b.observeHealth()
		case <-b.quit:
			return
		}
	}
}

// drain empties the command queue without blocking. Returns true when Stop
// was dequeued.
func (b *Bot) drain() bool {
	for {
		select {
		case cmd := <-b.commands:
			if cmd.kind == cmdStop {
				return true
			}
			ok := b.deliver(cmd)
			b.pushResult(sendResult{seq: cmd.seq, ok: ok})
		default:
			return false
		}
	}
}

// pushResult never blocks the worker: when the result queue is full every
// waiter for the queued results has long timed out, so the oldest is shed.
func (b *Bot) pushResult(res sendResult) {
	for {
		select {
		case b.results <- res:
			return
		default:
			select {
			case <-b.results:
			default:
			}
		}
	}
}

func (b *Bot) deliver(cmd workerCommand) bool {
	start := time.Now()
	ok := b.deliverMessage(cmd)

	status := "success"
	if !ok {
		status = "failure"
	}
	b.tracker.RecordSend(context.Background(), outboundKind(cmd.recipient), status,
		float64(time.Since(start).Milliseconds()))
	return ok
}

func (b *Bot) deliverMessage(cmd workerCommand) bool {
	channelID, ok := b.resolveRecipient(cmd.recipient)
	if !ok {
		return false
	}
	_, err := b.session.ChannelMessageSendComplex(channelID, buildMessage(cmd.text, cmd.rich, cmd.suggestions, cmd.view))
	if err != nil {
		var rl *discordgo.RateLimitError
		if errors.As(err, &rl) {
			logrus.WithError(core.NewRateLimitedError(core.ChannelDiscord, int(rl.RetryAfter.Seconds()))).Warn("message send rate limited")
		} else {
			logrus.WithError(core.NewSendFailedError(core.ChannelDiscord, cmd.recipient, err)).Warn("message send failed")
		}
		return false
	}
	return true
}

// outboundKind labels the send for metrics by its recipient form.
func outboundKind(recipient string) string {
	switch kind, _ := splitRecipient(recipient); kind {
	case recipientUser:
		return "notification"
	case recipientDirect:
		return "welcome"
	default:
		return "reply"
	}
}

func (b *Bot) resolveRecipient(recipient string) (string, bool) {
	kind, id := splitRecipient(recipient)
	switch kind {
	case recipientUser:
		if b.accounts == nil {
			return "", false
		}
		providerID, err := b.accounts.ProviderID(id)
		if err != nil {
			logrus.WithError(core.NewInvalidTargetError(core.ChannelDiscord, recipient, "no provider identity")).Warn("recipient unresolvable")
			return "", false
		}
		return b.dmChannel(providerID)
	case recipientDirect:
		return b.dmChannel(id)
	default:
		if id == "" {
			return "", false
		}
		return id, true
	}
}

func (b *Bot) dmChannel(providerID string) (string, bool) {
	ch, err := b.session.UserChannelCreate(providerID)
	if err != nil {
		logrus.WithError(err).WithField("provider_id", providerID).Warn("DM channel unavailable")
		return "", false
	}
	return ch.ID, true
}

// observeHealth runs the rate-limited probe and feeds the verdict back into
// the state machine. Only a fresh probe may act, so the cached window never
// spams transitions or latency warnings.
func (b *Bot) observeHealth() {
	switch b.state.Status() {
	case core.StatusConnected, core.StatusDisconnected, core.StatusDNSFailure,
		core.StatusNetworkFailure, core.StatusGatewayError:
	default:
		return
	}

	ok, fresh := b.health.Tick()
	if !fresh || !ok {
		return
	}

	if latency := b.session.HeartbeatLatency(); latency > time.Second {
		b.state.SetDiagnostic("high_latency", true)
		logrus.WithField("latency", latency.String()).Warn("gateway latency is high")
	} else {
		b.state.SetDiagnostic("high_latency", false)
	}
	b.state.Set(core.StatusConnected)
}

func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	b.state.MarkReady()
	b.state.Set(core.StatusConnected)
	b.readyOnce.Do(func() { close(b.ready) })
	if event.User != nil {
		logrus.WithField("username", event.User.Username).Info("gateway ready")
	}
	b.registerCommands()
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	if b.state.Status() == core.StatusConnected {
		b.state.Set(core.StatusDisconnected)
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot {
		return
	}

	b.inflight.Add(1)
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("inbound handler panicked")
		}
	}()

	b.tracker.RecordInbound(context.Background(), string(core.ChannelDiscord))

	in := identity.Inbound{
		Channel:     core.ChannelDiscord,
		ExternalID:  event.Author.ID,
		ChannelID:   event.ChannelID,
		DisplayName: authorName(event.Author),
		IsDM:        event.GuildID == "",
	}

	userID := in.ExternalID
	if b.bridge != nil {
		id, proceed := b.bridge.Resolve(in)
		if !proceed {
			return
		}
		userID = id
	}

	resp := b.pipeline.Handle(userID, event.Content, core.ChannelDiscord)
	b.reply(event.ChannelID, resp)
}

// reply rides the worker queue like every other outbound so send ordering
// holds across reply and notification traffic.
func (b *Bot) reply(channelID string, resp core.InteractionResponse) {
	if resp.Message == "" && resp.Rich == nil {
		return
	}
	b.Send(channelID, resp.Message, resp.Rich, resp.Suggestions)
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, event *discordgo.InteractionCreate) {
	b.inflight.Add(1)
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("interaction handler panicked")
		}
	}()

	switch event.Type {
	case discordgo.InteractionMessageComponent:
		b.handleComponent(event)
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(event)
	}
}

func (b *Bot) handleComponent(event *discordgo.InteractionCreate) {
	customID := event.MessageComponentData().CustomID
	in, ok := inboundFromInteraction(event)
	if !ok {
		return
	}

	switch {
	case strings.HasPrefix(customID, "welcome_create_"):
		if b.bridge == nil {
			return
		}
		if _, err := b.bridge.Onboard(in); err != nil {
			logrus.WithError(err).Warn("welcome onboarding failed")
			b.respondText(event, "Something went wrong setting up your space. Please try again.", true)
			return
		}
		b.respondText(event, "✅ Your space is ready. Say `help` anytime to look around.", true)

	case strings.HasPrefix(customID, "welcome_link_"):
		if b.bridge == nil {
			return
		}
		if _, err := b.bridge.Onboard(in); err != nil {
			logrus.WithError(err).Warn("welcome linking failed")
			b.respondText(event, "Something went wrong linking your account. Please try again.", true)
			return
		}
		b.respondText(event, "🔗 This Discord account is linked. Say `help` to pick up where you left off.", true)

	case strings.HasPrefix(customID, "suggestion_"):
		label, found := suggestionLabel(event.Message, customID)
		if !found {
			b.respondText(event, "That button has expired. Type the command instead.", true)
			return
		}
		userID := in.ExternalID
		if b.bridge != nil {
			id, proceed := b.bridge.Resolve(in)
			if !proceed {
				b.respondText(event, "👋 Check your DMs, I've sent you everything to get started.", true)
				return
			}
			userID = id
		}
		b.respondInteraction(event, b.pipeline.Handle(userID, label, core.ChannelDiscord))

	case strings.HasPrefix(customID, "checkin_"), strings.HasPrefix(customID, "task_"):
		// Owned by the view attached to the originating message.
		logrus.WithField("custom_id", customID).Debug("component interaction passed through")

	default:
		logrus.WithField("custom_id", customID).Debug("unhandled component interaction")
	}
}

func (b *Bot) handleSlash(event *discordgo.InteractionCreate) {
	name := event.ApplicationCommandData().Name
	def, ok := command.ByName(name)
	if !ok {
		b.respondText(event, "Unknown command. Try `/help`.", true)
		return
	}
	in, okIn := inboundFromInteraction(event)
	if !okIn {
		return
	}

	if b.bridge != nil && !b.bridge.Known(in.ExternalID) && def.Name == "start" {
		if _, err := b.bridge.WelcomeExplicit(in); err != nil {
			logrus.WithError(err).Warn("explicit welcome failed")
			b.respondText(event, "I'm having trouble right now. Please try again in a moment.", true)
			return
		}
		b.respondText(event, "👋 I've sent you everything you need to get started. Check your DMs!", true)
		return
	}

	userID := in.ExternalID
	if b.bridge != nil {
		id, err := b.bridge.ResolveForCommand(in)
		if err != nil {
			logrus.WithError(err).Warn("slash command identity resolution failed")
			b.respondText(event, "I'm having trouble right now. Please try again in a moment.", true)
			return
		}
		userID = id
	}

	b.respondInteraction(event, b.pipeline.Handle(userID, def.MappedMessage, core.ChannelDiscord))
}

func (b *Bot) respondInteraction(event *discordgo.InteractionCreate, resp core.InteractionResponse) {
	data := &discordgo.InteractionResponseData{Content: resp.Message}
	if embed := buildEmbed(resp.Rich); embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}
	data.Components = buildSuggestionRow(resp.Suggestions)

	err := b.session.InteractionRespond(event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		logrus.WithError(err).Warn("interaction response failed")
	}
}

func (b *Bot) respondText(event *discordgo.InteractionCreate, text string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		logrus.WithError(err).Warn("interaction response failed")
	}
}

func (b *Bot) registerCommands() {
	if b.cfg.AppID == "" {
		logrus.Debug("application id not configured, slash commands not registered")
		return
	}
	defs := command.Definitions()
	cmds := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
		})
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.cfg.AppID, "", cmds); err != nil {
		logrus.WithError(err).Error("slash command registration failed")
		return
	}
	b.state.MarkCommandsRegistered()
}

func inboundFromInteraction(event *discordgo.InteractionCreate) (identity.Inbound, bool) {
	user := interactionUser(event)
	if user == nil {
		return identity.Inbound{}, false
	}
	return identity.Inbound{
		Channel:     core.ChannelDiscord,
		ExternalID:  user.ID,
		ChannelID:   event.ChannelID,
		DisplayName: authorName(user),
		IsDM:        event.GuildID == "",
	}, true
}

func interactionUser(event *discordgo.InteractionCreate) *discordgo.User {
	if event.Member != nil && event.Member.User != nil {
		return event.Member.User
	}
	return event.User
}

func authorName(user *discordgo.User) string {
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

func isAuthError(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "authentication") ||
		strings.Contains(text, "unauthorized") ||
		strings.Contains(text, "4004")
}
