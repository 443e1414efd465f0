// Package identity maps provider identities to internal accounts and owns
// the one-time welcome for strangers.
package identity

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// Messenger delivers welcome text. Implementations return false when the
// recipient could not be reached.
type Messenger interface {
	SendDirect(externalID, text string) bool
	SendChannel(channelID, text string) bool
}

// WelcomeKind selects the welcome template.
type WelcomeKind int

const (
	// WelcomeDM greets a stranger whose first contact arrived in a DM.
	WelcomeDM WelcomeKind = iota
	// WelcomeServer greets a stranger whose first contact arrived in a
	// server channel.
	WelcomeServer
	// WelcomeAuthorization greets a user who explicitly asked to start.
	WelcomeAuthorization
)

// Inbound describes the identity facts of one incoming event.
type Inbound struct {
	Channel     core.ChannelKind
	ExternalID  string
	ChannelID   string
	DisplayName string
	IsDM        bool
}

// Bridge resolves inbound identities, creating and welcoming first-time
// senders so every later message maps onto an internal account.
type Bridge struct {
	users  *store.UserStore
	sender Messenger
}

// NewBridge builds the bridge. sender may be nil in contexts that never
// welcome (welcomes are then logged and skipped).
func NewBridge(users *store.UserStore, sender Messenger) *Bridge {
	return &Bridge{users: users, sender: sender}
}

// Resolve maps an inbound message to an internal user id. proceed=false
// means the sender was a stranger: an account was created, the welcome was
// delivered, and this message must not continue into the reply pipeline.
func (b *Bridge) Resolve(in Inbound) (string, bool) {
	user, created, err := b.ensureUser(in)
	if err != nil {
		logrus.WithError(err).WithField("external_id", in.ExternalID).Error("identity resolve failed")
		return "", false
	}
	if !created {
		return user.ID, true
	}

	kind := WelcomeServer
	if in.IsDM {
		kind = WelcomeDM
	}
	b.welcome(in, user, kind, false)
	return user.ID, false
}

// ResolveForCommand is Resolve for application commands: strangers get a
// silent DM welcome and the command still proceeds with the fresh account.
func (b *Bridge) ResolveForCommand(in Inbound) (string, error) {
	user, created, err := b.ensureUser(in)
	if err != nil {
		return "", err
	}
	if created {
		b.welcome(in, user, WelcomeDM, true)
	}
	return user.ID, nil
}

// WelcomeExplicit handles an explicit start request from an unlinked user:
// account creation plus the authorization welcome with channel fallback.
func (b *Bridge) WelcomeExplicit(in Inbound) (string, error) {
	user, _, err := b.ensureUser(in)
	if err != nil {
		return "", err
	}
	b.welcome(in, user, WelcomeAuthorization, false)
	return user.ID, nil
}

// Onboard ensures an account exists for the identity and marks it welcomed.
// Used by the welcome buttons.
func (b *Bridge) Onboard(in Inbound) (string, error) {
	user, _, err := b.ensureUser(in)
	if err != nil {
		return "", err
	}
	if err := b.users.MarkWelcomed(user.ID); err != nil {
		return "", err
	}
	return user.ID, nil
}

// Known reports whether the provider identity already maps to an account.
func (b *Bridge) Known(externalID string) bool {
	_, err := b.users.ByDiscordID(externalID)
	return err == nil
}

// Link attaches a provider identity to an existing account, repairing the
// stored mapping when the provider-side id drifted.
func (b *Bridge) Link(internalID, externalID string) error {
	user, err := b.users.ByID(internalID)
	if err != nil {
		return err
	}
	if user.DiscordID == externalID {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"user_id": internalID,
		"old":     user.DiscordID,
		"new":     externalID,
	}).Info("repairing drifted provider identity")
	return b.users.UpdateDiscordID(internalID, externalID)
}

func (b *Bridge) ensureUser(in Inbound) (*store.User, bool, error) {
	user, err := b.users.ByDiscordID(in.ExternalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, false, err
	}

	name := in.DisplayName
	if name == "" {
		name = "friend"
	}
	user, err = b.users.Create(in.ExternalID, name)
	if err != nil {
		return nil, false, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"external_id": in.ExternalID,
		"channel":     in.Channel,
	}).Info("created account for first-time sender")
	return user, true, nil
}

// welcome composes and delivers the welcome, then marks the account
// welcomed exactly once whatever the delivery outcome. silent suppresses
// the channel fallback.
func (b *Bridge) welcome(in Inbound, user *store.User, kind WelcomeKind, silent bool) {
	if user.WelcomedAt != nil {
		return
	}
	text := welcomeText(kind, user.DisplayName)

	delivered := false
	if b.sender != nil {
		delivered = b.sender.SendDirect(in.ExternalID, text)
		if !delivered && !silent && in.ChannelID != "" {
			delivered = b.sender.SendChannel(in.ChannelID, text)
		}
	}
	if !delivered {
		logrus.WithField("user_id", user.ID).Warn("welcome message could not be delivered")
	}

	if err := b.users.MarkWelcomed(user.ID); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("welcome mark failed")
	}
}

func welcomeText(kind WelcomeKind, name string) string {
	switch kind {
	case WelcomeAuthorization:
		return fmt.Sprintf("👋 Welcome aboard, %s! Your space is ready. Say `start checkin` for your first check-in, or `help` to see everything I can do.", name)
	case WelcomeServer:
		return fmt.Sprintf("👋 Hi %s! I'm your wellness companion. I've set up a private space for you, so send me a direct message and we can get started with `help`.", name)
	default:
		return fmt.Sprintf("👋 Hi %s! I'm your wellness companion. I can track tasks, run daily check-ins, and keep an eye on how you're doing. Say `help` to look around, or `start checkin` to dive in.", name)
	}
}
