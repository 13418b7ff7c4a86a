package notify

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tourney/internal/models"
)

// Logging is a Notifier that only writes to the log. It stands in when no
// chat platform is configured.
type Logging struct {
	logger *logrus.Logger
	seq    atomic.Int64
}

func NewLogging(logger *logrus.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) ref() string {
	return fmt.Sprintf("log:%d", l.seq.Add(1))
}

func (l *Logging) Announce(_ context.Context, text, target string) (string, error) {
	l.logger.WithField("target", target).Info(text)
	return l.ref(), nil
}

func (l *Logging) AnnounceRich(_ context.Context, msg RichMessage, target string) (string, error) {
	l.logger.WithField("target", target).Info(msg.Plain())
	return l.ref(), nil
}

func (l *Logging) EditRich(_ context.Context, ref string, msg RichMessage) error {
	l.logger.WithField("ref", ref).Infof("edited: %s", msg.Plain())
	return nil
}

func (l *Logging) CreateMatchChannels(_ context.Context, name string) (models.Channels, error) {
	ch := models.Channels{Text: l.ref(), Voice: l.ref()}
	l.logger.WithFields(logrus.Fields{"text": ch.Text, "voice": ch.Voice}).Infof("opened rooms for %s", name)
	return ch, nil
}

func (l *Logging) TeardownChannels(_ context.Context, ch models.Channels) error {
	l.logger.WithFields(logrus.Fields{"text": ch.Text, "voice": ch.Voice}).Info("closed rooms")
	return nil
}

func (l *Logging) GrantRole(_ context.Context, user, role string) error {
	l.logger.Infof("granted %s to %s", role, user)
	return nil
}

func (l *Logging) RevokeRole(_ context.Context, user, role string) error {
	l.logger.Infof("revoked %s from %s", role, user)
	return nil
}

func (l *Logging) ResolveChannelByID(context.Context, string) error { return nil }

func (l *Logging) ResolveMessageByRef(context.Context, string) error { return nil }

// ResolveUserByID knows no display names, so callers keep the ones they have.
func (l *Logging) ResolveUserByID(_ context.Context, id string) (User, error) {
	return User{ID: id}, nil
}
