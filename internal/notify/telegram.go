package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/tourney/internal/models"
)

// refPrefix marks a Telegram message ref: tg:<chat>:<message>.
const refPrefix = "tg"

// BotAPI is the subset of *tgbotapi.BotAPI the adapter calls.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Telegram implements Notifier on a Telegram group. Telegram has no per-match
// rooms, so a match "room" is a pinned header message in the event chat and
// messages for the match are posted as replies to it. Roles are tracked here
// and announced, since Telegram has no guild roles.
type Telegram struct {
	bot     BotAPI
	chatID  int64
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu    sync.Mutex
	roles map[string]map[string]bool
}

// NewTelegram wraps bot. Sends are throttled to perSecond with a small burst.
func NewTelegram(bot BotAPI, chatID int64, perSecond float64, logger *logrus.Logger) *Telegram {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 3),
		logger:  logger,
		roles:   make(map[string]map[string]bool),
	}
}

// Dial connects to the Bot API with token.
func Dial(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// ChatTarget addresses a whole chat rather than a reply to one message.
func ChatTarget(chat int64) string { return formatRef(chat, 0) }

func formatRef(chat int64, msg int) string {
	return fmt.Sprintf("%s:%d:%d", refPrefix, chat, msg)
}

func parseRef(ref string) (int64, int, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 3 || parts[0] != refPrefix {
		return 0, 0, fmt.Errorf("malformed telegram ref %q", ref)
	}
	chat, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram ref %q: %w", ref, err)
	}
	msg, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed telegram ref %q: %w", ref, err)
	}
	return chat, msg, nil
}

func renderHTML(m RichMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(m.Title))
	for _, l := range m.Lines {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(l))
	}
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "\n<b>%s</b>: %s", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	return b.String()
}

func (t *Telegram) send(ctx context.Context, text, target, parseMode string) (string, error) {
	chat, reply := t.chatID, 0
	if target != "" {
		var err error
		if chat, reply, err = parseRef(target); err != nil {
			return "", err
		}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chat, text)
	msg.ParseMode = parseMode
	msg.ReplyToMessageID = reply
	sent, err := t.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return formatRef(chat, sent.MessageID), nil
}

func (t *Telegram) Announce(ctx context.Context, text, target string) (string, error) {
	return t.send(ctx, html.EscapeString(text), target, tgbotapi.ModeHTML)
}

func (t *Telegram) AnnounceRich(ctx context.Context, msg RichMessage, target string) (string, error) {
	return t.send(ctx, renderHTML(msg), target, tgbotapi.ModeHTML)
}

func (t *Telegram) EditRich(ctx context.Context, ref string, msg RichMessage) error {
	chat, id, err := parseRef(ref)
	if err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chat, id, renderHTML(msg))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// CreateMatchChannels posts and pins the match header. The voice ref stays
// empty.
func (t *Telegram) CreateMatchChannels(ctx context.Context, name string) (models.Channels, error) {
	ref, err := t.send(ctx, "<b>"+html.EscapeString(name)+"</b>", "", tgbotapi.ModeHTML)
	if err != nil {
		return models.Channels{}, err
	}
	chat, id, _ := parseRef(ref)
	if err := t.limiter.Wait(ctx); err != nil {
		return models.Channels{}, err
	}
	pin := tgbotapi.PinChatMessageConfig{ChatID: chat, MessageID: id, DisableNotification: true}
	if _, err := t.bot.Request(pin); err != nil {
		// Leave nothing behind when setup fails half way.
		if _, derr := t.bot.Request(tgbotapi.NewDeleteMessage(chat, id)); derr != nil {
			t.logger.WithError(derr).Warnf("failed to remove header of %s after pin failure", name)
		}
		return models.Channels{}, fmt.Errorf("telegram pin: %w", err)
	}
	return models.Channels{Text: ref}, nil
}

func (t *Telegram) TeardownChannels(ctx context.Context, ch models.Channels) error {
	if ch.Text == "" {
		return nil
	}
	chat, id, err := parseRef(ch.Text)
	if err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.UnpinChatMessageConfig{ChatID: chat, MessageID: id}); err != nil {
		t.logger.WithError(err).Warnf("failed to unpin %s", ch.Text)
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chat, id)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

func (t *Telegram) GrantRole(ctx context.Context, user, role string) error {
	t.mu.Lock()
	if t.roles[user] == nil {
		t.roles[user] = make(map[string]bool)
	}
	had := t.roles[user][role]
	t.roles[user][role] = true
	t.mu.Unlock()

	if had || role != RoleChampion {
		return nil
	}
	u, err := t.ResolveUserByID(ctx, user)
	if err != nil {
		return err
	}
	_, err = t.Announce(ctx, fmt.Sprintf("%s is the champion!", u.Name), "")
	return err
}

func (t *Telegram) RevokeRole(_ context.Context, user, role string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.roles[user], role)
	return nil
}

// HasRole reports whether user holds role.
func (t *Telegram) HasRole(user, role string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roles[user][role]
}

// ResolveChannelByID checks that the chat behind a ref is still reachable.
func (t *Telegram) ResolveChannelByID(ctx context.Context, id string) error {
	chat, _, err := parseRef(id)
	if err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chat}}); err != nil {
		return fmt.Errorf("telegram chat %d: %w", chat, err)
	}
	return nil
}

// ResolveMessageByRef checks the ref is well formed and its chat reachable.
// The Bot API offers no read of a single message, so a deleted message only
// shows up on the next edit.
func (t *Telegram) ResolveMessageByRef(ctx context.Context, ref string) error {
	_, msg, err := parseRef(ref)
	if err != nil {
		return err
	}
	if msg == 0 {
		return fmt.Errorf("telegram ref %q names no message", ref)
	}
	return t.ResolveChannelByID(ctx, ref)
}

func (t *Telegram) ResolveUserByID(ctx context.Context, id string) (User, error) {
	uid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return User{}, fmt.Errorf("telegram user id %q: %w", id, err)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return User{}, err
	}
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: t.chatID, UserID: uid},
	})
	if err != nil {
		return User{}, fmt.Errorf("telegram user %d: %w", uid, err)
	}
	if member.User == nil {
		return User{ID: id, Name: id}, nil
	}
	name := strings.TrimSpace(member.User.FirstName + " " + member.User.LastName)
	if name == "" {
		name = member.User.UserName
	}
	return User{ID: id, Name: name}, nil
}
