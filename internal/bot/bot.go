package bot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/telebot.v3"

	"pointsbot/internal/config"
	"pointsbot/internal/events"
	"pointsbot/internal/ledger"
	"pointsbot/internal/logger"
	"pointsbot/internal/storage"
)

// Bot is the command dispatch collaborator: it resolves chat commands into
// (user, wager, kind) tuples and forwards them to the event registry and
// the points ledger. It never hands raw chat text to the core.
type Bot struct {
	tb        *telebot.Bot
	cfg       *config.Config
	ledger    *ledger.Ledger
	registry  *events.Registry
	messenger *ChatMessenger
}

// New creates the bot and registers its command handlers.
func New(cfg *config.Config, lg *ledger.Ledger, registry *events.Registry) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN not set")
	}

	tb, err := telebot.NewBot(telebot.Settings{
		Token: cfg.BotToken,
		Poller: &telebot.LongPoller{
			Timeout: 10,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		tb:        tb,
		cfg:       cfg,
		ledger:    lg,
		registry:  registry,
		messenger: NewChatMessenger(tb),
	}
	b.register()
	return b, nil
}

// Messenger returns the outbound messaging collaborator backed by this bot.
func (b *Bot) Messenger() events.Messenger {
	return b.messenger
}

// Start begins polling for updates. Blocks until Stop is called.
func (b *Bot) Start() {
	b.tb.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	b.tb.Stop()
}

// usernameOf returns a stable username for a sender. Users without a public
// username get a synthetic one from their Telegram ID.
func usernameOf(sender *telebot.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return "user" + strconv.FormatInt(sender.ID, 10)
}

// getOrCreateUser resolves the sender to a stored user, creating the
// account with the welcome grant on first contact.
func (b *Bot) getOrCreateUser(sender *telebot.User) (*storage.User, error) {
	user, err := storage.GetUserByTelegramID(sender.ID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return storage.CreateUser(sender.ID, usernameOf(sender), sender.FirstName, b.cfg.WelcomeGrant)
}

func (b *Bot) register() {
	b.tb.Handle("/start", func(c telebot.Context) error {
		username := usernameOf(c.Sender())
		logger.Debug(username, "command_start", "")

		user, err := b.getOrCreateUser(c.Sender())
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get or create user: %v", err))
			return c.Send("Error retrieving user data. Please try again.")
		}

		return c.Send(fmt.Sprintf("Welcome, %s! You have %d points.\nUse /heist <wager> or /raffle <wager> to play, /help for all commands.", user.FirstName, user.Balance))
	})

	b.tb.Handle("/help", func(c telebot.Context) error {
		logger.Debug(usernameOf(c.Sender()), "command_help", "")
		helpText := "Available commands:\n\n" +
			"/start - Create your account and receive the welcome grant\n" +
			"/balance - Check your current balance\n" +
			"/history - Your recent point transactions\n" +
			"/top [n] - Leaderboard of top balances\n" +
			"/give <username> <points> - Give points to another user\n" +
			"/heist <wager> - Start or join a bank heist\n" +
			"/raffle <wager> - Start or join a raffle\n" +
			"/help - Show this help message"
		return c.Send(helpText)
	})

	b.tb.Handle("/balance", func(c telebot.Context) error {
		username := usernameOf(c.Sender())
		logger.Debug(username, "command_balance", "")

		user, err := b.getOrCreateUser(c.Sender())
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get user: %v", err))
			return c.Send("Error retrieving user data. Please try again.")
		}
		return c.Send(fmt.Sprintf("%s, you have %d points.", user.Username, user.Balance))
	})

	b.tb.Handle("/history", func(c telebot.Context) error {
		username := usernameOf(c.Sender())
		logger.Debug(username, "command_history", "")

		user, err := b.getOrCreateUser(c.Sender())
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get user: %v", err))
			return c.Send("Error retrieving user data. Please try again.")
		}

		entries, err := storage.GetPointLog(user.Username, 10)
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get point log: %v", err))
			return c.Send("Error retrieving your history. Please try again.")
		}
		if len(entries) == 0 {
			return c.Send("No point transactions yet.")
		}

		text := "Your recent transactions:\n"
		for _, e := range entries {
			text += fmt.Sprintf("\n%s: %+d (%s)", e.CreatedAt.Format("Jan 2 15:04"), e.Delta, e.EventType)
		}
		return c.Send(text)
	})

	b.tb.Handle("/top", func(c telebot.Context) error {
		username := usernameOf(c.Sender())
		logger.Debug(username, "command_top", "")

		count := 10
		if args := c.Args(); len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				count = n
				if count > 25 {
					count = 25
				}
			}
		}

		top, err := b.ledger.GetTopByBalance(count)
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get leaderboard: %v", err))
			return c.Send("Error retrieving the leaderboard. Please try again.")
		}
		if len(top) == 0 {
			return c.Send("Nobody has any points yet.")
		}

		text := "Users with top points are: "
		for i, e := range top {
			if i > 0 {
				text += " / "
			}
			text += fmt.Sprintf("%d. %s: %d", i+1, e.Username, e.Balance)
		}
		return c.Send(text)
	})

	b.tb.Handle("/give", func(c telebot.Context) error {
		username := usernameOf(c.Sender())
		logger.Debug(username, "command_give", "")

		args := c.Args()
		if len(args) < 2 {
			return c.Send(fmt.Sprintf("%s, usage: /give <username> <points>", username))
		}
		target := args[0]
		points, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || points <= 0 {
			return c.Send(fmt.Sprintf("%s, the number of points has to be a positive whole number.", username))
		}
		if target == username {
			return c.Send(fmt.Sprintf("%s, you can't give points to yourself.", username))
		}

		user, err := b.getOrCreateUser(c.Sender())
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get user: %v", err))
			return c.Send("Error retrieving user data. Please try again.")
		}
		if user.Balance < points {
			return c.Send(fmt.Sprintf("%s, you don't have enough points for that.", username))
		}

		targetUser, err := storage.GetUserByUsername(target)
		if err != nil {
			logger.Debug(username, "error", fmt.Sprintf("failed to get target user: %v", err))
			return c.Send("Error retrieving user data. Please try again.")
		}
		if targetUser == nil {
			return c.Send(fmt.Sprintf("Sorry, I don't know %s yet.", target))
		}

		if _, err := b.ledger.ChangeBalance(user.Username, -points, storage.LogTypeGive); err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return c.Send(fmt.Sprintf("%s, you don't have enough points for that.", username))
			}
			logger.Debug(username, "give_debit_failed", err.Error())
			return c.Send("Error transferring points. Please try again.")
		}
		if _, err := b.ledger.ChangeBalance(targetUser.Username, points, storage.LogTypeGive); err != nil {
			logger.Debug(username, "give_credit_failed", err.Error())
			return c.Send("Error transferring points. Please try again.")
		}

		logger.Debug(username, "points_given", fmt.Sprintf("target=%s points=%d", target, points))
		return c.Send(fmt.Sprintf("%s gave %d points to %s!", username, points, target))
	})

	b.tb.Handle("/heist", func(c telebot.Context) error {
		return b.handleWagerCommand(c, events.KindBankheist)
	})

	b.tb.Handle("/raffle", func(c telebot.Context) error {
		return b.handleWagerCommand(c, events.KindRaffle)
	})
}

// handleWagerCommand is the shared join-or-start flow for wager events: if
// an event of the kind is open the sender joins it, otherwise a new one is
// started with the sender as the first participant.
func (b *Bot) handleWagerCommand(c telebot.Context, kind events.Kind) error {
	username := usernameOf(c.Sender())
	logger.Debug(username, "command_wager", "kind="+string(kind))

	args := c.Args()
	if len(args) < 1 {
		return c.Send(fmt.Sprintf("%s, how much do you want to wager?", username))
	}
	wager, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send(fmt.Sprintf("%s, your wager has to be a whole number of points.", username))
	}

	participant, err := events.NewParticipant(username, wager)
	if err != nil {
		return c.Send(fmt.Sprintf("%s, your wager needs to be more than that.", username))
	}

	user, err := b.getOrCreateUser(c.Sender())
	if err != nil {
		logger.Debug(username, "error", fmt.Sprintf("failed to get user: %v", err))
		return c.Send("Error retrieving user data. Please try again.")
	}

	// Early funds check to avoid starting an event the initiator cannot
	// afford; the ledger re-checks atomically at reservation time.
	if user.Balance < wager {
		return c.Send(fmt.Sprintf("%s, you do not have enough points to wager that much!", username))
	}

	// Event in progress? Join the existing one.
	for _, ev := range b.registry.Live(kind) {
		if ev.State() != events.StateOpen {
			continue
		}
		joined, err := ev.AddParticipant(participant)
		if err != nil {
			return b.sendJoinError(c, username, kind, err)
		}
		if !joined {
			return c.Send(fmt.Sprintf("%s, you already joined the %s!", username, kind))
		}
		return nil
	}

	ev := b.newEvent(kind, c.Chat().ID)
	rejection, err := b.registry.StartEvent(ev, participant)
	if err != nil {
		return b.sendJoinError(c, username, kind, err)
	}
	if rejection != "" {
		return c.Send(rejection)
	}
	return c.Send(fmt.Sprintf("%s started a %s! Join with the same command within %s.", username, kind, ev.Deadline().Sub(ev.CreatedAt()).Round(time.Second)))
}

// newEvent builds an event of the requested kind for the given chat.
func (b *Bot) newEvent(kind events.Kind, chatID int64) *events.Event {
	cfg := events.Config{
		Ledger:      b.ledger,
		Messenger:   b.messenger,
		Destination: strconv.FormatInt(chatID, 10),
	}
	switch kind {
	case events.KindRaffle:
		cfg.OpenFor = b.cfg.RaffleOpenFor
		return events.NewRaffle(time.Now().UnixNano(), cfg)
	default:
		cfg.OpenFor = b.cfg.HeistOpenFor
		return events.NewBankheist(cfg)
	}
}

func (b *Bot) sendJoinError(c telebot.Context, username string, kind events.Kind, err error) error {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return c.Send(fmt.Sprintf("%s, you do not have enough points to wager that much!", username))
	}
	if errors.Is(err, events.ErrInvalidState) {
		return c.Send(fmt.Sprintf("%s, the %s is no longer accepting participants.", username, kind))
	}
	logger.Debug(username, "join_failed", fmt.Sprintf("kind=%s error=%s", kind, err.Error()))
	return c.Send("Something went wrong, please try again.")
}
