package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/steptable/internal/bridge"
)

var _ Messenger = (*TelegramGateway)(nil)

type TelegramGateway struct {
	Bot      *tgbotapi.BotAPI
	Commands *Commands

	allowed map[int64]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewTelegramGateway connects to the bot API. An empty allowed list lets
// every chat run commands.
func NewTelegramGateway(token string, cmds *Commands, allowed []int64) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	tg := &TelegramGateway{
		Bot:      bot,
		Commands: cmds,
		allowed:  make(map[int64]bool, len(allowed)),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, id := range allowed {
		tg.allowed[id] = true
	}
	return tg, nil
}

func (tg *TelegramGateway) permitted(chatID int64) bool {
	return len(tg.allowed) == 0 || tg.allowed[chatID]
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		chatID := update.Message.Chat.ID

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		if !tg.permitted(chatID) {
			tg.reply(chatID, Reply{Text: "this chat may not drive the table"})
			continue
		}
		ctx := bridge.WithChat(tg.ctx, strconv.FormatInt(chatID, 10))
		tg.reply(chatID, tg.Commands.Handle(ctx, update.Message.Text))
	}
	return nil
}

func (tg *TelegramGateway) reply(chatID int64, r Reply) {
	var msg tgbotapi.Chattable
	switch {
	case r.Photo != nil:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "page.png", Bytes: r.Photo})
		photo.Caption = r.Text
		msg = photo
	case r.File != nil:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: r.FileName, Bytes: r.File})
		doc.Caption = r.Text
		msg = doc
	default:
		msg = tgbotapi.NewMessage(chatID, r.Text)
	}
	if _, err := tg.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.cancel()
	tg.Bot.StopReceivingUpdates()
	return nil
}
