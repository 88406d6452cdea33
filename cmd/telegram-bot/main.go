package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/evledger/internal/bot"
)

const (
	defaultAPIURL = "http://localhost:8080"
)

type BotConfig struct {
	Token          string
	APIURL         string
	UpdateTimeout  int
	AllowedUserIDs []int64 // Optional: restrict access to specific users
}

func main() {
	var token string
	var apiURL string
	var allowedUsers string

	flag.StringVar(&token, "token", "", "Telegram bot token (required, or set TELEGRAM_BOT_TOKEN env var)")
	flag.StringVar(&apiURL, "api-url", defaultAPIURL, "evledger API URL (or set EVLEDGER_API_URL)")
	flag.StringVar(&allowedUsers, "allowed-users", "", "Comma-separated list of allowed user IDs (optional)")
	flag.Parse()

	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		log.Fatal("Telegram bot token is required. Set -token flag or TELEGRAM_BOT_TOKEN env var")
	}
	if apiURL == defaultAPIURL {
		if envURL := os.Getenv("EVLEDGER_API_URL"); envURL != "" {
			apiURL = envURL
		}
	}

	config := BotConfig{
		Token:         token,
		APIURL:        apiURL,
		UpdateTimeout: 60,
	}
	for _, idStr := range strings.Split(allowedUsers, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}
	}

	log.Printf("Starting Telegram bot, API URL: %s", config.APIURL)

	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	api.Debug = false
	log.Printf("Authorized on account %s", api.Self.UserName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	commands := bot.NewCommands(config.APIURL, 0)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.UpdateTimeout
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Println("Telegram bot stopped")
			return
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			chatID := update.Message.Chat.ID
			if len(config.AllowedUserIDs) > 0 && !slices.Contains(config.AllowedUserIDs, update.Message.From.ID) {
				send(api, tgbotapi.NewMessage(chatID, "Access denied. You are not authorized to use this bot."))
				continue
			}

			send(api, tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
			for _, text := range commands.Reply(ctx, update.Message.Text) {
				msg := tgbotapi.NewMessage(chatID, text)
				msg.ParseMode = tgbotapi.ModeMarkdown
				send(api, msg)
			}
		}
	}
}

func send(api *tgbotapi.BotAPI, c tgbotapi.Chattable) {
	if _, err := api.Send(c); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}
