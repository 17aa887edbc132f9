// Command mull runs the conversational agent with the configured
// adapters. Configuration comes from defaults, an optional config file,
// and MULL_-prefixed environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/adapters/analytics"
	"github.com/mullbot/mull/pkg/adapters/discord"
	anthropicnlu "github.com/mullbot/mull/pkg/adapters/nlu/anthropic"
	openainlu "github.com/mullbot/mull/pkg/adapters/nlu/openai"
	"github.com/mullbot/mull/pkg/adapters/shell"
	slackadapter "github.com/mullbot/mull/pkg/adapters/slack"
	"github.com/mullbot/mull/pkg/adapters/storage/memory"
	"github.com/mullbot/mull/pkg/adapters/storage/sqlite"
	"github.com/mullbot/mull/pkg/adapters/telegram"
	"github.com/mullbot/mull/pkg/adapters/webhook"
	"github.com/mullbot/mull/pkg/adapters/websock"
	"github.com/mullbot/mull/pkg/bot"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/config"
	"github.com/mullbot/mull/pkg/cron"
	"github.com/mullbot/mull/pkg/logger"
	"github.com/mullbot/mull/pkg/thought"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mull: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mull: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	b := bot.New(cfg)

	receiver := func(ctx context.Context, msg chat.Message) error {
		var err error
		if _, ok := msg.(*chat.ServerMessage); ok {
			_, err = b.Serve(ctx, msg)
		} else {
			_, err = b.Receive(ctx, msg)
		}
		return err
	}

	messages, err := messageAdapter(cfg, receiver)
	if err != nil {
		return err
	}
	b.UseMessages(messages)
	b.UseStorage(storageAdapter(cfg))
	if language := nluAdapter(cfg); language != nil {
		b.UseNLU(language)
	}

	registerBuiltins(b)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		return err
	}

	collector := analytics.New(b.Bus)
	if cfg.AnalyticsAdapter != "" {
		if err := collector.Start(ctx); err != nil {
			logger.WarnCF("main", "analytics start failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if cfg.WebhookAdapter != "" && cfg.WebhookURL != "" {
		forwarder := webhook.New(cfg.WebhookURL, b.Bus)
		if err := forwarder.Start(ctx); err != nil {
			logger.WarnCF("main", "webhook start failed", map[string]interface{}{"error": err.Error()})
		} else {
			defer forwarder.Shutdown(context.Background())
		}
	}

	scheduler := cron.New(func(ctx context.Context, data map[string]interface{}) error {
		user := chat.NewUser("cron", "cron")
		_, err := b.Serve(ctx, chat.NewServerMessage(user, data))
		return err
	}, b.Emitter)
	if err := scheduler.Start(ctx); err != nil {
		logger.WarnCF("main", "cron start failed", map[string]interface{}{"error": err.Error()})
	}

	<-ctx.Done()
	logger.InfoC("main", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Shutdown(shutdownCtx)
	if cfg.AnalyticsAdapter != "" {
		collector.Shutdown(shutdownCtx)
	}
	return b.Shutdown(shutdownCtx)
}

func messageAdapter(cfg config.Config, receiver adapter.Receiver) (adapter.Message, error) {
	switch cfg.MessageAdapter {
	case "shell", "":
		return shell.New(cfg.Name, receiver), nil
	case "discord":
		return discord.New(cfg.DiscordToken, receiver), nil
	case "telegram":
		return telegram.New(cfg.TelegramToken, receiver), nil
	case "slack":
		return slackadapter.New(cfg.SlackBotToken, cfg.SlackAppToken, receiver), nil
	case "websocket":
		return websock.New(cfg.WebsocketAddr, receiver), nil
	default:
		return nil, fmt.Errorf("unknown message adapter %q", cfg.MessageAdapter)
	}
}

func storageAdapter(cfg config.Config) adapter.Storage {
	switch cfg.StorageAdapter {
	case "sqlite":
		return sqlite.New(cfg.SqlitePath)
	default:
		return memory.New()
	}
}

func nluAdapter(cfg config.Config) adapter.NLU {
	switch cfg.NLUAdapter {
	case "openai":
		return openainlu.New(cfg.OpenAIKey, cfg.OpenAIModel)
	case "anthropic":
		return anthropicnlu.New(cfg.AnthropicKey, cfg.AnthropicModel)
	default:
		return nil
	}
}

// registerBuiltins installs the stock branches every deployment gets.
func registerBuiltins(b *bot.Bot) {
	b.Text(`\bping\b`, func(s *thought.State) error {
		return s.Reply("pong")
	}, thought.BranchID("builtin_ping"))

	b.Text(`\bversion\b`, func(s *thought.State) error {
		return s.Reply("mull " + version)
	}, thought.BranchID("builtin_version"))
}

var version = "dev"
