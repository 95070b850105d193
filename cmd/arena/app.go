package main

import (
	"fmt"
	"log"

	"github.com/arenalab/arena/internal/arena"
	"github.com/arenalab/arena/internal/backend"
	"github.com/arenalab/arena/internal/config"
	"github.com/arenalab/arena/internal/db"
	"github.com/arenalab/arena/internal/history"
	"github.com/arenalab/arena/internal/notify"
	"github.com/arenalab/arena/internal/store"
	"github.com/arenalab/arena/internal/stream"
)

// app bundles everything a command needs after config is loaded.
type app struct {
	cfg     *config.Config
	service *arena.Service
	api     *backend.Client
	archive *history.Archive
	close   func()
}

// buildApp wires config, database, backend client, notifiers, and the
// service. The returned close func releases notifier connections.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	archive := history.NewArchive(conn)

	api, err := backend.New(backend.Opts{
		BaseURL: cfg.Backend.BaseURL,
		UserID:  cfg.UserID,
		Timeout: cfg.Backend.Timeout.Std(),
	})
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	st := store.New(store.Options{
		MaxTasks:           cfg.Arena.MaxTasks,
		MaxSessionsPerTask: cfg.Arena.MaxSessionsPerTask,
		TruncateBudget:     cfg.Arena.TruncateBudget,
	})

	service, err := arena.New(arena.Opts{
		Store:            st,
		API:              api,
		Transport:        stream.NewHTTPTransport(cfg.Backend.BaseURL, cfg.UserID),
		Archive:          archive,
		Notifier:         notifier,
		TruncateBudget:   cfg.Arena.TruncateBudget,
		CoalesceInterval: cfg.Arena.CoalesceInterval.Std(),
	})
	if err != nil {
		return nil, err
	}

	closeFn := func() {}
	if notifier != nil {
		closeFn = func() {
			if err := notifier.Close(); err != nil {
				log.Printf("arena: close notifier: %v", err)
			}
		}
	}
	return &app{cfg: cfg, service: service, api: api, archive: archive, close: closeFn}, nil
}

// buildNotifier assembles the configured platforms, or nil when none are set.
func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.Notify.Slack.BotToken != "" {
		n, err := notify.NewSlack(notify.SlackOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Notify.Discord.BotToken != "" {
		n, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	if len(notifiers) == 0 {
		return nil, nil
	}
	return notify.NewMulti(notifiers...), nil
}
