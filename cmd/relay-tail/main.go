// Command relay-tail connects to the relay as one user and prints every event
// routed to the requested channels as a JSON line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/config"
	"github.com/ebuka-odih/nyem-sub003/internal/infra/logger"
	"github.com/ebuka-odih/nyem-sub003/internal/realtime/client"
	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

type line struct {
	Channel string       `json:"channel"`
	Type    events.Type  `json:"type"`
	Data    events.Event `json:"data"`
}

func main() {
	var (
		cfgPath  string
		url      string
		userID   int64
		token    string
		channels []string
	)
	pflag.StringVar(&cfgPath, "config", defaultConfigPath(), "path to the YAML config file")
	pflag.StringVar(&url, "url", "", "relay websocket url (defaults to client.url)")
	pflag.Int64Var(&userID, "user-id", 0, "user id to authenticate as")
	pflag.StringVar(&token, "token", "", "access token, required when the relay checks tokens")
	pflag.StringSliceVar(&channels, "channel", nil, "channel to print, e.g. user.7 or conversation.12 (repeatable, default user.<user-id>)")
	pflag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "--user-id is required")
		os.Exit(2)
	}
	if url == "" {
		url = cfg.Client.URL
	}
	if len(channels) == 0 {
		channels = []string{events.UserChannel(userID)}
	}

	log, err := logger.New(cfg.Log.Level, "relay-tail")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		URL:            url,
		UserID:         userID,
		Token:          token,
		ReconnectDelay: cfg.Client.ReconnectDelay,
	}, log)

	var outMu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	for _, channel := range channels {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		channel := channel
		c.Subscribe(channel, func(ev events.Event) {
			outMu.Lock()
			defer outMu.Unlock()
			if err := enc.Encode(line{Channel: channel, Type: ev.Type(), Data: ev}); err != nil {
				log.Warn("print event failed", zap.Error(err))
			}
		})
	}

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("relay client stopped", zap.Error(err))
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
