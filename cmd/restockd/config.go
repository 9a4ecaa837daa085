package main

import (
	"fmt"
	"regexp"

	configlibsql "restockd/lib/configutil/libsql"
	"restockd/services/notify"
	"restockd/services/watcher"
)

type TargetConfig struct {
	Name string `json:"name"`
	// candidate order pages, tried in priority order
	Urls []string `json:"urls"`
	// the page must contain at least one of these (case-insensitive)
	// to count as a real order page
	MustContainAny []string `json:"must_contain_any"`
	// a match anywhere on the page is conclusive evidence of OUT
	OutOfStockRegex []string `json:"out_of_stock_regex"`
}

type ChannelsConfig struct {
	Telegram *notify.TelegramConfig `json:"telegram"`
	Webhook  *notify.WebhookConfig  `json:"webhook"`
	Email    *notify.SmtpConfig     `json:"email"`
}

type Config struct {
	Database configlibsql.Struct `json:"database"`
	Port     int                 `json:"port"`
	// how often the serve loop triggers a check cycle
	CheckIntervalSec int64          `json:"check_interval_sec"`
	Watcher          watcher.Config `json:"watcher"`
	Targets          []TargetConfig `json:"targets"`
	Channels         ChannelsConfig `json:"channels"`
}

func (c Config) buildTargets() ([]watcher.Target, error) {
	seen := map[string]bool{}
	var targets []watcher.Target

	for i, tc := range c.Targets {
		if tc.Name == "" {
			return nil, fmt.Errorf("target %d: name is required", i)
		}
		if seen[tc.Name] {
			return nil, fmt.Errorf("target %q: duplicate name", tc.Name)
		}
		seen[tc.Name] = true

		if len(tc.Urls) == 0 {
			return nil, fmt.Errorf("target %q: at least one url is required", tc.Name)
		}
		if len(tc.MustContainAny) == 0 {
			return nil, fmt.Errorf("target %q: at least one sanity marker is required", tc.Name)
		}
		if len(tc.OutOfStockRegex) == 0 {
			return nil, fmt.Errorf("target %q: at least one out-of-stock pattern is required", tc.Name)
		}

		var patterns []*regexp.Regexp
		for _, raw := range tc.OutOfStockRegex {
			pattern, err := regexp.Compile(raw)
			if err != nil {
				return nil, fmt.Errorf("target %q: pattern %q: %w", tc.Name, raw, err)
			}
			patterns = append(patterns, pattern)
		}

		targets = append(targets, watcher.Target{
			Name:               tc.Name,
			Urls:               tc.Urls,
			MustContainAny:     tc.MustContainAny,
			OutOfStockPatterns: patterns,
		})
	}

	return targets, nil
}

func (c Config) buildChannels() ([]notify.Channel, error) {
	var channels []notify.Channel

	if c.Channels.Telegram != nil {
		channel, err := notify.NewTelegramChannel(*c.Channels.Telegram)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	if c.Channels.Webhook != nil {
		channel, err := notify.NewWebhookChannel(*c.Channels.Webhook)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	if c.Channels.Email != nil {
		channel, err := notify.NewEmailChannel(*c.Channels.Email)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	return channels, nil
}
