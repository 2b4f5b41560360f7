package config

import (
	"github.com/pkg/errors"
	"github.com/redgrape/thegrid/pkg/conf"
)

type Config struct {
	Storyblok struct {
		BaseURL string
		Token   string
		SpaceID int64
	}

	GitLab struct {
		BaseURL string
		Token   string
	}

	Telegram struct {
		BotToken string
		ChatID   int64
	}

	Notify struct {
		UserID string
	}

	Approvals struct {
		PolicyPath string
	}

	Server struct {
		ListenAddress string
	}

	DataBase struct {
		Host string
		Port uint16
		User string
		Pass string
		Name string
	}

	Api struct {
		Tokens []string
	}
}

func ParseConfig() (*Config, error) {
	config := &Config{}
	err := conf.ParseConfig(config,
		conf.EnvPrefix("GRID"),
		conf.Defaults(map[string]interface{}{
			"Storyblok.BaseURL":    "https://mapi.storyblok.com",
			"Server.ListenAddress": ":8080",
			"Notify.UserID":        "admin",
			"DataBase.Port":        5432,
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse config")
	}
	return config, nil
}
