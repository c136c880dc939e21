package redis

import (
	"time"

	"evfeed/internal/platform/config"
)

func configWithURL(url string) config.RedisConfig {
	return config.RedisConfig{
		URL:         url,
		DialTimeout: 200 * time.Millisecond,
		ReadTimeout: 200 * time.Millisecond,
	}
}
