package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once sync.Once
	v    *viper.Viper
)

// store returns the process-wide viper instance. Environment variables win over
// values from an optional .env file in the working directory.
func store() *viper.Viper {
	once.Do(func() {
		v = viper.New()
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		v.AutomaticEnv()
		_ = v.ReadInConfig()
	})
	return v
}

// SetDefault registers a fallback that the typed getters use when nothing else is set.
func SetDefault(key string, value any) {
	store().SetDefault(key, value)
}

func String(key, fallback string) string {
	s := strings.TrimSpace(store().GetString(key))
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := String(key, "")
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

func Int(key string, fallback int) (int, error) {
	s := String(key, "")
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, s)
	}
	return n, nil
}

func Bool(key string, fallback bool) bool {
	s := String(key, "")
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

// Duration accepts Go duration strings ("5s", "2m"); a bare integer is read as seconds.
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	s := String(key, "")
	if s == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (got %q)", key, s)
	}
	return d, nil
}

// List splits a comma-separated value, dropping blanks.
func List(key string) []string {
	var out []string
	for _, part := range strings.Split(String(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
