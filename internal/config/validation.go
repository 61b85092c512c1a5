package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for obvious mistakes before any
// component is wired. It returns the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := validateWebsocketURL(c.ChatURL); err != nil {
		return err
	}
	if err := validateHTTPURL(c.IndexerURL); err != nil {
		return err
	}
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("%w: %s is below the %s minimum",
			ErrInvalidPollInterval, c.PollInterval, MinPollInterval)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return ErrMissingUserID
	}
	return nil
}

func validateWebsocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidChatURL, raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: %q: scheme must be ws or wss", ErrInvalidChatURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidChatURL, raw)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidIndexerURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidIndexerURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidIndexerURL, raw)
	}
	return nil
}
