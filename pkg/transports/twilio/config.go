package twilio

import "strings"

type Config struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	PublicURL  string `mapstructure:"public_url"`
	ServerAddr string `mapstructure:"server_addr"`
	AnswerPath string `mapstructure:"answer_path"`
	SpeechPath string `mapstructure:"speech_path"`
	StatusPath string `mapstructure:"status_path"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.AnswerPath == "" {
		c.AnswerPath = "/twilio/answer"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/twilio/speech"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/twilio/status"
	}
	return c
}

// CallbackURL builds an absolute webhook URL for a path plus query string.
func (c Config) CallbackURL(path, query string) string {
	cfg := c.withDefaults()
	var base string
	if cfg.PublicURL != "" {
		base = "https://" + normalizePublicURL(cfg.PublicURL)
	} else {
		addr := cfg.ServerAddr
		if addr[0] == ':' {
			addr = "localhost" + addr
		}
		base = "http://" + addr
	}
	url := base + path
	if query != "" {
		url += "?" + query
	}
	return url
}

// AnswerURL is the webhook invoked when the callee picks up.
func (c Config) AnswerURL(sessionID string) string {
	return c.CallbackURL(c.withDefaults().AnswerPath, "call_id="+sessionID)
}

// SpeechURL is the gather action webhook carrying recognized speech.
func (c Config) SpeechURL(sessionID string) string {
	return c.CallbackURL(c.withDefaults().SpeechPath, "call_id="+sessionID)
}

// StatusURL is the webhook invoked with terminal call status.
func (c Config) StatusURL(sessionID string) string {
	return c.CallbackURL(c.withDefaults().StatusPath, "call_id="+sessionID)
}

func normalizePublicURL(raw string) string {
	out := strings.TrimSpace(raw)
	out = strings.TrimPrefix(out, "https://")
	out = strings.TrimPrefix(out, "http://")
	return strings.TrimRight(out, "/")
}
