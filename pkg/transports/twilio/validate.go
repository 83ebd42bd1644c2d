package twilio

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"
)

// Validator checks inbound webhook signatures. With an empty auth token
// validation is disabled (local development).
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg.withDefaults()}
}

// Enabled reports whether signature checking is active.
func (v *Validator) Enabled() bool {
	return v.cfg.AuthToken != ""
}

// ValidateRequest verifies the X-Twilio-Signature header against the request
// URL and form parameters. The body is restored for downstream form parsing.
func (v *Validator) ValidateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if v.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	params := map[string]string{}
	if values, err := url.ParseQuery(string(body)); err == nil {
		for k, vs := range values {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
	}

	validator := twilioclient.NewRequestValidator(v.cfg.AuthToken)
	return validator.Validate(v.requestURL(r), params, signature)
}

func (v *Validator) requestURL(r *http.Request) string {
	if v.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(v.cfg.PublicURL) + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(v.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
