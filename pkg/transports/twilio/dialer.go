package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// Dialer places outbound calls via the Twilio REST API. Answer and terminal
// status callbacks are tagged with the session id so the webhook handlers
// can route them.
type Dialer struct {
	cfg    Config
	client callCreator
}

// NewDialer creates a new Twilio dialer.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

// Dial starts an outbound call for a session and returns the provider call SID.
func (d *Dialer) Dial(ctx context.Context, to, sessionID string) (string, error) {
	_ = ctx
	if to == "" {
		return "", errors.New("destination required")
	}
	if sessionID == "" {
		return "", errors.New("session id required")
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", errors.New("missing twilio credentials")
	}
	if d.cfg.FromNumber == "" {
		return "", errors.New("missing twilio from number")
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.cfg.FromNumber)
	params.SetUrl(d.cfg.AnswerURL(sessionID))
	params.SetMethod("POST")
	params.SetStatusCallback(d.cfg.StatusURL(sessionID))
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"completed", "busy", "no-answer", "failed", "canceled"})
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonDialCreate)
	}
	if resp == nil || resp.Sid == nil {
		return "", errorsx.Wrap(fmt.Errorf("missing call sid"), errorsx.ReasonDialCreate)
	}
	return *resp.Sid, nil
}
