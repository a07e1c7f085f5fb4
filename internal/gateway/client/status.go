package client

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
)

// StatusPath is the promoter status endpoint.
const StatusPath = "/promoter/status"

// Envelope is the {code, message, data} wrapper the promoter API puts around
// its payloads. A non-zero code is an application error.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// Unwrap returns Data, or an error for a non-zero code or missing data.
func (e Envelope[T]) Unwrap(msgs domain.Messages) (*T, error) {
	if e.Code != 0 {
		msg := e.Message
		if msg == "" {
			msg = msgs.Text(domain.KindDefault)
		}
		return nil, domain.NewError(domain.KindDefault, 0, msg, nil)
	}
	if e.Data == nil {
		return nil, msgs.Error(domain.KindDefault, 0, errors.New("response has no data"))
	}
	return e.Data, nil
}

// StatusClient fetches the promoter's approval status through the
// authenticated client.
type StatusClient struct {
	API  *Client
	Path string
}

func (s *StatusClient) FetchApprovalStatus(ctx context.Context) (*domain.AccountStatus, error) {
	path := s.Path
	if path == "" {
		path = StatusPath
	}

	var env Envelope[domain.AccountStatus]
	if err := s.API.Get(ctx, path, nil, &env); err != nil {
		return nil, err
	}

	return env.Unwrap(s.API.messages())
}
