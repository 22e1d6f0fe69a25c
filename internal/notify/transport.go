package notify

import (
	"context"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// Response is what a channel answered. A non-OK response is not an error.
type Response struct {
	OK     bool
	Status string
	Body   string
}

// Transport delivers text to one external channel.
type Transport interface {
	Name() string
	SendText(ctx context.Context, text string) (Response, error)
}

// AttachmentSender is implemented by transports that can deliver a file.
type AttachmentSender interface {
	SendAttachment(ctx context.Context, path, caption string) (Response, error)
}

// ResultSender is implemented by transports that publish the visit result
// itself. For visit notifications it is used instead of SendText.
type ResultSender interface {
	SendResult(ctx context.Context, result schemas.SessionResult) (Response, error)
}
