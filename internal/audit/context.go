package audit

import (
	"context"
	"errors"
)

var ErrSearchDisabled = errors.New("audit search requires elasticsearch")

// RequestInfo is the caller metadata stamped onto every event logged while
// handling a request.
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
	UserID    string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// enrichFromContext fills the event fields the caller left empty.
func enrichFromContext(ctx context.Context, event *AuditEvent) {
	info, ok := RequestInfoFrom(ctx)
	if !ok {
		return
	}
	if event.RequestID == "" {
		event.RequestID = info.RequestID
	}
	if event.IPAddress == "" {
		event.IPAddress = info.IPAddress
	}
	if event.UserAgent == "" {
		event.UserAgent = info.UserAgent
	}
	if event.UserID == "" {
		event.UserID = info.UserID
	}
}
