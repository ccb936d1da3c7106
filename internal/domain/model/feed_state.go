package model

// FeedState tracks the upstream connection lifecycle. Owned by the feed;
// everyone else only reads it.
type FeedState int32

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedConnected
	FeedBackoff
	FeedShutdown
)

func (s FeedState) String() string {
	switch s {
	case FeedDisconnected:
		return "disconnected"
	case FeedConnecting:
		return "connecting"
	case FeedConnected:
		return "connected"
	case FeedBackoff:
		return "backoff"
	case FeedShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
