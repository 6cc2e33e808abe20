package solana

import "context"

// Commitment levels accepted by logsSubscribe.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// WSClient streams log notifications for transactions touching watched
// addresses.
type WSClient interface {
	// SubscribeLogs returns a channel of notifications for filter. The channel
	// survives reconnects and is closed only when the client closes.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	Close() error
}

// LogsFilter selects transactions for a logs subscription.
type LogsFilter struct {
	// Mentions limits the stream to transactions mentioning these addresses.
	// The RPC node accepts a single address; empty subscribes to all.
	Mentions []string
	// Commitment defaults to CommitmentConfirmed.
	Commitment string
}

func (f LogsFilter) commitment() string {
	if f.Commitment == "" {
		return CommitmentConfirmed
	}
	return f.Commitment
}

// LogNotification is one logsNotification payload.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       any // transaction error, nil on success
}

// Failed reports whether the transaction failed on chain.
func (n LogNotification) Failed() bool {
	return n.Err != nil
}
