// Package event defines the records contracts publish when an invocation
// changes state. Events are buffered during an invocation and handed to
// plugins only after the invocation's writes have been committed.
package event

import (
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Topic names an event kind, e.g. "exchange.fulfilled".
type Topic string

// Topics published by the built-in contracts.
const (
	TopicSplit            Topic = "settlement.split"
	TopicListed           Topic = "exchange.listed"
	TopicCanceled         Topic = "exchange.canceled"
	TopicFulfilled        Topic = "exchange.fulfilled"
	TopicPurchased        Topic = "entitlement.purchased"
	TopicInvoiceIssued    Topic = "invoice.issued"
	TopicInvoicePaid      Topic = "invoice.paid"
	TopicNameSet          Topic = "directory.set"
	TopicNameRemoved      Topic = "directory.removed"
	TopicBadgeMinted      Topic = "badge.minted"
	TopicBadgeTransferred Topic = "badge.transferred"
	TopicBadgeBurned      Topic = "badge.burned"
	TopicAssetMinted      Topic = "asset.minted"
	TopicAssetTransferred Topic = "asset.transfer"
	TopicAssetFrozen      Topic = "asset.frozen"
)

// Payload is the typed body of an event.
type Payload interface {
	Topic() Topic
}

// Event is a committed state change.
type Event struct {
	ID           id.ID          `json:"id"`
	InvocationID id.ID          `json:"invocation_id"`
	Contract     types.Address  `json:"contract"`
	Topic        Topic          `json:"topic"`
	Sequence     types.Sequence `json:"sequence"`
	Payload      Payload        `json:"payload"`
}
