package settle

import "github.com/xraph/settle/id"

// ID is the identifier type for events and invocations.
type ID = id.ID

// Key is the 128-bit caller-chosen key of exchange listings.
type Key = id.Key
