package credits

import "github.com/xraph/credits/id"

// ID is the identifier type of ledger entries.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
