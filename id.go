package tide

import "github.com/tidelang/tide/id"

// ID is the primary identifier type for all Tide entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
