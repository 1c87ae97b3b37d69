// Package distributor implements the isolated runtime a group of modules
// boots into: identity, lifecycle, and cross-distributor access control.
package distributor

import (
	"fmt"
	"strings"
)

// DefaultTag is the tag assumed when an id omits one.
const DefaultTag = "default"

// ID identifies one distributor runtime. Same code under different tags
// means different runtimes that share nothing.
type ID struct {
	Code string
	Tag  string
}

// ParseID parses "code" or "code@tag". An omitted tag defaults to "default".
func ParseID(s string) (ID, error) {
	code, tag, found := strings.Cut(s, "@")
	if !found {
		tag = DefaultTag
	}
	if code == "" || tag == "" || strings.Contains(tag, "@") {
		return ID{}, fmt.Errorf("distributor id %q: want code or code@tag", s)
	}
	return ID{Code: code, Tag: tag}, nil
}

// MustParseID is ParseID for statically known ids.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return id.Code + "@" + id.Tag
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id.Code == ""
}
