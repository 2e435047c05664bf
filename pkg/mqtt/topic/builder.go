package topic

import (
	"fmt"
)

// Builder encapsulates the construction of MQTT topic strings under a common
// root namespace. It keeps the topic topology in one place; the actual segment
// constants live with the protocol contract in internal/pkg/mqtt/paths.
type Builder struct {
	// root is the base namespace for all topics (e.g. "eld/v1").
	root string
}

// NewBuilder creates a Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Build constructs a full topic string: {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard constructs a subscription filter matching any identifier under
// the segment: {root}/{segment}/+.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}
