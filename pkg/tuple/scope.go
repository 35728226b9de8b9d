package tuple

// Scope selects which published tuples a subscription observes.
type Scope uint8

const (
	// Global observes every tuple in the space.
	Global Scope = iota
	// Local observes only tuples published through the same space handle.
	Local
)

func (s Scope) String() string {
	if s == Local {
		return "local"
	}
	return "global"
}
