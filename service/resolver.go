package service

// AllowlistAuthority is a ResolutionAuthority backed by a fixed list of
// resolver IDs, typically sourced from configuration. The engine itself
// never decides outcomes; it only checks who may supply them.
type AllowlistAuthority struct {
	resolvers map[string]struct{}
}

// NewAllowlistAuthority creates an authority permitting the given caller IDs
func NewAllowlistAuthority(resolverIDs []string) *AllowlistAuthority {
	resolvers := make(map[string]struct{}, len(resolverIDs))
	for _, id := range resolverIDs {
		if id != "" {
			resolvers[id] = struct{}{}
		}
	}
	return &AllowlistAuthority{resolvers: resolvers}
}

// CanResolve checks if a caller may resolve or cancel campaigns
func (a *AllowlistAuthority) CanResolve(callerID string) bool {
	_, ok := a.resolvers[callerID]
	return ok
}
