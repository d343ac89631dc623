package domain

// Session is the authenticated state held in memory for the lifetime of a
// login. The navigation tree is deliberately kept memory-only so stale
// authorization data never survives a restart.
type Session struct {
	Token      string    `json:"token"`
	User       User      `json:"user"`
	Usergroups []string  `json:"usergroups,omitempty"`
	NavTree    []NavNode `json:"-"`
}

// StoredAuth is the durable subset of a Session written under the authData
// key. It excludes the navigation tree by design.
type StoredAuth struct {
	Token      string   `json:"token"`
	User       User     `json:"user"`
	Usergroups []string `json:"usergroups,omitempty"`
}

// Stored returns the persistable projection of the session.
func (s *Session) Stored() StoredAuth {
	if s == nil {
		return StoredAuth{}
	}
	return StoredAuth{
		Token:      s.Token,
		User:       s.User,
		Usergroups: s.Usergroups,
	}
}

// Session reconstructs an in-memory session from its durable projection.
// The navigation tree starts empty and is refreshed separately.
func (a StoredAuth) Session() *Session {
	if a.Token == "" {
		return nil
	}
	return &Session{
		Token:      a.Token,
		User:       a.User,
		Usergroups: a.Usergroups,
	}
}
