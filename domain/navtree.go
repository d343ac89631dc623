package domain

// NavNode is a node of the per-user navigation/authorization tree. The tree
// is read-only from the subsystem's perspective and replaced wholesale on
// refresh.
type NavNode struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Position int       `json:"position"`
	Status   string    `json:"status"`
	Path     string    `json:"path"`
	ParentID string    `json:"parent_id,omitempty"`
	Children []NavNode `json:"children,omitempty"`
}
