package models

// PolicyAttributes is the fixed set of policy attribute names, in the order
// they are documented.
var PolicyAttributes = []string{"read", "write", "create", "delete", "manage", "accept", "owner"}

// Policy lists the principals allowed each kind of access to a container.
// Enforcement belongs to the host; this package only carries the values.
type Policy struct {
	Read   []string `json:"read" yaml:"read"`
	Write  []string `json:"write" yaml:"write"`
	Create []string `json:"create" yaml:"create"`
	Delete []string `json:"delete" yaml:"delete"`
	Manage []string `json:"manage" yaml:"manage"`
	Accept []string `json:"accept" yaml:"accept"`
	Owner  string   `json:"owner" yaml:"owner"`
}

// Attributes returns the policy as a flat mapping over PolicyAttributes.
// Lists keep their order; unset lists become empty lists and an unset owner
// becomes nil.
func (p Policy) Attributes() map[string]any {
	out := make(map[string]any, len(PolicyAttributes))
	for _, attr := range PolicyAttributes {
		out[attr] = p.Value(attr)
	}
	return out
}

// Value returns one policy attribute, or nil for an unknown name.
func (p Policy) Value(attr string) any {
	switch attr {
	case "read":
		return nonNil(p.Read)
	case "write":
		return nonNil(p.Write)
	case "create":
		return nonNil(p.Create)
	case "delete":
		return nonNil(p.Delete)
	case "manage":
		return nonNil(p.Manage)
	case "accept":
		return nonNil(p.Accept)
	case "owner":
		if p.Owner == "" {
			return nil
		}
		return p.Owner
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
