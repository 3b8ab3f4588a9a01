// Package slot reads slot declarations and computes their identity keys.
package slot

// Attribute names of the slot declaration micro-protocol.
const (
	AttrType        = "type"
	AttrDataSource  = "data-source"
	AttrConfig      = "config"
	AttrInteraction = "interaction"
	AttrSlotID      = "slot-id"

	// AttrClickPrompt is the older spelling of AttrInteraction.
	AttrClickPrompt = "click-prompt"

	// AttrMountID marks a mount point in the live tree.
	AttrMountID = "data-slot-id"
)

// UnknownType stands in for a missing type attribute when deriving an identity.
const UnknownType = "unknown"

// Declaration is a parsed slot declaration.
type Declaration struct {
	Type        string
	DataSource  string
	Config      string
	Interaction string
	ExplicitID  string
}

// FromAttrs reads a declaration from element attributes. The interaction
// attribute wins over click-prompt when both are present.
func FromAttrs(attrs map[string]string) Declaration {
	d := Declaration{
		Type:        attrs[AttrType],
		DataSource:  attrs[AttrDataSource],
		Config:      attrs[AttrConfig],
		Interaction: attrs[AttrInteraction],
		ExplicitID:  attrs[AttrSlotID],
	}
	if d.Interaction == "" {
		d.Interaction = attrs[AttrClickPrompt]
	}
	return d
}

// Identity returns the explicit id when set, otherwise "type::dataSource".
func (d Declaration) Identity() string {
	if d.ExplicitID != "" {
		return d.ExplicitID
	}
	typ := d.Type
	if typ == "" {
		typ = UnknownType
	}
	return typ + "::" + d.DataSource
}

// Identity computes the identity key straight from element attributes.
func Identity(attrs map[string]string) string {
	return FromAttrs(attrs).Identity()
}
