package classfile

// Access flags the analysis cares about.
const (
	AccPublic    = 0x0001
	AccInterface = 0x0200
	AccSynthetic = 0x1000
	AccModule    = 0x8000
)

// ObjectClass is the root of every class hierarchy.
const ObjectClass = "java/lang/Object"

// Member is a declared field or method.
type Member struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Access     uint16 `json:"access"`
}

// ClassDefinition is the structural shape of one parsed class. It is immutable
// after Parse returns and safe to share between goroutines.
type ClassDefinition struct {
	Name       string   `json:"name"`
	Super      string   `json:"super,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
	Access     uint16   `json:"access"`
	Major      uint16   `json:"major"`
	Fields     []Member `json:"fields,omitempty"`
	Methods    []Member `json:"methods,omitempty"`

	// References holds every symbol the class emits, in first-seen order.
	References []SymbolReference `json:"references,omitempty"`

	// Container and Entry locate the bytes the class was parsed from.
	Container string `json:"container,omitempty"`
	Entry     string `json:"entry,omitempty"`

	fieldSet  map[string]struct{}
	methodSet map[string]struct{}
}

func memberKey(name, descriptor string) string {
	return name + "\x00" + descriptor
}

func (c *ClassDefinition) index() {
	c.fieldSet = make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		c.fieldSet[memberKey(f.Name, f.Descriptor)] = struct{}{}
	}
	c.methodSet = make(map[string]struct{}, len(c.Methods))
	for _, m := range c.Methods {
		c.methodSet[memberKey(m.Name, m.Descriptor)] = struct{}{}
	}
}

// DeclaresMethod reports whether the class itself declares the method.
func (c *ClassDefinition) DeclaresMethod(name, descriptor string) bool {
	_, ok := c.methodSet[memberKey(name, descriptor)]
	return ok
}

// DeclaresField reports whether the class itself declares the field.
func (c *ClassDefinition) DeclaresField(name, descriptor string) bool {
	_, ok := c.fieldSet[memberKey(name, descriptor)]
	return ok
}

func (c *ClassDefinition) IsInterface() bool {
	return c.Access&AccInterface != 0
}
