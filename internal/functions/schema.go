package functions

// ParamType is the semantic type tag for a FunctionSchema parameter (§3).
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypeArray  ParamType = "array"
	TypeObject ParamType = "object"
)

// Parameter describes one parameter of a function's schema.
type Parameter struct {
	Name     string
	Type     ParamType
	Required bool
	Default  string
	Enum     []string
}

// Schema is the full declared signature of a Function (§3 FunctionSchema).
type Schema struct {
	Name        string
	Description string
	Category    string
	Parameters  []Parameter
}

// RequiredParams returns the subset of Parameters that must be present.
func (s Schema) RequiredParams() []Parameter {
	var out []Parameter
	for _, p := range s.Parameters {
		if p.Required {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the Parameter with the given name, if declared.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
