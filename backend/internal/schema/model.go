package schema

import "sort"

// Operation is a mutating operation kind that authentication and
// authorization rules can be declared for.
type Operation string

const (
	OperationCreate             Operation = "CREATE"
	OperationUpdate             Operation = "UPDATE"
	OperationDelete             Operation = "DELETE"
	OperationCreateRelationship Operation = "CREATE_RELATIONSHIP"
	OperationDeleteRelationship Operation = "DELETE_RELATIONSHIP"
)

// AllOperations lists every operation kind in declaration order.
var AllOperations = []Operation{
	OperationCreate,
	OperationUpdate,
	OperationDelete,
	OperationCreateRelationship,
	OperationDeleteRelationship,
}

func validOperation(op Operation) bool {
	for _, o := range AllOperations {
		if o == op {
			return true
		}
	}
	return false
}

// Direction of a relationship as seen from the declaring entity.
type Direction string

const (
	DirectionOut Direction = "OUT"
	DirectionIn  Direction = "IN"
)

// Entity names
const (
	EntityActor       = "Actor"
	EntityMovie       = "Movie"
	EntityUser        = "User"
	EntityIngredient  = "Ingredient"
	EntityRecipe      = "Recipe"
	EntityChatSession = "ChatSession"
	EntityChatMessage = "ChatMessage"
)

// Field is a scalar property stored on a node.
type Field struct {
	Name     string
	Type     string // GraphQL scalar name: ID, String, Float, Int, Boolean, DateTime
	List     bool
	Required bool
	ID       bool // @id: generated on create
	// Timestamp lists the operations that assign this field server-side.
	Timestamp []Operation
}

// IsTimestampFor reports whether the field is assigned by the server on op.
func (f *Field) IsTimestampFor(op Operation) bool {
	for _, o := range f.Timestamp {
		if o == op {
			return true
		}
	}
	return false
}

// ServerAssigned reports whether clients may never write the field.
func (f *Field) ServerAssigned() bool {
	return f.ID || len(f.Timestamp) > 0
}

// Relationship is an edge declared on an entity.
type Relationship struct {
	Field     string
	Type      string // edge label, e.g. OWNS
	Direction Direction
	Target    string
	List      bool
	Required  bool
}

// AuthorizationRule is one entry of an @authorization validate list.
type AuthorizationRule struct {
	Operations []Operation
	// Node holds the where.node clause: nested field paths to expected values.
	Node map[string]interface{}
	// JWT holds the where.jwt clause: claim names to expected values.
	JWT map[string]interface{}
}

// AppliesTo reports whether the rule covers op.
func (r AuthorizationRule) AppliesTo(op Operation) bool {
	for _, o := range r.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Entity is a node type and everything declared on it.
type Entity struct {
	Name           string
	Fields         []*Field
	Relationships  []*Relationship
	Authentication []Operation
	Authorization  []AuthorizationRule
}

// Field returns the scalar field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Relationship returns the relationship declared on the given field.
func (e *Entity) Relationship(field string) (*Relationship, bool) {
	for _, r := range e.Relationships {
		if r.Field == field {
			return r, true
		}
	}
	return nil, false
}

// SingleRelationships returns the relationships that point at exactly one
// node. These are the traversal roots authorization rules can reach, such as
// Recipe.owner.
func (e *Entity) SingleRelationships() []*Relationship {
	var out []*Relationship
	for _, r := range e.Relationships {
		if !r.List {
			out = append(out, r)
		}
	}
	return out
}

// RequiresAuthentication reports whether op needs an authenticated caller.
func (e *Entity) RequiresAuthentication(op Operation) bool {
	for _, o := range e.Authentication {
		if o == op {
			return true
		}
	}
	return false
}

// Argument is a declared argument of a custom operation.
type Argument struct {
	Name     string
	Type     string
	Required bool
	Default  interface{}
}

// CustomOperation is a Query or Mutation field backed by a raw statement.
type CustomOperation struct {
	Name       string
	Root       string // Query or Mutation
	Statement  string
	Column     string
	Arguments  []Argument
	ReturnType string
	List       bool
}

// Params merges caller-supplied values with declared defaults.
func (o *CustomOperation) Params(values map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(o.Arguments))
	for _, arg := range o.Arguments {
		if v, ok := values[arg.Name]; ok && v != nil {
			params[arg.Name] = v
			continue
		}
		params[arg.Name] = arg.Default
	}
	return params
}

// Mutating reports whether the operation writes to the store.
func (o *CustomOperation) Mutating() bool {
	return o.Root == "Mutation"
}

// Model is the parsed entity schema.
type Model struct {
	Entities   map[string]*Entity
	Operations map[string]*CustomOperation
}

// Entity returns the named entity.
func (m *Model) Entity(name string) (*Entity, bool) {
	e, ok := m.Entities[name]
	return e, ok
}

// Operation returns the named custom operation.
func (m *Model) Operation(name string) (*CustomOperation, bool) {
	op, ok := m.Operations[name]
	return op, ok
}

// EntityNames returns entity names sorted alphabetically.
func (m *Model) EntityNames() []string {
	names := make([]string, 0, len(m.Entities))
	for name := range m.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
