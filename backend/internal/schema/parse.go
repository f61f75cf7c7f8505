package schema

import (
	_ "embed"
	"strconv"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/pkg/errors"
)

//go:embed typedefs.graphql
var typeDefs string

const (
	idDirective             = "id"
	relationshipDirective   = "relationship"
	timestampDirective      = "timestamp"
	authenticationDirective = "authentication"
	authorizationDirective  = "authorization"
	cypherDirective         = "cypher"
)

// TypeDefs returns the embedded type definitions.
func TypeDefs() string {
	return typeDefs
}

// Load parses the embedded type definitions.
func Load() (*Model, error) {
	return Parse(typeDefs)
}

// MustLoad is Load for process startup; it panics on a malformed schema.
func MustLoad() *Model {
	m, err := Load()
	if err != nil {
		panic(err)
	}
	return m
}

// Parse reads a type-definition document and builds the model. Directives are
// read syntactically; the document does not need directive declarations.
func Parse(sdl string) (*Model, error) {
	doc, gqlErr := parser.ParseSchema(&ast.Source{Name: "typedefs.graphql", Input: sdl})
	if gqlErr != nil {
		return nil, errors.Wrap(gqlErr, "while parsing type definitions")
	}

	var defs ast.DefinitionList
	defs = append(defs, doc.Definitions...)
	defs = append(defs, doc.Extensions...)

	m := &Model{
		Entities:   make(map[string]*Entity),
		Operations: make(map[string]*CustomOperation),
	}

	// Entity names first so relationship targets can be checked in one pass.
	for _, def := range defs {
		if def.Kind != ast.Object || isRoot(def.Name) {
			continue
		}
		if _, dup := m.Entities[def.Name]; dup {
			return nil, errors.Errorf("type %s is declared more than once", def.Name)
		}
		m.Entities[def.Name] = &Entity{Name: def.Name}
	}

	for _, def := range defs {
		if def.Kind != ast.Object {
			continue
		}
		if isRoot(def.Name) {
			if err := parseOperations(m, def); err != nil {
				return nil, err
			}
			continue
		}
		if err := parseEntity(m, m.Entities[def.Name], def); err != nil {
			return nil, errors.Wrapf(err, "type %s", def.Name)
		}
	}

	return m, nil
}

func isRoot(name string) bool {
	return name == "Query" || name == "Mutation"
}

func parseEntity(m *Model, e *Entity, def *ast.Definition) error {
	for _, fd := range def.Fields {
		name, list, required := describeType(fd.Type)

		if dir := fd.Directives.ForName(relationshipDirective); dir != nil {
			rel, err := parseRelationship(m, fd.Name, name, list, required, dir)
			if err != nil {
				return err
			}
			e.Relationships = append(e.Relationships, rel)
			continue
		}

		if _, isEntity := m.Entities[name]; isEntity {
			return errors.Errorf("field %s references %s without @relationship", fd.Name, name)
		}

		f := &Field{
			Name:     fd.Name,
			Type:     name,
			List:     list,
			Required: required,
			ID:       fd.Directives.ForName(idDirective) != nil,
		}
		if dir := fd.Directives.ForName(timestampDirective); dir != nil {
			ops, err := operationsArg(dir, "operations", []Operation{OperationCreate, OperationUpdate})
			if err != nil {
				return errors.Wrapf(err, "field %s", fd.Name)
			}
			f.Timestamp = ops
		}
		e.Fields = append(e.Fields, f)
	}

	if dir := def.Directives.ForName(authenticationDirective); dir != nil {
		ops, err := operationsArg(dir, "operations", AllOperations)
		if err != nil {
			return errors.Wrap(err, "@authentication")
		}
		e.Authentication = ops
	}

	if dir := def.Directives.ForName(authorizationDirective); dir != nil {
		rules, err := parseAuthorization(e, dir)
		if err != nil {
			return errors.Wrap(err, "@authorization")
		}
		e.Authorization = rules
	}

	if _, ok := e.Field("id"); !ok {
		return errors.Errorf("missing id field")
	}
	return nil
}

func parseRelationship(m *Model, field, target string, list, required bool, dir *ast.Directive) (*Relationship, error) {
	if _, ok := m.Entities[target]; !ok {
		return nil, errors.Errorf("relationship %s targets unknown type %s", field, target)
	}
	typ := dir.Arguments.ForName("type")
	if typ == nil || typ.Value.Raw == "" {
		return nil, errors.Errorf("relationship %s needs a type", field)
	}
	direction := dir.Arguments.ForName("direction")
	if direction == nil {
		return nil, errors.Errorf("relationship %s needs a direction", field)
	}
	d := Direction(direction.Value.Raw)
	if d != DirectionIn && d != DirectionOut {
		return nil, errors.Errorf("relationship %s has invalid direction %q", field, direction.Value.Raw)
	}
	return &Relationship{
		Field:     field,
		Type:      typ.Value.Raw,
		Direction: d,
		Target:    target,
		List:      list,
		Required:  required,
	}, nil
}

func parseAuthorization(e *Entity, dir *ast.Directive) ([]AuthorizationRule, error) {
	validate := dir.Arguments.ForName("validate")
	if validate == nil {
		return nil, errors.Errorf("missing validate argument")
	}
	if validate.Value.Kind != ast.ListValue {
		return nil, errors.Errorf("validate must be a list")
	}

	var rules []AuthorizationRule
	for _, child := range validate.Value.Children {
		item := child.Value
		if item.Kind != ast.ObjectValue {
			return nil, errors.Errorf("validate entries must be objects")
		}

		ops := AllOperations
		if opsVal := item.Children.ForName("operations"); opsVal != nil {
			parsed, err := operationList(opsVal)
			if err != nil {
				return nil, err
			}
			ops = parsed
		}

		rule := AuthorizationRule{Operations: ops}
		where := item.Children.ForName("where")
		if where == nil || where.Kind != ast.ObjectValue {
			return nil, errors.Errorf("validate entries need a where object")
		}
		for _, clause := range where.Children {
			v, err := valueOf(clause.Value)
			if err != nil {
				return nil, err
			}
			obj, ok := v.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("where.%s must be an object", clause.Name)
			}
			switch clause.Name {
			case "node":
				if err := checkNodePaths(e, obj); err != nil {
					return nil, err
				}
				rule.Node = obj
			case "jwt":
				rule.JWT = obj
			default:
				return nil, errors.Errorf("unsupported where clause %q", clause.Name)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// checkNodePaths verifies the top-level keys of a where.node clause name a
// field or single-valued relationship of the entity.
func checkNodePaths(e *Entity, clause map[string]interface{}) error {
	for key := range clause {
		if _, ok := e.Field(key); ok {
			continue
		}
		if rel, ok := e.Relationship(key); ok && !rel.List {
			continue
		}
		return errors.Errorf("where.node references unknown field %s", key)
	}
	return nil
}

func parseOperations(m *Model, def *ast.Definition) error {
	for _, fd := range def.Fields {
		dir := fd.Directives.ForName(cypherDirective)
		if dir == nil {
			return errors.Errorf("%s.%s has no @cypher statement", def.Name, fd.Name)
		}
		statement := dir.Arguments.ForName("statement")
		column := dir.Arguments.ForName("columnName")
		if statement == nil || statement.Value.Raw == "" {
			return errors.Errorf("%s.%s: @cypher needs a statement", def.Name, fd.Name)
		}
		if column == nil || column.Value.Raw == "" {
			return errors.Errorf("%s.%s: @cypher needs a columnName", def.Name, fd.Name)
		}
		if _, dup := m.Operations[fd.Name]; dup {
			return errors.Errorf("operation %s is declared more than once", fd.Name)
		}

		ret, list, _ := describeType(fd.Type)
		op := &CustomOperation{
			Name:       fd.Name,
			Root:       def.Name,
			Statement:  statement.Value.Raw,
			Column:     column.Value.Raw,
			ReturnType: ret,
			List:       list,
		}
		for _, ad := range fd.Arguments {
			typ, _, required := describeType(ad.Type)
			arg := Argument{Name: ad.Name, Type: typ, Required: required}
			if ad.DefaultValue != nil {
				v, err := valueOf(ad.DefaultValue)
				if err != nil {
					return errors.Wrapf(err, "%s.%s(%s)", def.Name, fd.Name, ad.Name)
				}
				arg.Default = v
			}
			op.Arguments = append(op.Arguments, arg)
		}
		m.Operations[op.Name] = op
	}
	return nil
}

func describeType(t *ast.Type) (name string, list, required bool) {
	if t.Elem != nil {
		return t.Elem.Name(), true, t.NonNull
	}
	return t.NamedType, false, t.NonNull
}

func operationsArg(dir *ast.Directive, name string, def []Operation) ([]Operation, error) {
	arg := dir.Arguments.ForName(name)
	if arg == nil {
		return def, nil
	}
	return operationList(arg.Value)
}

func operationList(v *ast.Value) ([]Operation, error) {
	if v.Kind != ast.ListValue {
		return nil, errors.Errorf("operations must be a list")
	}
	ops := make([]Operation, 0, len(v.Children))
	for _, child := range v.Children {
		op := Operation(child.Value.Raw)
		if !validOperation(op) {
			return nil, errors.Errorf("unknown operation %q", child.Value.Raw)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func valueOf(v *ast.Value) (interface{}, error) {
	switch v.Kind {
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.IntValue:
		i, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid int %q", v.Raw)
		}
		return i, nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid float %q", v.Raw)
		}
		return f, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		out := make([]interface{}, 0, len(v.Children))
		for _, child := range v.Children {
			item, err := valueOf(child.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Children))
		for _, child := range v.Children {
			item, err := valueOf(child.Value)
			if err != nil {
				return nil, err
			}
			out[child.Name] = item
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported value %q", v.Raw)
}
