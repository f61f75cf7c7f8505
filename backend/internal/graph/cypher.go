package graph

import (
	"fmt"
	"sort"
	"strings"

	"nomnom-api/backend/internal/schema"
)

// nodeColumn is the column every generated read returns.
const nodeColumn = "node"

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// edge renders a relationship pattern between two bound variables, honoring
// the declared direction as seen from "from".
func edge(rel *schema.Relationship, from, to, toLabel string) string {
	target := to
	if toLabel != "" {
		target = to + ":" + quote(toLabel)
	}
	if rel.Direction == schema.DirectionIn {
		return fmt.Sprintf("(%s)<-[:%s]-(%s)", from, quote(rel.Type), target)
	}
	return fmt.Sprintf("(%s)-[:%s]->(%s)", from, quote(rel.Type), target)
}

// projection renders a map projection of v with every single-valued
// relationship nested under its field name. This is the authorization view:
// rules such as owner.id can be evaluated without a second round trip.
func projection(e *schema.Entity, v string) string {
	parts := []string{".*"}
	for _, rel := range e.SingleRelationships() {
		t := v + "_" + rel.Field
		parts = append(parts, fmt.Sprintf("%s: head([%s | %s {.*}])",
			quote(rel.Field), edge(rel, v, t, rel.Target), t))
	}
	return fmt.Sprintf("%s {%s}", v, strings.Join(parts, ", "))
}

func viewStatement(e *schema.Entity) string {
	return fmt.Sprintf("MATCH (n:%s {id: $id})\nRETURN %s AS %s",
		quote(e.Name), projection(e, "n"), nodeColumn)
}

// ListOptions narrows a List or Related call.
type ListOptions struct {
	// Filter holds scalar field equality constraints.
	Filter  map[string]interface{}
	OrderBy string
	Desc    bool
	Skip    int
	Limit   int
}

func listStatement(e *schema.Entity, opts ListOptions) (string, map[string]interface{}, error) {
	var b strings.Builder
	params := map[string]interface{}{}
	fmt.Fprintf(&b, "MATCH (n:%s)", quote(e.Name))
	if err := writeFilter(&b, e, "n", opts.Filter, params); err != nil {
		return "", nil, err
	}
	fmt.Fprintf(&b, "\nRETURN %s AS %s", projection(e, "n"), nodeColumn)
	if err := writePage(&b, e, opts, params); err != nil {
		return "", nil, err
	}
	return b.String(), params, nil
}

func relatedStatement(e *schema.Entity, rel *schema.Relationship, target *schema.Entity, opts ListOptions) (string, map[string]interface{}, error) {
	var b strings.Builder
	params := map[string]interface{}{}
	fmt.Fprintf(&b, "MATCH %s", edge(rel, fmt.Sprintf("n:%s {id: $id}", quote(e.Name)), "t", target.Name))
	if err := writeFilter(&b, target, "t", opts.Filter, params); err != nil {
		return "", nil, err
	}
	fmt.Fprintf(&b, "\nRETURN DISTINCT %s AS %s", projection(target, "t"), nodeColumn)
	if err := writePage(&b, target, opts, params); err != nil {
		return "", nil, err
	}
	return b.String(), params, nil
}

func writeFilter(b *strings.Builder, e *schema.Entity, v string, filter map[string]interface{}, params map[string]interface{}) error {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for i, k := range keys {
		if _, ok := e.Field(k); !ok {
			return fmt.Errorf("%s has no field %s", e.Name, k)
		}
		p := fmt.Sprintf("f%d", i)
		params[p] = filter[k]
		clauses = append(clauses, fmt.Sprintf("%s.%s = $%s", v, quote(k), p))
	}
	fmt.Fprintf(b, "\nWHERE %s", strings.Join(clauses, " AND "))
	return nil
}

func writePage(b *strings.Builder, e *schema.Entity, opts ListOptions, params map[string]interface{}) error {
	order := opts.OrderBy
	if order == "" {
		order = "id"
	}
	if _, ok := e.Field(order); !ok {
		return fmt.Errorf("%s has no field %s", e.Name, order)
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	fmt.Fprintf(b, "\nORDER BY %s.%s %s", nodeColumn, quote(order), dir)
	if opts.Skip > 0 {
		params["skip"] = opts.Skip
		b.WriteString("\nSKIP $skip")
	}
	if opts.Limit > 0 {
		params["limit"] = opts.Limit
		b.WriteString("\nLIMIT $limit")
	}
	return nil
}

func createStatement(e *schema.Entity) string {
	return fmt.Sprintf("CREATE (n:%s)\nSET n = $props\nRETURN n.id AS id", quote(e.Name))
}

func updateStatement(e *schema.Entity) string {
	return fmt.Sprintf("MATCH (n:%s {id: $id})\nSET n += $props\nRETURN n.id AS id", quote(e.Name))
}

func linkStatement(e *schema.Entity, rel *schema.Relationship) string {
	return fmt.Sprintf("MATCH (n:%s {id: $id}), (t:%s {id: $target})\nMERGE %s",
		quote(e.Name), quote(rel.Target), edge(rel, "n", "t", ""))
}

func unlinkStatement(e *schema.Entity, rel *schema.Relationship) string {
	return fmt.Sprintf("MATCH %s\nWHERE t.id = $target\nDELETE r",
		strings.Replace(edge(rel, fmt.Sprintf("n:%s {id: $id}", quote(e.Name)), "t", rel.Target), "[:", "[r:", 1))
}

// dependentChain is a path of relationships from a deleted node to nodes
// that cannot exist without it.
type dependentChain []*schema.Relationship

// dependents walks list relationships whose targets declare a required
// single relationship back along the same edge. Deleting the source would
// orphan those targets, so they are deleted with it.
func dependents(m *schema.Model, e *schema.Entity) []dependentChain {
	var out []dependentChain
	var walk func(cur *schema.Entity, prefix dependentChain, seen map[string]bool)
	walk = func(cur *schema.Entity, prefix dependentChain, seen map[string]bool) {
		for _, rel := range cur.Relationships {
			if !rel.List || seen[rel.Target] {
				continue
			}
			target, ok := m.Entity(rel.Target)
			if !ok || !requiresBackEdge(cur, target, rel) {
				continue
			}
			chain := append(append(dependentChain(nil), prefix...), rel)
			out = append(out, chain)
			next := make(map[string]bool, len(seen)+1)
			for k := range seen {
				next[k] = true
			}
			next[rel.Target] = true
			walk(target, chain, next)
		}
	}
	walk(e, nil, map[string]bool{e.Name: true})
	return out
}

func requiresBackEdge(source, target *schema.Entity, rel *schema.Relationship) bool {
	for _, back := range target.SingleRelationships() {
		if back.Required && back.Target == source.Name && back.Type == rel.Type && back.Direction != rel.Direction {
			return true
		}
	}
	return false
}

func deleteStatement(m *schema.Model, e *schema.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n:%s {id: $id})", quote(e.Name))
	chains := dependents(m, e)
	carried := []string{"n"}
	for i, chain := range chains {
		from := "n"
		var pattern strings.Builder
		for j, rel := range chain {
			to := fmt.Sprintf("d%d_%d", i, j)
			label := rel.Target
			seg := edge(rel, from, to, label)
			if j > 0 {
				// Continue the path from the previous hop's end node.
				seg = seg[len("("+from+")"):]
			}
			pattern.WriteString(seg)
			from = to
		}
		col := fmt.Sprintf("c%d", i)
		fmt.Fprintf(&b, "\nOPTIONAL MATCH %s\nWITH %s, collect(DISTINCT %s) AS %s",
			pattern.String(), strings.Join(carried, ", "), from, col)
		carried = append(carried, col)
	}
	if len(chains) > 0 {
		fmt.Fprintf(&b, "\nFOREACH (x IN %s | DETACH DELETE x)", strings.Join(carried[1:], " + "))
	}
	b.WriteString("\nDETACH DELETE n")
	return b.String()
}
