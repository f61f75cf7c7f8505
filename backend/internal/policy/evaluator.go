package policy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
)

// jwtPrefix marks a rule value that is read from the caller's claims.
const jwtPrefix = "$jwt."

// Predicate decides whether caller may perform an operation on node. node is
// the stored view for existing nodes and the pending values on create.
// caller is nil for anonymous requests.
type Predicate func(caller *auth.Identity, node schema.Node) bool

type ruleKey struct {
	entity string
	op     schema.Operation
}

type ruleSet struct {
	authenticate bool
	predicates   []Predicate
}

// Evaluator gates mutations. Rules are compiled once from the model and are
// read-only afterwards, so one Evaluator is shared by all requests.
type Evaluator struct {
	rules   map[ruleKey]*ruleSet
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMetrics records every decision.
func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator compiles the authentication and authorization declarations of
// every entity in m.
func NewEvaluator(m *schema.Model, opts ...Option) *Evaluator {
	e := &Evaluator{
		rules:  make(map[ruleKey]*ruleSet),
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, name := range m.EntityNames() {
		entity, _ := m.Entity(name)
		for _, op := range schema.AllOperations {
			rs := &ruleSet{authenticate: entity.RequiresAuthentication(op)}
			for _, r := range entity.Authorization {
				if r.AppliesTo(op) {
					rs.predicates = append(rs.predicates, compileRule(r))
				}
			}
			e.rules[ruleKey{name, op}] = rs
		}
	}
	return e
}

// Register adds a predicate for (entity, op). Predicates registered for the
// same pair are alternatives: one allowing is enough. Register is not safe to
// call once requests are being served.
func (e *Evaluator) Register(entity string, op schema.Operation, p Predicate) {
	k := ruleKey{entity, op}
	rs, ok := e.rules[k]
	if !ok {
		rs = &ruleSet{}
		e.rules[k] = rs
	}
	rs.predicates = append(rs.predicates, p)
}

// RequiresAuthentication reports whether op on entity needs a caller.
func (e *Evaluator) RequiresAuthentication(op schema.Operation, entity string) bool {
	rs, ok := e.rules[ruleKey{entity, op}]
	return ok && rs.authenticate
}

// Authenticate is the first stage: it fails only when the entity demands a
// caller for op and there is none.
func (e *Evaluator) Authenticate(op schema.Operation, entity string, caller *auth.Identity) error {
	if caller == nil && e.RequiresAuthentication(op, entity) {
		e.record(entity, op, resultUnauthenticated)
		return apperrors.NewUnauthenticated(fmt.Sprintf("%s on %s requires a signed-in caller", op, entity), nil)
	}
	return nil
}

// Authorize is the second stage: entities without predicates for op are
// open; otherwise at least one predicate must hold for node.
func (e *Evaluator) Authorize(op schema.Operation, entity string, caller *auth.Identity, node schema.Node) error {
	rs, ok := e.rules[ruleKey{entity, op}]
	if !ok {
		return fmt.Errorf("policy: unknown entity %s", entity)
	}
	if len(rs.predicates) == 0 {
		e.record(entity, op, resultAllowed)
		return nil
	}
	for _, p := range rs.predicates {
		if p(caller, node) {
			e.record(entity, op, resultAllowed)
			return nil
		}
	}
	e.record(entity, op, resultForbidden)
	return apperrors.NewForbidden(entity, string(op))
}

// Evaluate runs Authenticate then Authorize.
func (e *Evaluator) Evaluate(op schema.Operation, entity string, caller *auth.Identity, node schema.Node) error {
	if err := e.Authenticate(op, entity, caller); err != nil {
		return err
	}
	return e.Authorize(op, entity, caller, node)
}

func (e *Evaluator) record(entity string, op schema.Operation, result string) {
	if e.metrics != nil {
		e.metrics.decisions.WithLabelValues(entity, string(op), result).Inc()
	}
	if result != resultAllowed {
		e.logger.Debug("Policy denied operation",
			zap.String("entity", entity),
			zap.String("operation", string(op)),
			zap.String("result", result))
	}
}

// compileRule turns one validate entry into a predicate. Every key of the
// where clause must match.
func compileRule(r schema.AuthorizationRule) Predicate {
	nodeClause := r.Node
	jwtClause := r.JWT
	return func(caller *auth.Identity, node schema.Node) bool {
		if nodeClause != nil && !matchNode(caller, node, nodeClause, nil) {
			return false
		}
		if jwtClause != nil && !matchClaims(caller, jwtClause) {
			return false
		}
		return true
	}
}

func matchNode(caller *auth.Identity, node schema.Node, clause map[string]interface{}, prefix []string) bool {
	for key, expected := range clause {
		path := append(append([]string(nil), prefix...), key)
		if nested, ok := expected.(map[string]interface{}); ok {
			if !matchNode(caller, node, nested, path) {
				return false
			}
			continue
		}
		want, ok := resolve(caller, expected)
		if !ok {
			return false
		}
		got, ok := node.Lookup(path...)
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func matchClaims(caller *auth.Identity, clause map[string]interface{}) bool {
	if caller == nil {
		return false
	}
	for claim, expected := range clause {
		want, ok := resolve(caller, expected)
		if !ok {
			return false
		}
		got, ok := caller.Claim(claim)
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

// resolve substitutes "$jwt.<claim>" references. A reference an anonymous
// caller cannot satisfy never matches.
func resolve(caller *auth.Identity, v interface{}) (interface{}, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, jwtPrefix) {
		return v, true
	}
	return caller.Claim(strings.TrimPrefix(s, jwtPrefix))
}

func equal(a, b interface{}) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
