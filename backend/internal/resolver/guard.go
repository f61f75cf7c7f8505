package resolver

import (
	"context"

	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

// authenticate identifies the caller and runs the first policy stage. A
// credential that fails verification is rejected even where anonymous
// callers would be allowed.
func (r *Resolver) authenticate(ctx context.Context, op schema.Operation, entities ...string) (*auth.Identity, error) {
	caller, err := auth.Identify(ctx, r.verifier)
	if err != nil {
		return nil, err
	}
	for _, entity := range entities {
		if err := r.policy.Authenticate(op, entity, caller); err != nil {
			return nil, err
		}
	}
	return caller, nil
}

// signedIn rejects anonymous callers of operations that act on the caller's
// own user node.
func signedIn(caller *auth.Identity) error {
	if caller == nil {
		return apperrors.NewUnauthenticated("this operation acts on the signed-in user", nil)
	}
	return nil
}

// guard builds the store check for a node write. Each view that exists is
// authorized: the pending node on create, the stored node on delete, and
// both on update.
func (r *Resolver) guard(op schema.Operation, entity string, caller *auth.Identity) graph.CheckFunc {
	return func(current, pending schema.Node) error {
		for _, n := range []schema.Node{current, pending} {
			if n == nil {
				continue
			}
			if err := r.policy.Authorize(op, entity, caller, n); err != nil {
				return err
			}
		}
		if entity == schema.EntityRecipe && pending != nil {
			return r.validateInput(recipeStateOf(pending))
		}
		return nil
	}
}

// relationGuard authorizes a relationship write: the source is being updated
// and both endpoints gain or lose a relationship.
func (r *Resolver) relationGuard(op schema.Operation, source, target string, caller *auth.Identity) graph.RelationCheck {
	return func(s, t schema.Node) error {
		if err := r.policy.Authorize(schema.OperationUpdate, source, caller, s); err != nil {
			return err
		}
		if err := r.policy.Authorize(op, source, caller, s); err != nil {
			return err
		}
		return r.policy.Authorize(op, target, caller, t)
	}
}

// relationCaller runs the authentication stage for every check relationGuard
// will make.
func (r *Resolver) relationCaller(ctx context.Context, op schema.Operation, source, target string) (*auth.Identity, error) {
	caller, err := r.authenticate(ctx, schema.OperationUpdate, source)
	if err != nil {
		return nil, err
	}
	if err := r.policy.Authenticate(op, source, caller); err != nil {
		return nil, err
	}
	if err := r.policy.Authenticate(op, target, caller); err != nil {
		return nil, err
	}
	return caller, nil
}

// relate connects or disconnects source.field -> target after the
// relationship checks pass.
func (r *Resolver) relate(ctx context.Context, caller *auth.Identity, op schema.Operation, source, sourceID, field, target, targetID string) error {
	check := r.relationGuard(op, source, target, caller)
	var err error
	if op == schema.OperationCreateRelationship {
		_, err = r.store.Connect(ctx, source, sourceID, field, targetID, check)
	} else {
		_, err = r.store.Disconnect(ctx, source, sourceID, field, targetID, check)
	}
	return err
}
