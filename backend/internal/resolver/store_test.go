package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

type edgeKey struct {
	entity, id, field, target string
}

// memStore is an in-memory Store. It runs checks at the same points the
// graph repository does and nests owners into recipe and session views.
type memStore struct {
	mu       sync.Mutex
	nodes    map[string]map[string]schema.Node
	edges    map[edgeKey]bool
	messages []schema.Node
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		nodes: map[string]map[string]schema.Node{},
		edges: map[edgeKey]bool{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) put(entity string, n schema.Node) {
	if s.nodes[entity] == nil {
		s.nodes[entity] = map[string]schema.Node{}
	}
	s.nodes[entity][n.ID()] = n
}

func (s *memStore) load(entity, id string) (schema.Node, error) {
	n, ok := s.nodes[entity][id]
	if !ok {
		return nil, apperrors.NewNotFound(entity, id)
	}
	return n.Clone(), nil
}

func (s *memStore) Get(_ context.Context, entity, id string) (schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(entity, id)
}

func (s *memStore) List(_ context.Context, entity string, opts graph.ListOptions) ([]schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []schema.Node{}
	for _, n := range s.nodes[entity] {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return paginate(out, opts.Skip, opts.Limit), nil
}

func (s *memStore) Related(_ context.Context, entity, id, field string, _ graph.ListOptions) ([]schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entity == schema.EntityChatSession && field == "messages" {
		return s.history(id, 0), nil
	}
	out := []schema.Node{}
	for k := range s.edges {
		if k.entity == entity && k.id == id && k.field == field {
			for _, nodes := range s.nodes {
				if n, ok := nodes[k.target]; ok {
					out = append(out, n.Clone())
				}
			}
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, entity string, props map[string]interface{}, links []graph.Link, check graph.CheckFunc) (schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := schema.Node(props).Clone()
	if pending.ID() == "" {
		pending["id"] = uuid.New().String()
	}
	for _, l := range links {
		owner, err := s.load(schema.EntityUser, l.TargetID)
		if err != nil {
			return nil, err
		}
		pending[l.Field] = owner
	}
	if (entity == schema.EntityRecipe || entity == schema.EntityChatSession) && pending["owner"] == nil {
		return nil, apperrors.NewValidation("owner", "is required")
	}
	if _, exists := s.nodes[entity][pending.ID()]; exists {
		return nil, apperrors.NewValidation("id", "already exists")
	}
	if err := check(nil, pending); err != nil {
		return nil, err
	}
	now := s.tick()
	pending["createdAt"] = now
	pending["updatedAt"] = now
	s.put(entity, pending)
	return pending.Clone(), nil
}

func (s *memStore) Update(_ context.Context, entity, id string, props map[string]interface{}, check graph.CheckFunc) (schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(entity, id)
	if err != nil {
		return nil, err
	}
	pending := current.Clone()
	for k, v := range props {
		pending[k] = v
	}
	if err := check(current, pending); err != nil {
		return nil, err
	}
	pending["updatedAt"] = s.tick()
	s.put(entity, pending)
	return pending.Clone(), nil
}

func (s *memStore) Delete(_ context.Context, entity, id string, check graph.CheckFunc) (graph.DeleteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(entity, id)
	if err != nil {
		return graph.DeleteInfo{}, err
	}
	if err := check(current, nil); err != nil {
		return graph.DeleteInfo{}, err
	}
	delete(s.nodes[entity], id)
	info := graph.DeleteInfo{NodesDeleted: 1}
	if entity == schema.EntityChatSession {
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m["session_id"] == id {
				info.NodesDeleted++
				info.RelationshipsDeleted++
				continue
			}
			kept = append(kept, m)
		}
		s.messages = kept
	}
	return info, nil
}

func (s *memStore) relate(entity, id, field, targetID string, check graph.RelationCheck, connect bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == targetID {
		return false, apperrors.NewValidation(field, "a node cannot be related to itself")
	}
	source, err := s.load(entity, id)
	if err != nil {
		return false, err
	}
	var target schema.Node
	for name := range s.nodes {
		if n, err := s.load(name, targetID); err == nil {
			target = n
		}
	}
	if target == nil {
		return false, apperrors.NewNotFound(field, targetID)
	}
	if err := check(source, target); err != nil {
		return false, err
	}
	k := edgeKey{entity, id, field, targetID}
	changed := s.edges[k] != connect
	if connect {
		s.edges[k] = true
	} else {
		delete(s.edges, k)
	}
	return changed, nil
}

func (s *memStore) Connect(_ context.Context, entity, id, field, targetID string, check graph.RelationCheck) (bool, error) {
	return s.relate(entity, id, field, targetID, check, true)
}

func (s *memStore) Disconnect(_ context.Context, entity, id, field, targetID string, check graph.RelationCheck) (bool, error) {
	return s.relate(entity, id, field, targetID, check, false)
}

func (s *memStore) SearchRecipes(_ context.Context, term string, skip, limit int) ([]schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paginate(s.search(term), skip, limit), nil
}

func (s *memStore) SearchRecipesCount(_ context.Context, term string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.search(term)), nil
}

func (s *memStore) search(term string) []schema.Node {
	term = strings.ToLower(strings.TrimSpace(term))
	out := []schema.Node{}
	if term == "" {
		return out
	}
	for _, n := range s.nodes[schema.EntityRecipe] {
		if strings.Contains(strings.ToLower(n.String("name")), term) {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *memStore) FindIngredientsByName(_ context.Context, name string) ([]schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.ToLower(strings.TrimSpace(name))
	out := []schema.Node{}
	for _, n := range s.nodes[schema.EntityIngredient] {
		if strings.Contains(n.String("name"), name) {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return paginate(out, 0, 30), nil
}

func (s *memStore) ChatHistory(_ context.Context, sessionID string, limit int) ([]schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(schema.EntityChatSession, sessionID); err != nil {
		return nil, err
	}
	return s.history(sessionID, limit), nil
}

func (s *memStore) history(sessionID string, limit int) []schema.Node {
	out := []schema.Node{}
	for _, m := range s.messages {
		if m["session_id"] == sessionID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["createdAt"].(time.Time).After(out[j]["createdAt"].(time.Time))
	})
	return paginate(out, 0, limit)
}

func (s *memStore) CreateChatMessage(_ context.Context, msg graph.NewChatMessage, check func(session schema.Node) error) (schema.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.load(schema.EntityChatSession, msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := check(session); err != nil {
		return nil, err
	}
	n := schema.Node{
		"id":           uuid.New().String(),
		"content":      msg.Content,
		"isOwnerHuman": msg.IsOwnerHuman,
		"createdAt":    s.tick(),
		"session_id":   msg.SessionID,
		"session":      session,
	}
	s.messages = append(s.messages, n)
	return n.Clone(), nil
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func paginate(nodes []schema.Node, skip, limit int) []schema.Node {
	if skip >= len(nodes) {
		return []schema.Node{}
	}
	nodes = nodes[skip:]
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes
}

func (s *memStore) seed(entity string, n schema.Node) schema.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := n["createdAt"]; !ok {
		now := s.tick()
		n["createdAt"] = now
		n["updatedAt"] = now
	}
	s.put(entity, n)
	return n
}
