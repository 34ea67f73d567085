// Package dependency maintains the service-dependency topology used to
// score hypothesis plausibility (§4.4/§4.5) and downstream blast radius
// (§4.8).
package dependency

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// criticalityScores maps the coarse criticality tier to a numeric score.
var criticalityScores = map[types.Criticality]float64{
	types.CriticalityLow:      0.3,
	types.CriticalityMedium:   0.5,
	types.CriticalityHigh:     0.7,
	types.CriticalityCritical: 0.9,
}

const (
	directUpstreamBoost     = 0.15
	transitiveUpstreamBoost = 0.08
	downstreamPenalty       = -0.05
)

// Graph is a process-wide, read-mostly service topology. Callers load it
// once from a declarative config file and query it concurrently; Load
// itself is not safe to call concurrently with queries.
type Graph struct {
	nodes map[string]*types.ServiceDependency
}

// NewGraph builds an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*types.ServiceDependency)}
}

// Load populates the graph from a flat list of declared services in two
// passes: first create every node, then populate reverse (DependedBy) edges
// from the forward DependsOn lists.
func (g *Graph) Load(deps []types.ServiceDependency) {
	g.nodes = make(map[string]*types.ServiceDependency, len(deps))
	for i := range deps {
		d := deps[i]
		d.DependedBy = nil
		node := d
		g.nodes[d.Service] = &node
	}
	for _, d := range g.nodes {
		for _, up := range d.DependsOn {
			if upstream, ok := g.nodes[up]; ok {
				upstream.DependedBy = append(upstream.DependedBy, d.Service)
			}
		}
	}
}

// document is the on-disk shape of the declarative dependency config.
type document struct {
	Services []types.ServiceDependency `yaml:"services"`
}

// LoadFile reads the declarative service-dependency config at path and
// builds a populated Graph in one call, for process startup.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FailedToWithDetails("read dependency graph config", "dependency", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(path, "yaml", err)
	}
	g := NewGraph()
	g.Load(doc.Services)
	return g, nil
}

// Node returns the raw dependency record for a service, if known.
func (g *Graph) Node(service string) (types.ServiceDependency, bool) {
	n, ok := g.nodes[service]
	if !ok {
		return types.ServiceDependency{}, false
	}
	return *n, true
}

// Upstream returns the direct dependencies of a service.
func (g *Graph) Upstream(service string) []string {
	n, ok := g.nodes[service]
	if !ok {
		return nil
	}
	return n.DependsOn
}

// Downstream returns the services that directly depend on service.
func (g *Graph) Downstream(service string) []string {
	n, ok := g.nodes[service]
	if !ok {
		return nil
	}
	return n.DependedBy
}

// IsUpstreamOf reports whether a is a direct or transitive upstream
// dependency of b (DFS with a visited set so cycles terminate).
func (g *Graph) IsUpstreamOf(a, b string) bool {
	visited := make(map[string]bool)
	return g.isUpstreamOf(a, b, visited)
}

func (g *Graph) isUpstreamOf(a, b string, visited map[string]bool) bool {
	node, ok := g.nodes[b]
	if !ok || visited[b] {
		return false
	}
	visited[b] = true
	for _, up := range node.DependsOn {
		if up == a {
			return true
		}
		if g.isUpstreamOf(a, up, visited) {
			return true
		}
	}
	return false
}

// isDirectUpstream reports whether a appears in b's immediate DependsOn list.
func (g *Graph) isDirectUpstream(a, b string) bool {
	node, ok := g.nodes[b]
	if !ok {
		return false
	}
	for _, up := range node.DependsOn {
		if up == a {
			return true
		}
	}
	return false
}

// DependencyBoost scores how plausible it is that hypothesisedCause
// explains an incident observed on affected, per §4.4.
func (g *Graph) DependencyBoost(affected, hypothesisedCause string) float64 {
	if affected == hypothesisedCause {
		return 0
	}
	if g.isDirectUpstream(hypothesisedCause, affected) {
		return directUpstreamBoost
	}
	if g.IsUpstreamOf(hypothesisedCause, affected) {
		return transitiveUpstreamBoost
	}
	if g.isDirectUpstream(affected, hypothesisedCause) || g.IsUpstreamOf(affected, hypothesisedCause) {
		return downstreamPenalty
	}
	return 0
}

// CriticalityScore maps a service's criticality tier to its numeric score,
// defaulting to the medium score for unknown services.
func (g *Graph) CriticalityScore(service string) float64 {
	n, ok := g.nodes[service]
	if !ok {
		return criticalityScores[types.CriticalityMedium]
	}
	return criticalityScores[n.Criticality]
}

// ImpactPath returns the chain of services between a root cause and an
// affected service (inclusive), supplementing the graph with the
// human-readable propagation trace the original Python implementation's
// dependency_map.compute_impact_path produced. Returns nil if no such
// upstream chain exists.
func (g *Graph) ImpactPath(cause, affected string) []string {
	if cause == affected {
		return []string{cause}
	}
	path, ok := g.findPath(cause, affected, map[string]bool{})
	if !ok {
		return nil
	}
	return path
}

func (g *Graph) findPath(cause, affected string, visited map[string]bool) ([]string, bool) {
	node, ok := g.nodes[affected]
	if !ok || visited[affected] {
		return nil, false
	}
	visited[affected] = true
	for _, up := range node.DependsOn {
		if up == cause {
			return []string{cause, affected}, true
		}
		if sub, ok := g.findPath(cause, up, visited); ok {
			return append(sub, affected), true
		}
	}
	return nil, false
}

// ValidateService returns an error if service is unknown to the graph,
// useful before queries that should fail fast on a typo'd name.
func (g *Graph) ValidateService(service string) error {
	if _, ok := g.nodes[service]; !ok {
		return errors.ValidationError("service", "unknown service: "+service)
	}
	return nil
}
