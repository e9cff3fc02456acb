package relation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
)

// Rule names of the graph invariants.
const (
	RuleIsolatedNode      = "isolated_node"
	RuleMultipleProducers = "multiple_producers"
	RuleInputOutputLoop   = "input_output_loop"
	RuleDisconnectedGraph = "disconnected_graph"
	RuleCyclicChain       = "cyclic_chain"
)

// Violation is one broken graph invariant over the current triple set. Nodes
// lists every node involved; Message is the correction instruction shown to
// the model verbatim.
type Violation struct {
	Rule    string
	Nodes   []string
	Message string
}

// Validate checks the five graph invariants over the triple set and returns
// every violation. It is a pure function of its inputs: violations are
// computed fresh on every call and nothing is cached between calls. nodeIDs
// is the full set of nodes that must be connected.
func Validate(nodeIDs []string, triples []common.Triple) []Violation {
	violations := make([]Violation, 0)
	violations = append(violations, checkIsolatedNodes(nodeIDs, triples)...)
	violations = append(violations, checkSingleProducer(triples)...)
	violations = append(violations, checkInputOutputLoops(triples)...)
	violations = append(violations, checkConnectivity(nodeIDs, triples)...)
	violations = append(violations, checkAcyclicity(triples)...)
	return violations
}

// checkIsolatedNodes flags every node that appears in no triple at all.
func checkIsolatedNodes(nodeIDs []string, triples []common.Triple) []Violation {
	connected := make(map[string]bool, len(nodeIDs))
	for _, t := range triples {
		connected[t.Source] = true
		connected[t.Target] = true
	}

	violations := make([]Violation, 0)
	for _, id := range nodeIDs {
		if !connected[id] {
			violations = append(violations, Violation{
				Rule:    RuleIsolatedNode,
				Nodes:   []string{id},
				Message: fmt.Sprintf("Node %q is not connected to anything. Every node must take part in at least one relationship.", id),
			})
		}
	}
	return violations
}

// checkSingleProducer flags every node that is the has_output target of more
// than one distinct process.
func checkSingleProducer(triples []common.Triple) []Violation {
	producers := make(map[string][]string)
	for _, t := range triples {
		if t.Relation != schema.HasOutput {
			continue
		}
		if !contains(producers[t.Target], t.Source) {
			producers[t.Target] = append(producers[t.Target], t.Source)
		}
	}

	targets := make([]string, 0, len(producers))
	for target := range producers {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	violations := make([]Violation, 0)
	for _, target := range targets {
		if len(producers[target]) < 2 {
			continue
		}
		sort.Strings(producers[target])
		nodes := append([]string{target}, producers[target]...)
		violations = append(violations, Violation{
			Rule:  RuleMultipleProducers,
			Nodes: nodes,
			Message: fmt.Sprintf("Node %q is produced by more than one process (%s). A node has exactly one producer; remove the wrong has_output relationships.",
				target, strings.Join(producers[target], ", ")),
		})
	}
	return violations
}

// checkInputOutputLoops flags every node that is both is_input to and
// has_output of the same process.
func checkInputOutputLoops(triples []common.Triple) []Violation {
	inputs := make(map[[2]string]bool)
	for _, t := range triples {
		if t.Relation == schema.IsInput {
			inputs[[2]string{t.Source, t.Target}] = true
		}
	}

	violations := make([]Violation, 0)
	seen := make(map[[2]string]bool)
	for _, t := range triples {
		if t.Relation != schema.HasOutput {
			continue
		}
		key := [2]string{t.Target, t.Source}
		if inputs[key] && !seen[key] {
			seen[key] = true
			violations = append(violations, Violation{
				Rule:  RuleInputOutputLoop,
				Nodes: []string{t.Target, t.Source},
				Message: fmt.Sprintf("Node %q is both input and output of process %q. A node cannot be raw material and product of the same step.",
					t.Target, t.Source),
			})
		}
	}
	return violations
}

// checkConnectivity flags the nodes outside the largest undirected component
// when the graph splits into more than one.
func checkConnectivity(nodeIDs []string, triples []common.Triple) []Violation {
	if len(nodeIDs) == 0 {
		return nil
	}

	adjacency := make(map[string][]string)
	for _, t := range triples {
		adjacency[t.Source] = append(adjacency[t.Source], t.Target)
		adjacency[t.Target] = append(adjacency[t.Target], t.Source)
	}

	visited := make(map[string]bool, len(nodeIDs))
	components := make([][]string, 0)
	for _, id := range nodeIDs {
		if visited[id] {
			continue
		}
		component := make([]string, 0)
		stack := []string{id}
		visited[id] = true
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, current)
			for _, next := range adjacency[current] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}

	if len(components) <= 1 {
		return nil
	}

	// The largest component is treated as the main graph; everything else
	// needs to be connected to it.
	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})

	stranded := make([]string, 0)
	for _, component := range components[1:] {
		stranded = append(stranded, component...)
	}
	sort.Strings(stranded)

	return []Violation{{
		Rule:  RuleDisconnectedGraph,
		Nodes: stranded,
		Message: fmt.Sprintf("The graph falls apart into %d disconnected parts. Connect the following nodes to the rest of the graph: %s.",
			len(components), strings.Join(stranded, ", ")),
	}}
}

// checkAcyclicity flags cycles in the directed is_input/has_output chain.
// is_input points from material into a process, has_output from a process to
// its product, so following both directions traces the production chain.
func checkAcyclicity(triples []common.Triple) []Violation {
	adjacency := make(map[string][]string)
	nodes := make([]string, 0)
	seen := make(map[string]bool)
	for _, t := range triples {
		if t.Relation != schema.IsInput && t.Relation != schema.HasOutput {
			continue
		}
		adjacency[t.Source] = append(adjacency[t.Source], t.Target)
		for _, id := range []string{t.Source, t.Target} {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}
	sort.Strings(nodes)

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		state[id] = visiting
		path = append(path, id)
		for _, next := range adjacency[id] {
			switch state[next] {
			case visiting:
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle = append([]string{}, path[start:]...)
				return true
			case unvisited:
				if visit(next, path) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, id := range nodes {
		if state[id] == unvisited && visit(id, nil) {
			return []Violation{{
				Rule:  RuleCyclicChain,
				Nodes: cycle,
				Message: fmt.Sprintf("The production chain loops back on itself through %s. Manufacturing chains must move strictly forward; break the cycle.",
					strings.Join(cycle, " -> ")),
			}}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
