// Package mesh implements the agent runtime's task classification,
// topology selection, and dispatch (spec §4.6): a natural-language task
// description is classified, routed to a coordination topology, and
// executed across a small in-memory graph of control/worker nodes.
//
// Grounded on the original Python HybridMeshMixin/TopologySelector
// (original_source/core/mesh/{mixin,topology}.py) for the classification
// keywords, performance table, and error-amplification factors, and on the
// teacher's pkg/routing/hybrid.go for the Go shape of a router with
// pluggable strategies, stats, and a coarse mutex guarding shared state.
package mesh

import (
	"fmt"
	"sync"
)

// TaskCharacteristic is the result of classifying a task description.
type TaskCharacteristic string

const (
	Parallelizable TaskCharacteristic = "parallelizable"
	Sequential     TaskCharacteristic = "sequential"
	Exploratory    TaskCharacteristic = "exploratory"
	Complex        TaskCharacteristic = "complex"
)

// Topology is a coordination pattern among agents for a single task.
type Topology string

const (
	Independent   Topology = "independent"
	Centralized   Topology = "centralized"
	Decentralized Topology = "decentralized"
	Hybrid        Topology = "hybrid"
)

// Plane distinguishes strategic coordination nodes from tactical execution
// nodes in the mesh.
type Plane string

const (
	PlaneControl Plane = "control"
	PlaneWorker  Plane = "worker"
)

// Node is one participant in the mesh graph: either the single control node
// created at construction, or a worker node registered for a specific
// agent id. Connections is an adjacency set, not a capability — the mesh
// graph here is topology bookkeeping, not a transport.
type Node struct {
	ID          string
	AgentID     string
	Plane       Plane
	Metadata    map[string]interface{}
	connections map[string]struct{}
}

func newNode(id, agentID string, plane Plane, metadata map[string]interface{}) *Node {
	return &Node{ID: id, AgentID: agentID, Plane: plane, Metadata: metadata, connections: make(map[string]struct{})}
}

func (n *Node) connectTo(otherID string) {
	n.connections[otherID] = struct{}{}
}

// Connections returns the ids this node is connected to, for inspection.
func (n *Node) Connections() []string {
	out := make([]string, 0, len(n.connections))
	for id := range n.connections {
		out = append(out, id)
	}
	return out
}

// Route is the immutable result of routeTask: a classification, a selected
// topology, and the resolved mesh node ids to dispatch to.
type Route struct {
	TaskID               string
	Description          string
	Characteristic       TaskCharacteristic
	Topology             Topology
	TargetNodes          []string
	Reasoning            string
	EstimatedErrorFactor float64
	Parallel             bool
}

func (r Route) String() string {
	return fmt.Sprintf("route[%s]: %s -> %s (%d nodes, error_factor=%.1f)",
		r.TaskID, r.Characteristic, r.Topology, len(r.TargetNodes), r.EstimatedErrorFactor)
}

// Status is a point-in-time snapshot of the mesh, for inspection/telemetry.
type Status struct {
	Initialized    bool           `json:"initialized"`
	TotalNodes     int            `json:"total_nodes"`
	ControlNodes   int            `json:"control_nodes"`
	WorkerNodes    int            `json:"worker_nodes"`
	ActiveRoutes   int            `json:"active_routes"`
	TopologyCounts map[Topology]int `json:"topology_counts"`
}

// nodeTable is the mutex-guarded node/route registry shared by Classifier
// consumers. Kept as a small struct rather than embedding sync.Mutex
// directly in Mesh so the zero-value Mesh{} is unusable and construction is
// forced through New, matching the rest of this module's constructor
// discipline.
type nodeTable struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	routes map[string]Route
}
