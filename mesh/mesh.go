package mesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vertice-labs/agentcore/core"
)

// ExecuteFunc is the unit of work dispatched to a mesh node. nodeID is the
// mesh node the call is being made on behalf of; the empty string is
// passed for the single direct call of an Independent route.
type ExecuteFunc func(ctx context.Context, nodeID string) (interface{}, error)

// NodeResult is one node's outcome from a mesh dispatch.
type NodeResult struct {
	NodeID string
	Value  interface{}
	Err    error
}

// ExecuteResult is the aggregate outcome of executeViaMesh.
type ExecuteResult struct {
	Topology Topology
	Results  []NodeResult
}

// Mesh is the agent runtime's coordination graph: a single control node,
// zero or more registered worker nodes, and the task routes dispatched
// across them. The zero value is not usable; construct with New.
type Mesh struct {
	logger core.Logger

	table         nodeTable
	controlNodeID string
}

// Config configures a Mesh. Name labels the control node's AgentID (the
// orchestrator itself); Status and the mesh's log lines do not report it.
type Config struct {
	Name   string
	Logger core.Logger
}

// New constructs a Mesh with a single control-plane node already
// registered, mirroring the original HybridMeshMixin's lazy _init_mesh
// (here eager, since Go constructors don't have Python's hasattr-guard
// pattern for deferred initialization).
func New(cfg Config) *Mesh {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	name := cfg.Name
	if name == "" {
		name = "orchestrator"
	}

	controlID := uuid.NewString()
	m := &Mesh{
		logger: core.WithComponent(logger, "core/mesh"),
		table: nodeTable{
			nodes:  map[string]*Node{controlID: newNode(controlID, name, PlaneControl, nil)},
			routes: make(map[string]Route),
		},
		controlNodeID: controlID,
	}
	m.logger.Info("mesh initialized", map[string]interface{}{"control_node": controlID})
	return m
}

// RegisterWorker adds a worker node for agentID, connecting it bidirectionally
// to the control node. If a worker already exists for agentID it is
// returned unchanged rather than duplicated.
func (m *Mesh) RegisterWorker(agentID string, metadata map[string]interface{}) *Node {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	return m.registerWorkerLocked(agentID, metadata)
}

func (m *Mesh) registerWorkerLocked(agentID string, metadata map[string]interface{}) *Node {
	if existing := m.findByAgentLocked(agentID); existing != nil {
		return existing
	}

	node := newNode(uuid.NewString(), agentID, PlaneWorker, metadata)
	node.connectTo(m.controlNodeID)
	m.table.nodes[m.controlNodeID].connectTo(node.ID)
	m.table.nodes[node.ID] = node

	m.logger.Debug("registered worker", map[string]interface{}{"agent_id": agentID, "node_id": node.ID})
	return node
}

func (m *Mesh) findByAgentLocked(agentID string) *Node {
	for _, n := range m.table.nodes {
		if n.AgentID == agentID {
			return n
		}
	}
	return nil
}

// RouteTask classifies description, selects a topology, resolves
// targetAgents to mesh node ids (registering workers as needed), and
// stores the resulting immutable Route under taskID.
func (m *Mesh) RouteTask(taskID, description string, targetAgents []string) Route {
	characteristic := ClassifyTask(description)
	topology := SelectTopology(characteristic, 0.0)

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	targetNodes := make([]string, 0, len(targetAgents))
	for _, agentID := range targetAgents {
		node := m.registerWorkerLocked(agentID, nil)
		targetNodes = append(targetNodes, node.ID)
	}

	route := Route{
		TaskID:               taskID,
		Description:          description,
		Characteristic:       characteristic,
		Topology:             topology,
		TargetNodes:          targetNodes,
		Reasoning:            fmt.Sprintf("task classified as %s, selected %s topology", characteristic, topology),
		EstimatedErrorFactor: ErrorFactor(topology),
		Parallel:             characteristic == Parallelizable,
	}
	m.table.routes[taskID] = route

	m.logger.Info("routed task", map[string]interface{}{"task_id": taskID, "topology": string(topology)})
	return route
}

// Route returns the stored route for taskID, if any.
func (m *Mesh) Route(taskID string) (Route, bool) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()
	r, ok := m.table.routes[taskID]
	return r, ok
}

// ExecuteViaMesh looks up taskID's route and dispatches fn according to its
// topology: Independent makes one direct call, Centralized delegates
// sequentially from the control node in target order, Decentralized fans
// out concurrently with no coordinator, and Hybrid runs one control-plane
// planning call followed by concurrent worker-plane execution. The three
// coordinated modes are distinguished by their scheduling, not merely a
// label: Centralized's calls complete one at a time in order; the other
// two overlap in time.
func (m *Mesh) ExecuteViaMesh(ctx context.Context, taskID string, fn ExecuteFunc) (*ExecuteResult, error) {
	route, ok := m.Route(taskID)
	if !ok {
		return nil, &core.RouteNotFoundError{TaskID: taskID}
	}

	switch route.Topology {
	case Centralized:
		return m.executeCentralized(ctx, route, fn)
	case Decentralized:
		return m.executeDecentralized(ctx, route, fn)
	case Hybrid:
		return m.executeHybrid(ctx, route, fn)
	default: // Independent
		value, err := fn(ctx, "")
		return &ExecuteResult{Topology: route.Topology, Results: []NodeResult{{Value: value, Err: err}}}, err
	}
}

// executeCentralized calls fn once per target node, strictly in order,
// waiting for each call to return before starting the next — the control
// node is the sole delegator.
func (m *Mesh) executeCentralized(ctx context.Context, route Route, fn ExecuteFunc) (*ExecuteResult, error) {
	m.logger.Debug("centralized execution", map[string]interface{}{"task_id": route.TaskID})

	results := make([]NodeResult, len(route.TargetNodes))
	var firstErr error
	for i, nodeID := range route.TargetNodes {
		value, err := fn(ctx, nodeID)
		results[i] = NodeResult{NodeID: nodeID, Value: value, Err: err}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return &ExecuteResult{Topology: route.Topology, Results: results}, firstErr
}

// executeDecentralized calls fn for every target node concurrently, with
// no node waiting on another — peer execution with no coordinator.
func (m *Mesh) executeDecentralized(ctx context.Context, route Route, fn ExecuteFunc) (*ExecuteResult, error) {
	m.logger.Debug("decentralized execution", map[string]interface{}{"task_id": route.TaskID})
	return dispatchConcurrent(ctx, route, route.TargetNodes, fn)
}

// executeHybrid runs one synchronous planning call on the control node,
// then fans the target nodes out concurrently — control-plane planning
// followed by concurrent worker-plane execution.
func (m *Mesh) executeHybrid(ctx context.Context, route Route, fn ExecuteFunc) (*ExecuteResult, error) {
	m.logger.Debug("hybrid execution", map[string]interface{}{"task_id": route.TaskID})

	planValue, err := fn(ctx, m.controlNodeID)
	planResult := NodeResult{NodeID: m.controlNodeID, Value: planValue, Err: err}
	if err != nil {
		return &ExecuteResult{Topology: route.Topology, Results: []NodeResult{planResult}}, err
	}

	workerResult, err := dispatchConcurrent(ctx, route, route.TargetNodes, fn)
	workerResult.Results = append([]NodeResult{planResult}, workerResult.Results...)
	return workerResult, err
}

// dispatchConcurrent runs fn for every nodeID in parallel via errgroup,
// returning results ordered by nodeIDs' original index (not completion
// order) so callers can correlate results to nodes regardless of which
// goroutine finished first.
func dispatchConcurrent(ctx context.Context, route Route, nodeIDs []string, fn ExecuteFunc) (*ExecuteResult, error) {
	results := make([]NodeResult, len(nodeIDs))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var firstErr error

	for i, nodeID := range nodeIDs {
		i, nodeID := i, nodeID
		g.Go(func() error {
			value, err := fn(gctx, nodeID)
			results[i] = NodeResult{NodeID: nodeID, Value: value, Err: err}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil // collect every result; don't let errgroup cancel siblings on first error
		})
	}
	_ = g.Wait()

	return &ExecuteResult{Topology: route.Topology, Results: results}, firstErr
}

// TopologyRecommendation is the result of a what-if topology query that
// does not create a route.
type TopologyRecommendation struct {
	Characteristic  TaskCharacteristic
	Topology        Topology
	ErrorFactor     float64
	Parallel        bool
	SaturationWarn  bool
}

// RecommendTopology classifies description and reports which topology
// would be selected for the given agentBaseline, without registering a
// route. A true SaturationWarn means agentBaseline exceeds the saturation
// threshold — coordination overhead may no longer be worth it — but the
// recommended topology is returned regardless.
func (m *Mesh) RecommendTopology(description string, agentBaseline float64) TopologyRecommendation {
	characteristic := ClassifyTask(description)
	topology := SelectTopology(characteristic, agentBaseline)
	return TopologyRecommendation{
		Characteristic: characteristic,
		Topology:       topology,
		ErrorFactor:    ErrorFactor(topology),
		Parallel:       characteristic == Parallelizable,
		SaturationWarn: SaturationAdvisory(agentBaseline),
	}
}

// Status returns a point-in-time snapshot of the mesh graph and its routes.
func (m *Mesh) Status() Status {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	counts := map[Topology]int{Independent: 0, Centralized: 0, Decentralized: 0, Hybrid: 0}
	for _, r := range m.table.routes {
		counts[r.Topology]++
	}

	workers := 0
	for _, n := range m.table.nodes {
		if n.Plane == PlaneWorker {
			workers++
		}
	}

	return Status{
		Initialized:    true,
		TotalNodes:     len(m.table.nodes),
		ControlNodes:   1,
		WorkerNodes:    workers,
		ActiveRoutes:   len(m.table.routes),
		TopologyCounts: counts,
	}
}
