package mesh

// performanceTable holds the empirical performance delta (from
// arXiv:2512.08296, as cited by the original TopologySelector) for each
// non-independent topology against each task characteristic. Values and
// the table's declared iteration order (centralized, decentralized,
// hybrid) are carried over unchanged — ties in score resolve in this
// order.
var topologyOrder = []Topology{Centralized, Decentralized, Hybrid}

var performanceTable = map[Topology]map[TaskCharacteristic]float64{
	Centralized: {
		Parallelizable: 0.808,
		Sequential:     -0.39,
		Exploratory:    0.002,
		Complex:        0.40,
	},
	Decentralized: {
		Parallelizable: 0.30,
		Sequential:     -0.50,
		Exploratory:    0.092,
		Complex:        0.25,
	},
	Hybrid: {
		Parallelizable: 0.70,
		Sequential:     -0.20,
		Exploratory:    0.06,
		Complex:        0.55,
	},
}

// errorFactors is the known error-amplification factor per topology: how
// much one agent's error propagates when coordinated that way.
var errorFactors = map[Topology]float64{
	Independent:   17.2,
	Centralized:   4.4,
	Decentralized: 8.0,
	Hybrid:        5.0,
}

// ErrorFactor returns t's error-amplification factor, or 10.0 for an
// unrecognised topology (matching the original selector's fallback).
func ErrorFactor(t Topology) float64 {
	if f, ok := errorFactors[t]; ok {
		return f
	}
	return 10.0
}

const saturationThreshold = 0.45

// SaturationAdvisory reports whether baselinePerformance exceeds the
// saturation threshold — coordination overhead may no longer pay for
// itself above this point — without changing the selected topology.
func SaturationAdvisory(baselinePerformance float64) bool {
	return baselinePerformance > saturationThreshold
}

// SelectTopology picks a coordination topology for characteristic.
// Sequential always yields Independent — multi-agent coordination on a
// sequential task only adds overhead (per the original's "avoid MAS"
// reasoning). Otherwise each non-independent topology is scored as
// performance(topology, characteristic) minus an error-containment penalty
// proportional to (errorFactor - errorFactor(Centralized)) * 0.05, and the
// highest-scoring topology wins; ties resolve in topologyOrder's order
// because that's the order scores are compared in.
func SelectTopology(characteristic TaskCharacteristic, baselinePerformance float64) Topology {
	if characteristic == Sequential {
		return Independent
	}

	best := topologyOrder[0]
	bestScore := topologyScore(best, characteristic)
	for _, t := range topologyOrder[1:] {
		score := topologyScore(t, characteristic)
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func topologyScore(t Topology, characteristic TaskCharacteristic) float64 {
	performance := performanceTable[t][characteristic]
	penalty := (errorFactors[t] - errorFactors[Centralized]) * 0.05
	return performance - penalty
}
