package mesh

import "testing"

func TestSelectTopology_SequentialIsAlwaysIndependent(t *testing.T) {
	if got := SelectTopology(Sequential, 0.0); got != Independent {
		t.Errorf("SelectTopology(Sequential) = %s, want %s", got, Independent)
	}
	if got := SelectTopology(Sequential, 0.9); got != Independent {
		t.Errorf("SelectTopology(Sequential, high baseline) = %s, want %s", got, Independent)
	}
}

func TestSelectTopology_ParallelizablePrefersCentralized(t *testing.T) {
	// Centralized has the highest raw performance (0.808) and the lowest
	// error-containment penalty (its own factor is the zero-point), so it
	// should win outright for a parallelizable task.
	if got := SelectTopology(Parallelizable, 0.0); got != Centralized {
		t.Errorf("SelectTopology(Parallelizable) = %s, want %s", got, Centralized)
	}
}

func TestSelectTopology_Exploratory(t *testing.T) {
	// Decentralized has the highest raw performance for exploratory tasks,
	// but its error-amplification penalty (factor 8.0) outweighs that edge
	// once error containment is preferred, so Hybrid wins on net score.
	if got := SelectTopology(Exploratory, 0.0); got != Hybrid {
		t.Errorf("SelectTopology(Exploratory) = %s, want %s", got, Hybrid)
	}
}

func TestSelectTopology_ComplexPrefersHybrid(t *testing.T) {
	if got := SelectTopology(Complex, 0.0); got != Hybrid {
		t.Errorf("SelectTopology(Complex) = %s, want %s", got, Hybrid)
	}
}

func TestErrorFactor_KnownTopologies(t *testing.T) {
	cases := map[Topology]float64{
		Independent:   17.2,
		Centralized:   4.4,
		Decentralized: 8.0,
		Hybrid:        5.0,
	}
	for topology, want := range cases {
		if got := ErrorFactor(topology); got != want {
			t.Errorf("ErrorFactor(%s) = %v, want %v", topology, got, want)
		}
	}
}

func TestSaturationAdvisory(t *testing.T) {
	if SaturationAdvisory(0.3) {
		t.Error("SaturationAdvisory(0.3) = true, want false (below threshold)")
	}
	if !SaturationAdvisory(0.9) {
		t.Error("SaturationAdvisory(0.9) = false, want true (above threshold)")
	}
}
