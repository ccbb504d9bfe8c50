package hypergraph

import (
	"encoding/json"
	"fmt"
	"math"
)

// CostValue wraps a float64 epistemic cost so it marshals as the JSON
// strings "Infinity" / "-Infinity" instead of failing encoding/json's
// refusal to encode non-finite floats.
type CostValue float64

func (v CostValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return json.Marshal("Infinity")
	case math.IsInf(f, -1):
		return json.Marshal("-Infinity")
	default:
		return json.Marshal(f)
	}
}

func (v *CostValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "Infinity":
			*v = CostValue(math.Inf(1))
			return nil
		case "-Infinity":
			*v = CostValue(math.Inf(-1))
			return nil
		default:
			return fmt.Errorf("hypergraph.CostValue: unrecognized string %q", s)
		}
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = CostValue(f)
	return nil
}
