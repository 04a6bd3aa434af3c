package ensemble

import (
	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

// leafMarker is the feature index that marks a leaf node.
const leafMarker = -1

// TreeNode is one node of a flattened decision tree. Internal nodes route
// on Feature <= Threshold; leaves (Feature == -1) carry the regression
// value.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Forest is a bagged ensemble of regression trees over scaled features.
type Forest struct {
	Scaler *StandardScaler `json:"scaler"`
	Trees  [][]TreeNode    `json:"trees"`
}

// Predict averages the per-tree estimates for a feature vector.
func (f *Forest) Predict(v features.Vector) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
			"forest has no trees", nil)
	}
	x := v.Ordered()
	if f.Scaler != nil {
		scaled, err := f.Scaler.Transform(x)
		if err != nil {
			return 0, err
		}
		x = scaled
	}

	var sum float64
	for _, tree := range f.Trees {
		val, err := evalTree(tree, x)
		if err != nil {
			return 0, err
		}
		sum += val
	}
	return sum / float64(len(f.Trees)), nil
}

// evalTree walks a flattened tree from the root at index 0. The node
// count bounds the walk so a cyclic index table cannot loop forever.
func evalTree(nodes []TreeNode, x []float64) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(nodes); steps++ {
		if idx < 0 || idx >= len(nodes) {
			return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
				"tree node index out of range", nil)
		}
		node := nodes[idx]
		if node.Feature == leafMarker {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(x) {
			return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
				"tree references unknown feature", nil)
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return 0, types.NewAppError(types.ErrCodeInternalModelCorruption,
		"tree traversal did not terminate", nil)
}
