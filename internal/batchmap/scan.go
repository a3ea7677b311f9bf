package batchmap

import "batchflow/internal/batch"

// ScanResult reports captured errors in a collection.
type ScanResult struct {
	ErrorFound bool  `json:"errorFound"`
	ErrorCount int   `json:"errorCount"`
	Indexes    []int `json:"indexes,omitempty"`
}

// Scan inspects steps for captured errors.
func Scan(steps []batch.StepRecord) ScanResult {
	var result ScanResult
	for i, step := range steps {
		if step.HasError() {
			result.Indexes = append(result.Indexes, i)
		}
	}
	result.ErrorCount = len(result.Indexes)
	result.ErrorFound = result.ErrorCount > 0
	return result
}
