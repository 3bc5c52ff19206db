package optimization

import (
	"encoding/json"
	"fmt"
)

// Status describes how a solve terminated.
type Status int

const (
	// StatusConverged means the displacement or spread fell below epsilon.
	StatusConverged Status = iota
	// StatusIterationLimit means the iteration cap was hit first. The best
	// point found so far is still returned.
	StatusIterationLimit
	// StatusNumericFailure means the gradient became NaN or infinite and the
	// last finite iterate was returned.
	StatusNumericFailure
)

var statusStrings = map[Status]string{
	StatusConverged:      "converged",
	StatusIterationLimit: "iteration_limit",
	StatusNumericFailure: "numeric_failure",
}

func (s Status) String() string {
	if str, ok := statusStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
