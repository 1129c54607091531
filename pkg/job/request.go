package job

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
)

// ErrInvalidRequest is returned when a request is missing required fields
// or names malformed partitions.
var ErrInvalidRequest = errors.New("invalid request")

// Request is the invocation payload.
type Request struct {
	Years  []int    `json:"years"`
	Grades []string `json:"grades"`
}

// Validate checks that both fields are present and every partition is
// well-formed.
func (r Request) Validate() error {
	if len(r.Years) == 0 {
		return fmt.Errorf("%w: years is required", ErrInvalidRequest)
	}
	if len(r.Grades) == 0 {
		return fmt.Errorf("%w: grades is required", ErrInvalidRequest)
	}
	for _, year := range r.Years {
		for _, grade := range r.Grades {
			if err := (partition.Key{Year: year, Grade: grade}).Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
	}
	return nil
}

// Partitions returns the work set: years outer, grades inner. Repeated
// years or grades are collapsed to their first occurrence so that no two
// workers ever write the same key.
func (r Request) Partitions() []partition.Key {
	return partition.Product(uniqueInts(r.Years), uniqueStrings(r.Grades))
}

func uniqueInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
