// Package partition defines the (year, grade) unit of fetch-and-write work
// and the deterministic names derived from it.
package partition

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// ObjectName is the file name of every partition's output object.
const ObjectName = "enrollment.json"

// Key identifies one partition of enrollment data.
type Key struct {
	// Year is the school year (e.g. 2020)
	Year int `json:"year"`

	// Grade is the API grade identifier (e.g. "grade-pk", "grade-1", "99")
	Grade string `json:"grade"`
}

// String returns a compact human-readable form used in logs.
//
// Example:
//
//	2020/grade-pk
func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Year, k.Grade)
}

// ObjectKey returns the storage key of the partition's output object.
//
// Format: {year}/{grade}/enrollment.json
func (k Key) ObjectKey() string {
	return strconv.Itoa(k.Year) + "/" + k.Grade + "/" + ObjectName
}

// ObjectKeyWithPrefix returns ObjectKey nested under prefix.
// An empty prefix yields ObjectKey unchanged.
func (k Key) ObjectKeyWithPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return k.ObjectKey()
	}
	return path.Join(prefix, k.ObjectKey())
}

// EndpointURL returns the first-page URL of the partition under baseURL.
// Only the path segments are built here; subsequent pages always come from
// the server's "next" cursor.
//
// Example:
//
//	https://educationdata.urban.org/api/v1/schools/ccd/enrollment/2020/grade-pk/
func (k Key) EndpointURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return base + "/" + strconv.Itoa(k.Year) + "/" + url.PathEscape(k.Grade) + "/"
}

// Validate reports whether the key is well-formed.
func (k Key) Validate() error {
	if k.Year <= 0 {
		return fmt.Errorf("invalid year %d", k.Year)
	}
	if strings.TrimSpace(k.Grade) == "" {
		return fmt.Errorf("grade is required")
	}
	if strings.Contains(k.Grade, "/") {
		return fmt.Errorf("grade %q must not contain '/'", k.Grade)
	}
	return nil
}

// Product returns the Cartesian product of years and grades.
// Years form the outer loop and grades the inner loop, so the order is
// deterministic for identical inputs.
func Product(years []int, grades []string) []Key {
	keys := make([]Key, 0, len(years)*len(grades))
	for _, year := range years {
		for _, grade := range grades {
			keys = append(keys, Key{Year: year, Grade: grade})
		}
	}
	return keys
}
