// ABOUTME: Static route table mapping HTTP method and path to an operation
// ABOUTME: Supports {param} segments; no other pattern syntax

package gateway

import (
	"fmt"
	"strings"

	"github.com/dorc/dorc-gateway/internal/config"
)

// route is one compiled table entry. Segments are matched literally except
// for {param} placeholders, which match exactly one non-empty segment.
type route struct {
	method    string
	segments  []string
	operation string
}

// routeTable resolves a request to the operation it requires. The table is
// compiled once at startup and never mutated, so lookups are lock-free.
type routeTable struct {
	routes []route
}

func newRouteTable(configs []config.RouteConfig) (*routeTable, error) {
	table := &routeTable{routes: make([]route, 0, len(configs))}
	for _, rc := range configs {
		if !strings.HasPrefix(rc.Path, "/") {
			return nil, fmt.Errorf("route path must start with /: %q", rc.Path)
		}
		table.routes = append(table.routes, route{
			method:    strings.ToUpper(rc.Method),
			segments:  splitPath(rc.Path),
			operation: rc.Operation,
		})
	}
	return table, nil
}

// match returns the operation for a request, or false when no route
// covers it. First match wins in configuration order.
func (t *routeTable) match(method, path string) (string, bool) {
	segments := splitPath(path)
	for _, rt := range t.routes {
		if rt.method != method {
			continue
		}
		if matchSegments(rt.segments, segments) {
			return rt.operation, true
		}
	}
	return "", false
}

func matchSegments(pattern, actual []string) bool {
	if len(pattern) != len(actual) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if actual[i] == "" {
				return false
			}
			continue
		}
		if seg != actual[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
