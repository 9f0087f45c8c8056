package discovery

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// FilterNamespaces partitions the full namespace list into the scan set and
// the skip set. Matching is case-sensitive and exact; input order is
// preserved within each partition.
func FilterNamespaces(namespaces []string, skip sets.Set[string]) (scan, skipped []string) {
	scan = make([]string, 0, len(namespaces))
	skipped = make([]string, 0)

	for _, ns := range namespaces {
		if skip.Has(ns) {
			skipped = append(skipped, ns)
			continue
		}
		scan = append(scan, ns)
	}
	return scan, skipped
}
