package tree

import (
	"maps"
	"slices"
	"strings"
)

// absorb folds every sibling of the wildcard key into it.
func absorb[M ~map[string]V, V any](m M, merge func(dst, src V) V) {
	w, ok := m[Wildcard]
	if !ok || len(m) == 1 {
		return
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k == Wildcard {
			continue
		}
		w = merge(w, m[k])
		delete(m, k)
	}
	m[Wildcard] = w
}

// NormalizePermissions collapses every level holding a wildcard key into
// that key alone. It is idempotent.
func NormalizePermissions(t Tree) {
	absorb(t, mergeRegions)
	for _, regions := range t {
		absorb(regions, mergeAccounts)
		for _, accounts := range regions {
			absorb(accounts, mergeResources)
			for _, resources := range accounts {
				absorb(resources, mergeActions)
			}
		}
	}
}

// NormalizeResources applies the resource fallback and glob merge to the
// resources of one (service, region, account).
//
// An empty map gets a wildcard resource with no actions; the return value
// reports that so the caller can warn. Otherwise every key containing glob
// characters absorbs the other keys it matches.
func NormalizeResources(resources Resources) (fellBack bool) {
	if len(resources) == 0 {
		resources[Wildcard] = Actions{}
		return true
	}
	for _, pattern := range resources.Keys() {
		if _, ok := resources[pattern]; !ok || !isGlob(pattern) {
			continue
		}
		g, err := compileGlob(pattern)
		if err != nil {
			continue
		}
		var matches []string
		for _, k := range resources.Keys() {
			if k != pattern && g.MatchString(k) {
				matches = append(matches, k)
			}
		}
		if len(matches) == 0 {
			continue
		}
		merged := resources[pattern]
		for _, k := range matches {
			merged = mergeActions(merged, resources[k])
			delete(resources, k)
		}
		resources[pattern] = merged
	}
	return false
}

// NormalizeActions settles empty action sets and wildcard absorption for
// the resources of one (service, region, account).
//
// An empty resource is dropped when a sibling sharing its path prefix has
// real actions. Otherwise it falls back to the wildcard action; those
// resources are returned so the caller can warn.
func NormalizeActions(resources Resources) (fellBack []string) {
	for _, resource := range resources.Keys() {
		actions, ok := resources[resource]
		if !ok {
			continue
		}
		switch {
		case len(actions) == 0:
			if coveredBySibling(resources, resource) {
				delete(resources, resource)
				continue
			}
			actions.Add(Wildcard)
			fellBack = append(fellBack, resource)
		case actions.Has(Wildcard):
			resources[resource] = NewActions(Wildcard)
		}
	}
	return fellBack
}

func coveredBySibling(resources Resources, resource string) bool {
	prefix := strings.TrimRight(resource, Wildcard)
	for other, actions := range resources {
		if !strings.HasPrefix(other, prefix) && !strings.HasPrefix(resource, strings.TrimRight(other, Wildcard)) {
			continue
		}
		for a := range actions {
			if a != Wildcard {
				return true
			}
		}
	}
	return false
}

// Cleanup runs once after action matching. Regionless services are folded
// into the empty region. Resourceless actions are lifted off their
// resources onto the wildcard resource, dropping resources they emptied.
func Cleanup(t Tree, regionless map[string]bool, resourceless map[string][]string) {
	for service, regions := range t {
		if !regionless[service] {
			continue
		}
		var merged Accounts
		for _, region := range regions.Keys() {
			merged = mergeAccounts(merged, regions[region])
		}
		t[service] = Regions{"": merged}
	}

	for service, lifted := range resourceless {
		for _, accounts := range t[service] {
			for _, resources := range accounts {
				found := Actions{}
				for resource, actions := range resources {
					for _, a := range lifted {
						if actions.Has(a) {
							found.Add(a)
							delete(actions, a)
						}
					}
					if len(actions) == 0 {
						delete(resources, resource)
					}
				}
				if len(found) > 0 {
					resources[Wildcard] = found
				}
			}
		}
	}
}
