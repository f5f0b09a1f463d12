package permissions

import "github.com/DrSkyle/rolesmith/pkg/engine/tree"

// Distribute assigns the actions found for a service across its resolved
// resources.
//
// Each resource takes the actions valid for the first matcher its path
// fits. Actions no resource took go to the default resource of every
// matcher that lists them. Services without matchers get every action on
// every resource.
func Distribute(service string, resources tree.Resources, actions tree.Actions) {
	matchers, ok := ResourceActionMatchers[service]
	if !ok {
		if len(resources) == 0 {
			resources[tree.Wildcard] = tree.Actions{}
		}
		for _, set := range resources {
			for a := range actions {
				set.Add(a)
			}
		}
		return
	}

	unused := actions.Clone()
	for _, resource := range resources.Keys() {
		for _, m := range matchers {
			if !m.Pattern.MatchString(resource) {
				continue
			}
			for a := range m.Actions {
				if actions.Has(a) {
					resources[resource].Add(a)
					delete(unused, a)
				}
			}
			break
		}
	}

	for _, a := range unused.Sorted() {
		for _, m := range matchers {
			if m.Actions.Has(a) {
				resources.Add(m.Default, a)
			}
		}
	}
}
