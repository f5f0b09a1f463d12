// Package tree holds the permission tree built for a single function scan:
// service → region → account → resource → actions.
//
// Every level is an explicit map type. Nothing is created on read; callers
// use Ensure or Add to materialize a path.
package tree

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Wildcard is the key used at any level when a value could not be resolved.
const Wildcard = "*"

type (
	Actions   map[string]struct{}
	Resources map[string]Actions
	Accounts  map[string]Resources
	Regions   map[string]Accounts
	Tree      map[string]Regions
)

// Leaf is one (service, region, account, resource) path with its actions.
type Leaf struct {
	Service  string
	Region   string
	Account  string
	Resource string
	Actions  []string
}

// ARN renders the leaf as an AWS resource name.
func (l Leaf) ARN() string {
	return ARN(l.Service, l.Region, l.Account, l.Resource)
}

// ARN builds arn:aws:{service}:{region}:{account}:{resource}. A path that
// is wildcard in every dimension below the service renders as "*".
func ARN(service, region, account, resource string) string {
	if region == Wildcard && account == Wildcard && resource == Wildcard {
		return Wildcard
	}
	return fmt.Sprintf("arn:aws:%s:%s:%s:%s", service, region, account, resource)
}

// ParseARN splits an ARN into the tree path it renders from.
func ParseARN(arn string) (service, region, account, resource string, ok bool) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return "", "", "", "", false
	}
	return parts[2], parts[3], parts[4], parts[5], true
}

func New() Tree { return Tree{} }

// Ensure marks (service, region, account) as touched and returns its
// resource map, creating the intermediate nodes if needed.
func (t Tree) Ensure(service, region, account string) Resources {
	regions, ok := t[service]
	if !ok {
		regions = Regions{}
		t[service] = regions
	}
	accounts, ok := regions[region]
	if !ok {
		accounts = Accounts{}
		regions[region] = accounts
	}
	resources, ok := accounts[account]
	if !ok {
		resources = Resources{}
		accounts[account] = resources
	}
	return resources
}

// Add records actions on a resource. Calling it with no actions still
// creates the resource with an empty action set.
func (t Tree) Add(service, region, account, resource string, actions ...string) {
	t.Ensure(service, region, account).Add(resource, actions...)
}

// Lookup returns the resource map for a path without creating it.
func (t Tree) Lookup(service, region, account string) (Resources, bool) {
	resources, ok := t[service][region][account]
	return resources, ok
}

// Services returns the service keys in sorted order.
func (t Tree) Services() []string { return slices.Sorted(maps.Keys(t)) }

func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = v.Clone()
	}
	return out
}

// Merge deep-merges other into t. Action sets are unioned.
func (t Tree) Merge(other Tree) {
	for k, v := range other {
		t[k] = mergeRegions(t[k], v)
	}
}

// Leaves flattens the tree in sorted path order.
func (t Tree) Leaves() []Leaf {
	var out []Leaf
	for _, service := range t.Services() {
		regions := t[service]
		for _, region := range regions.Keys() {
			accounts := regions[region]
			for _, account := range accounts.Keys() {
				resources := accounts[account]
				for _, resource := range resources.Keys() {
					out = append(out, Leaf{
						Service:  service,
						Region:   region,
						Account:  account,
						Resource: resource,
						Actions:  resources[resource].Sorted(),
					})
				}
			}
		}
	}
	return out
}

// RemoveAction deletes one action from a leaf. Returns false if it wasn't there.
func (t Tree) RemoveAction(service, region, account, resource, action string) bool {
	actions, ok := t[service][region][account][resource]
	if !ok {
		return false
	}
	if _, ok := actions[action]; !ok {
		return false
	}
	delete(actions, action)
	return true
}

// Prune drops empty action sets and every container left empty by that.
func (t Tree) Prune() {
	for service, regions := range t {
		for region, accounts := range regions {
			for account, resources := range accounts {
				for resource, actions := range resources {
					if len(actions) == 0 {
						delete(resources, resource)
					}
				}
				if len(resources) == 0 {
					delete(accounts, account)
				}
			}
			if len(accounts) == 0 {
				delete(regions, region)
			}
		}
		if len(regions) == 0 {
			delete(t, service)
		}
	}
}

func NewActions(actions ...string) Actions {
	out := make(Actions, len(actions))
	for _, a := range actions {
		out[a] = struct{}{}
	}
	return out
}

func (a Actions) Add(actions ...string) {
	for _, action := range actions {
		a[action] = struct{}{}
	}
}

func (a Actions) Has(action string) bool {
	_, ok := a[action]
	return ok
}

func (a Actions) Sorted() []string { return slices.Sorted(maps.Keys(a)) }

func (a Actions) Clone() Actions { return maps.Clone(a) }

// Add ensures resource exists and adds actions to it.
func (r Resources) Add(resource string, actions ...string) {
	set, ok := r[resource]
	if !ok {
		set = Actions{}
		r[resource] = set
	}
	set.Add(actions...)
}

func (r Resources) Keys() []string { return slices.Sorted(maps.Keys(r)) }

func (r Resources) Clone() Resources {
	out := make(Resources, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

func (a Accounts) Keys() []string { return slices.Sorted(maps.Keys(a)) }

func (a Accounts) Clone() Accounts {
	out := make(Accounts, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

func (r Regions) Keys() []string { return slices.Sorted(maps.Keys(r)) }

func (r Regions) Clone() Regions {
	out := make(Regions, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}
	return out
}

func mergeActions(dst, src Actions) Actions {
	if dst == nil {
		dst = Actions{}
	}
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func mergeResources(dst, src Resources) Resources {
	if dst == nil {
		dst = Resources{}
	}
	for k, v := range src {
		dst[k] = mergeActions(dst[k], v)
	}
	return dst
}

func mergeAccounts(dst, src Accounts) Accounts {
	if dst == nil {
		dst = Accounts{}
	}
	for k, v := range src {
		dst[k] = mergeResources(dst[k], v)
	}
	return dst
}

func mergeRegions(dst, src Regions) Regions {
	if dst == nil {
		dst = Regions{}
	}
	for k, v := range src {
		dst[k] = mergeAccounts(dst[k], v)
	}
	return dst
}
