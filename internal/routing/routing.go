package routing

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"sync"

	"postback-relay/internal/model"
	"postback-relay/internal/repository"
)

// Router resolves the destination of a postback for a profile.
type Router interface {
	Route(ctx context.Context, profile model.Profile, pb model.Postback) (model.Destination, error)
}

type router struct {
	routes repository.RouteRepository
}

// NewRouter creates a Router reading rules from routes.
func NewRouter(routes repository.RouteRepository) Router {
	return &router{routes: routes}
}

// Route returns the target of the first matching rule in (priority, id)
// order, or the profile default when none matches.
func (r *router) Route(ctx context.Context, profile model.Profile, pb model.Postback) (model.Destination, error) {
	rules, err := r.routes.ListOrdered(ctx, profile.ID)
	if err != nil {
		return model.Destination{}, fmt.Errorf("list routes: %w", err)
	}
	return Resolve(profile, rules, pb), nil
}

// Resolve is the pure part of Route. rules are re-sorted so callers may pass
// them in any order.
func Resolve(profile model.Profile, rules []model.Route, pb model.Postback) model.Destination {
	ordered := slices.Clone(rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, rule := range ordered {
		if Match(rule, pb) {
			return model.Destination{ChatID: rule.TargetChatID, TopicID: rule.TargetTopicID}
		}
	}
	return model.Destination{ChatID: profile.DefaultChatID, TopicID: profile.DefaultTopicID}
}

// Match reports whether a single rule accepts the postback. Status filters
// compare the raw status, not its display group.
func Match(rule model.Route, pb model.Postback) bool {
	switch rule.MatchBy {
	case model.MatchByCampaignID:
		if !matchValue(rule, pb.CampaignID) {
			return false
		}
	case model.MatchBySource:
		if !matchValue(rule, pb.Source) {
			return false
		}
	case model.MatchByAny:
	default:
		return false
	}

	if len(rule.StatusFilter) > 0 && !slices.Contains(rule.StatusFilter, pb.Status) {
		return false
	}
	if len(rule.GeoFilter) > 0 && !slices.Contains(rule.GeoFilter, pb.Country) {
		return false
	}
	return true
}

func matchValue(rule model.Route, value string) bool {
	if !rule.IsRegex {
		return value == rule.MatchValue
	}
	re, err := compile(rule.MatchValue)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

var patterns sync.Map

type compiled struct {
	re  *regexp.Regexp
	err error
}

// compile anchors pattern at the start of the input; a match may stop before
// the end. Results, including failures, are cached per pattern.
func compile(pattern string) (*regexp.Regexp, error) {
	if c, ok := patterns.Load(pattern); ok {
		return c.(compiled).re, c.(compiled).err
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	patterns.Store(pattern, compiled{re: re, err: err})
	return re, err
}
