package kitchen

import (
	"strings"

	"github.com/comandaclub/comanda/pkg/enums/station"
	"github.com/google/uuid"
)

// MenuItemRef carries the routing-relevant attributes of a menu item.
// Matching is case-insensitive on both category and tags.
type MenuItemRef struct {
	ID       uuid.UUID
	Category string
	Tags     []string
}

type routingRule struct {
	station station.Station
	match   func(category string, tags map[string]bool) bool
}

// routingRules is evaluated in order and the first match wins. The order is
// load-bearing: drinks go to the bar even when mis-tagged, and cold dishes
// are checked before the generic hot matches so a cold appetizer never lands
// in the hot kitchen.
var routingRules = []routingRule{
	{
		station: station.Stations.Bar,
		match:   categoryHas("drink", "beverage", "alcohol"),
	},
	{
		station: station.Stations.ColdKitchen,
		match:   anyOf(categoryHas("salad", "dessert"), tagged("cold")),
	},
	{
		station: station.Stations.HotKitchen,
		match:   anyOf(categoryHas("main", "appetizer", "soup"), tagged("wok", "fried")),
	},
}

// Classify maps a menu item to its preparation station. It is total and
// deterministic; items matched by no rule fall through to expo.
func Classify(item MenuItemRef) station.Station {
	category := strings.ToLower(item.Category)
	tags := make(map[string]bool, len(item.Tags))
	for _, tag := range item.Tags {
		tags[strings.ToLower(tag)] = true
	}

	for _, rule := range routingRules {
		if rule.match(category, tags) {
			return rule.station
		}
	}
	return station.Stations.Expo
}

func categoryHas(words ...string) func(string, map[string]bool) bool {
	return func(category string, _ map[string]bool) bool {
		for _, w := range words {
			if strings.Contains(category, w) {
				return true
			}
		}
		return false
	}
}

func tagged(tags ...string) func(string, map[string]bool) bool {
	return func(_ string, itemTags map[string]bool) bool {
		for _, t := range tags {
			if itemTags[t] {
				return true
			}
		}
		return false
	}
}

func anyOf(preds ...func(string, map[string]bool) bool) func(string, map[string]bool) bool {
	return func(category string, tags map[string]bool) bool {
		for _, p := range preds {
			if p(category, tags) {
				return true
			}
		}
		return false
	}
}
