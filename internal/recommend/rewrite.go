package recommend

import "strings"

// venueRewrites maps abstract activity language to concrete venue-type
// language. The search index answers "dessert cafes" far better than
// "date idea".
var venueRewrites = []struct {
	from string
	to   string
}{
	{"date idea", "restaurants, dessert cafes, or cocktail bars for a date"},
	{"date ideas", "restaurants, dessert cafes, or cocktail bars for a date"},
	{"fun activities", "restaurants, cafes, or bars with a lively atmosphere"},
	{"fun activity", "a restaurant, cafe, or bar with a lively atmosphere"},
	{"something fun", "a restaurant, cafe, or bar with a lively atmosphere"},
	{"things to do", "restaurants, cafes, or bars worth visiting"},
	{"activities", "restaurants, cafes, or bars"},
	{"activity", "a restaurant, cafe, or bar"},
}

const venueHint = "Suggest specific venues such as restaurants, cafes, bars, or dessert shops."

// rewriteForVenues turns activity-flavored queries into venue-type
// requests. Queries with no recognizable activity phrasing get the venue
// hint appended instead.
func rewriteForVenues(query string) string {
	lower := strings.ToLower(query)
	for _, r := range venueRewrites {
		if idx := strings.Index(lower, r.from); idx >= 0 {
			return query[:idx] + r.to + query[idx+len(r.from):]
		}
	}
	return query + "\n" + venueHint
}
