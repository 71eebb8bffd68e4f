package event

import "strings"

// Category is the fixed enumeration of map pin categories.
type Category string

const (
	CategorySport   Category = "sport"
	CategoryMusic   Category = "music"
	CategoryParty   Category = "party"
	CategoryFood    Category = "food"
	CategoryCulture Category = "culture"
	CategoryStudy   Category = "study"
	CategoryOther   Category = "other"
)

// categoryKeywords is ordered: the first category whose keyword is contained
// in a tag wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategorySport, []string{"sport", "football", "soccer", "basket", "run", "gym", "tennis", "ski", "hike"}},
	{CategoryMusic, []string{"music", "concert", "dj", "festival", "jam"}},
	{CategoryParty, []string{"party", "club", "night", "drinks", "bar"}},
	{CategoryFood, []string{"food", "dinner", "lunch", "brunch", "bbq", "picnic", "restaurant"}},
	{CategoryCulture, []string{"culture", "art", "museum", "expo", "theatre", "cinema", "film"}},
	{CategoryStudy, []string{"study", "work", "revision", "exam", "course", "hackathon"}},
}

// ClassifyTags maps free-text tags to a pin category by case-insensitive
// substring containment, first match wins. No match yields CategoryOther.
func ClassifyTags(tags []string) Category {
	for _, entry := range categoryKeywords {
		for _, tag := range tags {
			lowered := strings.ToLower(strings.TrimSpace(tag))
			if lowered == "" {
				continue
			}
			for _, kw := range entry.keywords {
				if strings.Contains(lowered, kw) {
					return entry.category
				}
			}
		}
	}
	return CategoryOther
}

// CapacityState is a three-level fill indicator for an event.
type CapacityState string

const (
	CapacityAvailable CapacityState = "available"
	CapacityLimited   CapacityState = "limited"
	CapacityFull      CapacityState = "full"
)

// ClassifyCapacity computes the fill state from remaining-capacity percent:
// above 50% available, above 10% and up to 50% limited, 10% and below full.
// Non-positive capacity means unlimited and is always available.
func ClassifyCapacity(capacity, participants int) CapacityState {
	if capacity <= 0 {
		return CapacityAvailable
	}
	remaining := capacity - participants
	if remaining < 0 {
		remaining = 0
	}
	pct := float64(remaining) / float64(capacity) * 100
	switch {
	case pct > 50:
		return CapacityAvailable
	case pct > 10:
		return CapacityLimited
	default:
		return CapacityFull
	}
}
