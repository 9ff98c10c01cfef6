package model

import "time"

// Category buckets a reference document by the kind of story it tells.
// The declaration order is the fixed priority order used for ranking.
type Category string

const (
	CategoryPartnership Category = "partnership_investment"
	CategoryDevelopment Category = "development_innovation"
	CategoryLeadership  Category = "leadership_strategy"
	CategoryAchievement Category = "achievement_milestone"
	CategoryOther       Category = "other"
)

var categoryRanks = map[Category]int{
	CategoryPartnership: 0,
	CategoryDevelopment: 1,
	CategoryLeadership:  2,
	CategoryAchievement: 3,
	CategoryOther:       4,
}

// Rank returns the category's position in the fixed priority order.
// Unknown categories rank after every valid one.
func (c Category) Rank() int {
	if r, ok := categoryRanks[c]; ok {
		return r
	}
	return len(categoryRanks)
}

// Valid reports whether c is one of the five fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryRanks[c]
	return ok
}

// Document is a reference news article surfaced by the researcher.
type Document struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Category    Category  `json:"category,omitempty"`
}

// Angle is the narrative strategy derived from research, used to frame the
// message. It follows the top-ranked document's category.
type Angle struct {
	Category Category `json:"category"`
	Theme    string   `json:"theme"`
}

// WellFormed reports whether the angle carries enough to write from.
func (a Angle) WellFormed() bool {
	return a.Category.Valid() && a.Theme != ""
}
