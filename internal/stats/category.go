package stats

import "fmt"

// Category identifies one of the six statistical families tracked across
// a season. The values double as the group names used by the source
// payload and as the prefix of the aggregate table name.
type Category string

const (
	CategoryPassing       Category = "passing"
	CategoryRushing       Category = "rushing"
	CategoryReceiving     Category = "receiving"
	CategoryFumbles       Category = "fumbles"
	CategoryDefensive     Category = "defensive"
	CategoryInterceptions Category = "interceptions"
)

// Categories returns every category in the fixed processing order used
// by compilation runs and reports.
func Categories() []Category {
	return []Category{
		CategoryPassing,
		CategoryRushing,
		CategoryReceiving,
		CategoryFumbles,
		CategoryDefensive,
		CategoryInterceptions,
	}
}

// ParseCategory validates a category name coming from a payload group
// or an API path segment.
func ParseCategory(name string) (Category, error) {
	switch c := Category(name); c {
	case CategoryPassing, CategoryRushing, CategoryReceiving,
		CategoryFumbles, CategoryDefensive, CategoryInterceptions:
		return c, nil
	}
	return "", fmt.Errorf("unknown stat category %q", name)
}

func (c Category) String() string { return string(c) }

// Table returns the aggregate table name for the category.
func (c Category) Table() string { return string(c) + "_stats" }
