package core

import (
	"sort"
	"strings"
)

type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses a comma separated list of fields, "-" prefixed fields are descending.
// eg: "name,-created_at"
func ParseOrderings(val string) []Ordering {
	var orderings []Ordering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		orderings = append(orderings, Ordering{Field: field, Ascending: !descending})
	}
	return orderings
}

// SortBy stable sorts `n` items with the given orderings.
// `cmp` returns <0, 0 or >0 comparing items i & j on a field; unknown fields must return 0.
func SortBy(n int, orderings []Ordering, swap func(i, j int), cmp func(field string, i, j int) int) {
	if len(orderings) == 0 {
		return
	}
	sort.Stable(sorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, ord := range orderings {
			c := cmp(ord.Field, i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}})
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
