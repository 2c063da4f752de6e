package metadata

import (
	"fmt"
	"sort"
)

// Season is one season's worth of episodes, in episode order.
type Season struct {
	Number   int     `json:"number"`
	Name     string  `json:"name"`
	Episodes []Video `json:"episodes"`
}

// GroupBySeason arranges a series' videos into seasons. Regular seasons
// come first in ascending order, season 0 (specials) last. Episodes
// within a season are ordered by episode number.
func GroupBySeason(m *Meta) []Season {
	if m == nil || len(m.Videos) == 0 {
		return nil
	}

	bySeason := make(map[int][]Video)
	for _, v := range m.Videos {
		bySeason[v.Season] = append(bySeason[v.Season], v)
	}

	numbers := make([]int, 0, len(bySeason))
	hasSpecials := false
	for n := range bySeason {
		if n == 0 {
			hasSpecials = true
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	if hasSpecials {
		numbers = append(numbers, 0)
	}

	seasons := make([]Season, 0, len(numbers))
	for _, n := range numbers {
		episodes := bySeason[n]
		sort.SliceStable(episodes, func(i, j int) bool {
			return episodes[i].EpisodeNumber() < episodes[j].EpisodeNumber()
		})
		name := fmt.Sprintf("Season %d", n)
		if n == 0 {
			name = "Specials"
		}
		seasons = append(seasons, Season{Number: n, Name: name, Episodes: episodes})
	}
	return seasons
}
