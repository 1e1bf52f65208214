package espn

import (
	"fmt"
	"strconv"

	"github.com/calloway/gridfax/internal/stats"
)

// Extract pulls every player stat line out of a game summary payload,
// grouped by category. Stat groups outside the tracked six (kicking,
// punting, returns) are skipped, as is any malformed block. Cells are
// normalized with stats.ToInt except the completions/attempts token,
// which is carried verbatim.
func Extract(payload map[string]interface{}) map[stats.Category][]stats.GameRecord {
	records := make(map[stats.Category][]stats.GameRecord, len(stats.Categories()))
	for _, c := range stats.Categories() {
		records[c] = []stats.GameRecord{}
	}

	boxscore := extractMap(payload, "boxscore")
	for _, p := range extractArray(boxscore, "players") {
		teamBlock, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		team := extractMap(teamBlock, "team")
		teamID := stats.ToInt(team["id"])
		teamName := extractStringPtr(team, "displayName")

		for _, g := range extractArray(teamBlock, "statistics") {
			group, ok := g.(map[string]interface{})
			if !ok {
				continue
			}
			category, err := stats.ParseCategory(extractString(group, "name"))
			if err != nil {
				continue
			}
			layout := stats.Schema(category)

			for _, a := range extractArray(group, "athletes") {
				entry, ok := a.(map[string]interface{})
				if !ok {
					continue
				}
				bio := extractMap(entry, "athlete")
				cells := extractArray(entry, "stats")

				rec := stats.GameRecord{
					Category: category,
					Identity: stats.Identity{
						TeamID:      teamID,
						TeamName:    teamName,
						PlayerID:    stats.ToInt(bio["id"]),
						PlayerName:  extractStringPtr(bio, "displayName"),
						HeadshotURL: extractStringPtr(extractMap(bio, "headshot"), "href"),
					},
					Line: stats.NewLine(),
				}

				for _, field := range layout {
					raw := statAt(cells, field.Index)
					if field.Kind == stats.KindFraction {
						rec.Fraction = rawToken(raw)
						continue
					}
					rec.Values[field.Column] = stats.ToInt(raw)
				}

				records[category] = append(records[category], rec)
			}
		}
	}
	return records
}

// statAt returns the raw cell at idx, or nil when the row is short.
func statAt(cells []interface{}, idx int) interface{} {
	if idx < 0 || idx >= len(cells) {
		return nil
	}
	return cells[idx]
}

// rawToken keeps a composite cell in its string form. ESPN serves
// completions/attempts as "C/A"; a rare bare numeric cell keeps its
// string rendering.
func rawToken(raw interface{}) *string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

func extractMap(data map[string]interface{}, key string) map[string]interface{} {
	if data == nil {
		return nil
	}
	if m, ok := data[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func extractArray(data map[string]interface{}, key string) []interface{} {
	if data == nil {
		return nil
	}
	if arr, ok := data[key].([]interface{}); ok {
		return arr
	}
	return nil
}

func extractString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func extractStringPtr(data map[string]interface{}, key string) *string {
	if data == nil {
		return nil
	}
	if s, ok := data[key].(string); ok && s != "" {
		return &s
	}
	return nil
}
