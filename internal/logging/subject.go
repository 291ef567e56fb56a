package logging

import "strings"

// FormatSubject builds the component/item subject string used in console output.
// Item identifiers are content hashes, so they are abbreviated to their first
// and last six characters.
func FormatSubject(component, itemID, stage string) string {
	component = strings.TrimSpace(component)
	itemID = strings.TrimSpace(itemID)
	stage = strings.TrimSpace(stage)

	parts := make([]string, 0, 2)
	if component != "" {
		parts = append(parts, strings.ToUpper(component[:1])+component[1:])
	}
	switch {
	case itemID != "" && stage != "" && !strings.EqualFold(stage, component):
		parts = append(parts, "Item "+abbreviateID(itemID)+" ("+stage+")")
	case itemID != "":
		parts = append(parts, "Item "+abbreviateID(itemID))
	case stage != "" && !strings.EqualFold(stage, component):
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}

func abbreviateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "…" + id[len(id)-6:]
}
