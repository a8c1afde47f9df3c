package extraction

import "strings"

// LinkEntities matches each raw node name against supplier display names,
// case-insensitive exact-then-substring. Names that match neither are
// returned in unmatched, to be retained as free-form affected entities.
func LinkEntities(nodeNames []string, supplierNames map[string]string) (linkedIDs []string, unmatched []string) {
	seen := make(map[string]bool, len(nodeNames))

	for _, raw := range nodeNames {
		needle := strings.ToLower(strings.TrimSpace(raw))
		if needle == "" {
			continue
		}

		if id, ok := exactMatch(needle, supplierNames); ok {
			if !seen[id] {
				linkedIDs = append(linkedIDs, id)
				seen[id] = true
			}
			continue
		}

		if id, ok := substringMatch(needle, supplierNames); ok {
			if !seen[id] {
				linkedIDs = append(linkedIDs, id)
				seen[id] = true
			}
			continue
		}

		unmatched = append(unmatched, raw)
	}

	return linkedIDs, unmatched
}

func exactMatch(needle string, supplierNames map[string]string) (string, bool) {
	for id, name := range supplierNames {
		if strings.ToLower(name) == needle {
			return id, true
		}
	}
	return "", false
}

func substringMatch(needle string, supplierNames map[string]string) (string, bool) {
	for id, name := range supplierNames {
		lower := strings.ToLower(name)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			return id, true
		}
	}
	return "", false
}
