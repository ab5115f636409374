package ontology

import (
	"strings"

	"impactline/internal/domain"
)

// ValidateRelationships checks the soft tag and linked-item sets.
func (v Validator) ValidateRelationships(tags, linkedItemIDs []string) Result {
	var r Result
	seen := make(map[string]struct{}, len(linkedItemIDs))
	for _, id := range linkedItemIDs {
		if _, dup := seen[id]; dup {
			r.add("linked_item_ids", domain.CodeDuplicateReference, "duplicate task id %s in linked items", id)
			break
		}
		seen[id] = struct{}{}
	}
	if v.Limits.MaxLinkedItems > 0 && len(linkedItemIDs) > v.Limits.MaxLinkedItems {
		r.warn("task links %d other tasks; more than %d may be too complex", len(linkedItemIDs), v.Limits.MaxLinkedItems)
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			r.add("tags", domain.CodeInvalidTag, "tags cannot be empty strings")
			break
		}
	}
	if v.Limits.MaxTags > 0 && len(tags) > v.Limits.MaxTags {
		r.warn("%d tags; more than %d may reduce organization effectiveness", len(tags), v.Limits.MaxTags)
	}
	return r
}
