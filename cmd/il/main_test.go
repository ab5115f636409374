package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"impactline/internal/domain"
	"impactline/internal/ontology"
)

func TestRootHelpMatchesStatusMatrix(t *testing.T) {
	for _, from := range domain.WorkItemStatuses {
		assert.Contains(t, rootCmd.Long, string(from))
		for _, to := range domain.WorkItemStatuses {
			assert.True(t, ontology.CanTransition(from, to), "%s to %s", from, to)
		}
	}
	assert.Contains(t, rootCmd.Long, "any status can move to any other")
	assert.NotContains(t, rootCmd.Long, "->")
}
