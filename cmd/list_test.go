package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcheck/internal/healthcheck"
)

func sampleListing() []listedCase {
	return []listedCase{
		{Suite: "leads", Name: "List All Leads", Category: healthcheck.CategoryCritical, Request: "GET /leads", Policy: healthcheck.PolicyPayloadSuccess},
		{Suite: "leads", Name: "Get Non-Existent Lead", Category: healthcheck.CategoryErrorHandling, Request: "GET /leads/non-existent-id-12345", Policy: healthcheck.PolicyExpectRejection},
	}
}

func TestWriteListing_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, healthcheck.OutputTable, sampleListing()))

	out := buf.String()
	assert.Contains(t, out, "List All Leads")
	assert.Contains(t, out, "GET /leads")
	assert.Contains(t, out, "2 tests")
	assert.NotContains(t, out, "2 TESTS")
}

func TestWriteListing_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, healthcheck.OutputJSON, sampleListing()))

	var rows []listedCase
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, sampleListing(), rows)
}

func TestWriteListing_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, healthcheck.OutputYAML, sampleListing()))
	assert.Contains(t, buf.String(), "policy: expect-rejection")
}

func TestNewListedCase(t *testing.T) {
	row := newListedCase("smoke", healthcheck.TestCase{
		Name:     "Reject empty lead",
		Category: healthcheck.CategoryErrorHandling,
		Method:   "POST",
		Endpoint: "/leads",
	})
	assert.Equal(t, "POST /leads", row.Request)
	assert.Equal(t, healthcheck.PolicyExpectRejection, row.Policy)
}
