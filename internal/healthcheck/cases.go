package healthcheck

import (
	"net/http"
	"strings"
)

// PlaceholderID stands in for ids that only exist once a suite runs.
const PlaceholderID = ":id"

func listCase(e EntitySpec) TestCase {
	return TestCase{Name: "List All " + capitalize(e.Name), Category: CategoryCritical, Method: http.MethodGet, Endpoint: e.Path}
}

func createCase(e EntitySpec, s Stamp) TestCase {
	return TestCase{
		Name:     "Create " + e.Title + " (Minimal)",
		Category: CategoryCritical,
		Method:   http.MethodPost,
		Endpoint: e.Path,
		Body:     e.Create(s),
		Creates:  true,
	}
}

func getCase(e EntitySpec, id string) TestCase {
	return TestCase{Name: "Get " + e.Title + " by ID", Category: CategoryCritical, Method: http.MethodGet, Endpoint: e.RecordPath(id)}
}

func updateCase(e EntitySpec, id string) TestCase {
	return TestCase{Name: "Update " + e.Title, Category: CategoryCritical, Method: http.MethodPut, Endpoint: e.RecordPath(id), Body: e.Update}
}

func searchCases(e EntitySpec, s Stamp) []TestCase {
	var cases []TestCase
	for _, q := range e.Searches(s) {
		cases = append(cases, TestCase{Name: q.Name, Category: CategorySearch, Method: http.MethodGet, Endpoint: e.Path + "?" + q.Query})
	}
	return cases
}

func errorCases(e EntitySpec) []TestCase {
	return []TestCase{
		{Name: "Get Non-Existent " + e.Title, Category: CategoryErrorHandling, Method: http.MethodGet, Endpoint: e.RecordPath(NonExistentID)},
		{Name: "Create " + e.Title + " - Missing Fields", Category: CategoryErrorHandling, Method: http.MethodPost, Endpoint: e.Path, Body: e.MissingFields},
		{Name: "Update Non-Existent " + e.Title, Category: CategoryErrorHandling, Method: http.MethodPut, Endpoint: e.RecordPath("invalid-id-123"), Body: e.UpdateMissing},
	}
}

func deleteWithoutArchiveCase(e EntitySpec, id string) TestCase {
	return TestCase{Name: "Delete Without Archive", Category: CategoryErrorHandling, Method: http.MethodDelete, Endpoint: e.RecordPath(id)}
}

func edgeCases(e EntitySpec, s Stamp) []TestCase {
	var cases []TestCase
	for _, b := range e.EdgeCases(s) {
		cases = append(cases, TestCase{
			Name:     "Create " + e.Title + " - " + b.Name,
			Category: CategoryEdgeCase,
			Method:   http.MethodPost,
			Endpoint: e.Path,
			Body:     b.Body,
			Creates:  true,
		})
	}
	return cases
}

func widgetCases(e EntitySpec, id string) []TestCase {
	var cases []TestCase
	for _, w := range e.Widgets {
		cases = append(cases, TestCase{Name: w.Name, Category: CategoryWidgetData, Method: http.MethodGet, Endpoint: e.RecordPath(id) + "/" + w.Suffix})
	}
	return cases
}

func largePaginationCase(e EntitySpec) TestCase {
	return TestCase{Name: "Large Pagination", Category: CategoryPerformance, Method: http.MethodGet, Endpoint: e.Path + "?page=999&limit=100"}
}

// Names of the harness-driven performance tests.
const (
	BurstTestName    = "Concurrent Requests"
	VarianceTestName = "Response Time Consistency"
)

func varianceEndpoint(e EntitySpec) string {
	return e.Path + "?limit=10"
}

func archiveCase(e EntitySpec, id, name string) TestCase {
	return TestCase{Name: name, Category: CategoryWorkflow, Method: e.archiveMethod(), Endpoint: e.ArchivePath(id)}
}

func deleteCase(e EntitySpec, id, name string) TestCase {
	return TestCase{Name: name, Category: CategoryWorkflow, Method: http.MethodDelete, Endpoint: e.RecordPath(id)}
}

func batchDeleteCase(e EntitySpec, ids []string) TestCase {
	return TestCase{
		Name:     "Batch Delete Multiple " + capitalize(e.Name),
		Category: CategoryWorkflow,
		Method:   http.MethodPost,
		Endpoint: e.Path + "/batch-delete",
		Body:     map[string]any{"ids": ids},
	}
}

func verifyCase(e EntitySpec, id, name string) TestCase {
	return TestCase{Name: name, Category: CategoryWorkflow, Method: http.MethodGet, Endpoint: e.RecordPath(id), Policy: PolicyExpectNotFound}
}

// Plan returns the declared sequence of a suite with ids shown as
// placeholders. Steps that depend on earlier results are listed as if those
// results succeeded.
func Plan(e EntitySpec, s Stamp, withRealtime bool) []TestCase {
	id := PlaceholderID
	cases := []TestCase{listCase(e), createCase(e, s), getCase(e, id), updateCase(e, id)}
	cases = append(cases, searchCases(e, s)...)
	cases = append(cases, errorCases(e)...)
	cases = append(cases, deleteWithoutArchiveCase(e, id))
	cases = append(cases, edgeCases(e, s)...)
	cases = append(cases, widgetCases(e, id)...)
	cases = append(cases,
		largePaginationCase(e),
		TestCase{Name: BurstTestName, Category: CategoryPerformance, Method: http.MethodGet, Endpoint: e.Path},
		TestCase{Name: VarianceTestName, Category: CategoryPerformance, Method: http.MethodGet, Endpoint: varianceEndpoint(e)},
	)
	if withRealtime {
		for _, c := range correlationCases {
			cases = append(cases, TestCase{Name: CorrelationName(c.action, c.view), Category: CategoryRealtime, Method: http.MethodPost, Endpoint: e.Path})
		}
	}
	cases = append(cases,
		archiveCase(e, id, "Archive Single "+e.Title),
		deleteCase(e, id, "Delete Single Archived "+e.Title),
		archiveCase(e, id, "Archive for Batch Delete"),
		batchDeleteCase(e, []string{id}),
		verifyCase(e, id, "Verify Batch Deletion"),
		verifyCase(e, id, "Verify Single Deletion"),
	)
	return cases
}

// PlanText renders a case as "METHOD endpoint" for listings.
func PlanText(tc TestCase) string {
	return strings.TrimSpace(tc.Method + " " + tc.Endpoint)
}
