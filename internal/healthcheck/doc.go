// Package healthcheck drives ordered diagnostic suites against the CRM API.
//
// A suite exercises one business entity (escrows, listings, clients,
// appointments, leads) through the request pipeline in a fixed order:
//
//	Critical → Search → ErrorHandling → EdgeCase → WidgetData →
//	Performance → Realtime → Workflow → teardown
//
// Runner executes a single TestCase and classifies the outcome by policy.
// Classification is relative to the scenario: an ErrorHandling case passes
// when the backend rejects the request, and a verification read passes when
// the record is confirmed absent. Harness adds the concurrent burst and
// sequential variance measurements, and Correlator checks that a mutation is
// echoed on the push channel with the expected payload fields.
//
// Every record a suite creates is tracked in a Registry. Workflow steps
// archive and delete them, teardown removes anything still outstanding, and
// whatever cannot be confirmed gone is reported as leaked in the RunResult.
package healthcheck
