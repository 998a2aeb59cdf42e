// Package api is the request pipeline between crmcheck and the CRM backend.
//
// A Client composes every endpoint with the versioned base URL, attaches
// exactly one credential from the session (X-API-Key wins over a bearer
// token), and turns each exchange into an Outcome. Failed calls return the
// Outcome together with an *Error carrying a Kind:
//
//	401 -> KindAuthRequired
//	404 -> KindNotFound
//	400 -> KindValidation
//	5xx -> KindServerError
//	other 4xx -> KindClientError
//	transport failure or malformed 2xx body -> KindNetworkFailure
//
// Every call leaves a breadcrumb in the telemetry sink before the outcome is
// returned; network failures are also captured as exceptions.
//
// A 401 on a first attempt that used a bearer token (and no API key) against
// a non-auth endpoint runs the refresh coordinator: one refresh through the
// configured Refresher, then a single replay. Anything still unauthorized is
// terminal, clears cached session artifacts and asks the Navigator to show
// the login surface unless that would loop.
package api
