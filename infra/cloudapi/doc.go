// Package cloudapi is the HTTP client for the cloud connect API.
//
// Every request carries the bearer token of the logged-in user and a fresh
// X-Request-Id. Transient network errors are retried with exponential backoff.
// Failed requests surface as *clusterlink.APIError carrying the error objects
// the server returned.
package cloudapi
