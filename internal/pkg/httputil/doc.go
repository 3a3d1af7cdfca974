// Package httputil holds the JSON response and request helpers used by the
// campaign API handlers, so every endpoint shares one error envelope.
package httputil
