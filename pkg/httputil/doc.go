// Package httputil provides JSON response helpers, the mapping of domain
// errors to status codes, and request parsing for the ACL API.
package httputil
