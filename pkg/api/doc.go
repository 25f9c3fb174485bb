// Package api exposes access decisions over HTTP.
//
// # Routes
//
//	GET  /api/v1/acl                                   permission table of the acting user
//	GET  /api/v1/acl/{scope}?action=                   scope check
//	POST /api/v1/acl/purge                             drop every cached table (admin)
//	PUT  /api/v1/Role/{id}                             save a role (admin)
//	GET  /api/v1/{scope}?offset=&limit=                records the user may read
//	GET  /api/v1/{scope}/{id}/access?action=           record check, 403 when denied
//	POST /api/v1/{scope}/{id}/{link}/{foreignId}/unlink
//
// Denials are answered with 403, missing records with 404 and unknown scopes
// with 400. The acting user is read from the request context, see
// pkg/middleware.
package api
