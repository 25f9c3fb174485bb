// Package filters restricts list queries to the records a user may read.
//
// Generic filters follow the read level of the scope (own, team, and the
// portal account and contact levels). Mandatory filters are registered per
// scope and always run. Every record a filtered query returns passes the
// entity-level read check of the acl package.
package filters
