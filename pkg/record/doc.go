// Package record runs record operations that have access-control side
// effects: unlinking records and saving roles. Hooks registered per entity
// type run after the operation succeeded, outside the access check path.
package record
