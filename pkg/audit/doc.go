// Package audit records administrative ACL actions and access denials.
//
// Events are written by a Logger. FileLogger appends JSON lines with size
// based rotation, DBLogger inserts into the acl_audit_log table and can
// search it, and MultiLogger fans an event out to several loggers.
//
//	logger := audit.NewMultiLogger(fileLogger, dbLogger)
//	event := audit.NewEvent(ctx, audit.EventTypeRoleSave, audit.EventStatusSuccess)
//	event.ResourceID = role.ID
//	_ = logger.Log(ctx, event)
package audit
