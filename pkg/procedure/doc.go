// Package procedure runs the discovery procedure an AVRCP controller performs
// after connecting to a target.
//
// # Phases
//
//	Idle
//	  -> QueryCompanyID           GetCapabilities(CompanyID)
//	  -> QueryEventsSupported     GetCapabilities(EventsSupported)
//	  -> RegisteringEvents        REGISTER_NOTIFICATION, one event at a time
//	  -> QueryAppAttrList         ListPlayerApplicationSettingAttributes
//	  -> QueryAppAttrValues       ListPlayerApplicationSettingValues per attribute
//	  -> QueryAppAttrText         attribute text, target-defined attributes only
//	  -> QueryAppValueText        value text, one target-defined attribute at a time
//	  -> QueryCurrentAppValues    GetCurrentPlayerApplicationSettingValue
//	  -> QueryElementAttributes   GetElementAttributes
//	  -> Complete
//
// Targets without the application settings feature go straight from
// RegisteringEvents to QueryElementAttributes.
//
// # Failures
//
// An error status or a timeout never aborts the walk. The failed step is
// skipped with empty results and the procedure moves on. Text queries for
// target-defined attributes are all-or-nothing: if any fails the extended
// attributes are dropped and only the standard ones are reported. A timed out
// GetElementAttributes is retried.
//
// # Completion
//
// Complete is sticky for the life of the connection. Track changes fetch
// element attributes again without restarting the procedure.
//
// The Orchestrator is not safe for concurrent use. The owning session drives
// it from its executor goroutine.
package procedure
