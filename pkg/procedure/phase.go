package procedure

// Phase is a step of the discovery procedure.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseQueryCompanyID
	PhaseQueryEventsSupported
	PhaseRegisteringEvents
	PhaseQueryAppAttrList
	PhaseQueryAppAttrValues
	PhaseQueryAppAttrText
	PhaseQueryAppValueText
	PhaseQueryCurrentAppValues
	PhaseQueryElementAttributes
	PhaseComplete
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseQueryCompanyID:
		return "QUERY_COMPANY_ID"
	case PhaseQueryEventsSupported:
		return "QUERY_EVENTS_SUPPORTED"
	case PhaseRegisteringEvents:
		return "REGISTERING_EVENTS"
	case PhaseQueryAppAttrList:
		return "QUERY_APP_ATTR_LIST"
	case PhaseQueryAppAttrValues:
		return "QUERY_APP_ATTR_VALUES"
	case PhaseQueryAppAttrText:
		return "QUERY_APP_ATTR_TEXT"
	case PhaseQueryAppValueText:
		return "QUERY_APP_VALUE_TEXT"
	case PhaseQueryCurrentAppValues:
		return "QUERY_CURRENT_APP_VALUES"
	case PhaseQueryElementAttributes:
		return "QUERY_ELEMENT_ATTRIBUTES"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}
