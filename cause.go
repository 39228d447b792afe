package pri

import "fmt"

// Q.850 cause values a caller of Hangup/Reject commonly needs. This is
// not the full table — only the values this core's own call engine
// produces, plus the ones applications most often pass back in
// explicitly, grounded on libpri's pri_cause_strings.
const (
	CauseUnallocatedNumber        = 1
	CauseNormalClearing           = 16
	CauseUserBusy                 = 17
	CauseNoUserResponding         = 18
	CauseCallRejected             = 21
	CauseNumberChanged            = 22
	CauseDestinationOutOfOrder    = 27
	CauseInvalidNumberFormat      = 28
	CauseNormalUnspecified        = 31
	CauseNoCircuitAvailable       = 34
	CauseNetworkOutOfOrder        = 38
	CauseTemporaryFailure         = 41
	CauseSwitchingEquipCongestion = 42
	CauseRequestedCircuitNotAvail = 44
	CauseBearerNotImplemented     = 65
	CauseServiceNotImplemented    = 79
	CauseInvalidCallReference     = 81
	CauseProtocolError            = 111
	CauseInterworking             = 127
)

var causeNames = map[int]string{
	CauseUnallocatedNumber:        "unallocated number",
	CauseNormalClearing:           "normal clearing",
	CauseUserBusy:                 "user busy",
	CauseNoUserResponding:         "no user responding",
	CauseCallRejected:             "call rejected",
	CauseNumberChanged:            "number changed",
	CauseDestinationOutOfOrder:    "destination out of order",
	CauseInvalidNumberFormat:      "invalid number format",
	CauseNormalUnspecified:        "normal, unspecified",
	CauseNoCircuitAvailable:       "no circuit/channel available",
	CauseNetworkOutOfOrder:        "network out of order",
	CauseTemporaryFailure:         "temporary failure",
	CauseSwitchingEquipCongestion: "switching equipment congestion",
	CauseRequestedCircuitNotAvail: "requested circuit/channel not available",
	CauseBearerNotImplemented:     "bearer capability not implemented",
	CauseServiceNotImplemented:    "service or option not implemented",
	CauseInvalidCallReference:     "invalid call reference value",
	CauseProtocolError:            "protocol error, unspecified",
	CauseInterworking:             "interworking, unspecified",
}

// CauseName renders a Q.850 cause value for logging and diagnostics.
func CauseName(value int) string {
	if name, ok := causeNames[value]; ok {
		return name
	}
	return fmt.Sprintf("cause %d", value)
}
