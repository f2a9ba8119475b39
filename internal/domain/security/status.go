package security

import "fmt"

// AlarmStatus represents the overall alert level of the system.
// Values are lower-case strings so they serialize cleanly to YAML and JSON.
type AlarmStatus string

const (
	// AlarmStatusNoAlarm means the system is quiet.
	AlarmStatusNoAlarm AlarmStatus = "no_alarm"
	// AlarmStatusPending means a sensor fired while armed and the system is
	// waiting for either escalation or an all-clear.
	AlarmStatusPending AlarmStatus = "pending_alarm"
	// AlarmStatusAlarm means the alarm is sounding.
	AlarmStatusAlarm AlarmStatus = "alarm"
)

// ArmingStatus represents whether the system is monitoring sensors.
type ArmingStatus string

const (
	// ArmingStatusDisarmed means sensor activity is ignored.
	ArmingStatusDisarmed ArmingStatus = "disarmed"
	// ArmingStatusArmedHome means the system is armed with occupants inside.
	ArmingStatusArmedHome ArmingStatus = "armed_home"
	// ArmingStatusArmedAway means the system is armed with the home empty.
	ArmingStatusArmedAway ArmingStatus = "armed_away"
)

// ParseAlarmStatus converts string input to an AlarmStatus.
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	switch AlarmStatus(s) {
	case AlarmStatusNoAlarm, AlarmStatusPending, AlarmStatusAlarm:
		return AlarmStatus(s), nil
	default:
		return "", fmt.Errorf("unknown alarm status %q", s)
	}
}

// ParseArmingStatus converts string input to an ArmingStatus.
func ParseArmingStatus(s string) (ArmingStatus, error) {
	switch ArmingStatus(s) {
	case ArmingStatusDisarmed, ArmingStatusArmedHome, ArmingStatusArmedAway:
		return ArmingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown arming status %q", s)
	}
}

// Armed reports whether the status is one of the armed modes.
func (s ArmingStatus) Armed() bool {
	return s == ArmingStatusArmedHome || s == ArmingStatusArmedAway
}
