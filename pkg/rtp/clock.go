package rtp

import "time"

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// NTPTimestamp converts a wall-clock time to the 64-bit fixed-point NTP
// timestamp format used in RTCP sender reports (32.32 seconds.fraction).
func NTPTimestamp(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64((t.Nanosecond() * (1 << 32)) / 1e9)
	return secs | (frac & 0xFFFFFFFF)
}

// NTPToTime converts a 64-bit fixed-point NTP timestamp back to a
// wall-clock time.
func NTPToTime(ntp uint64) time.Time {
	secs := int64(ntp>>32) - ntpEpochOffset
	frac := ntp & 0xFFFFFFFF
	nanos := int64((frac * 1e9) >> 32)
	return time.Unix(secs, nanos)
}
