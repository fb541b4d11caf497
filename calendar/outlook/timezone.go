package outlook

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Graph reports event times with a timeZone field that may be an IANA name,
// a Windows zone name, or a fixed offset like "UTC+08:00". We ask for UTC
// via the Prefer header, but events created by older clients can still come
// back in their original zone.
var windowsZones = map[string]string{
	"Dateline Standard Time":        "Etc/GMT+12",
	"Hawaiian Standard Time":        "Pacific/Honolulu",
	"Alaskan Standard Time":         "America/Anchorage",
	"Pacific Standard Time":         "America/Los_Angeles",
	"Mountain Standard Time":        "America/Denver",
	"Central Standard Time":         "America/Chicago",
	"Eastern Standard Time":         "America/New_York",
	"Atlantic Standard Time":        "America/Halifax",
	"SA Eastern Standard Time":      "America/Cayenne",
	"E. South America Standard Time": "America/Sao_Paulo",
	"UTC":                            "UTC",
	"GMT Standard Time":              "Europe/London",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Romance Standard Time":          "Europe/Paris",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Central European Standard Time": "Europe/Warsaw",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"FLE Standard Time":              "Europe/Kiev",
	"GTB Standard Time":              "Europe/Bucharest",
	"Russian Standard Time":          "Europe/Moscow",
	"Turkey Standard Time":           "Europe/Istanbul",
	"Israel Standard Time":           "Asia/Jerusalem",
	"Arabian Standard Time":          "Asia/Dubai",
	"West Asia Standard Time":        "Asia/Tashkent",
	"India Standard Time":            "Asia/Kolkata",
	"SE Asia Standard Time":          "Asia/Bangkok",
	"China Standard Time":            "Asia/Shanghai",
	"Singapore Standard Time":        "Asia/Singapore",
	"Taipei Standard Time":           "Asia/Taipei",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"New Zealand Standard Time":      "Pacific/Auckland",
}

var fixedOffsetRe = regexp.MustCompile(`^(?:UTC|GMT)([+-])(\d{1,2}):?(\d{2})?$`)

// location resolves a Graph timeZone value to a *time.Location.
func location(name string) (*time.Location, error) {
	switch name {
	case "", "UTC", "utc":
		return time.UTC, nil
	}
	if iana, ok := windowsZones[name]; ok {
		return time.LoadLocation(iana)
	}
	if m := fixedOffsetRe.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("outlook: unknown time zone %q", name)
	}
	return loc, nil
}

// graphTimeLayouts covers the dateTime shapes Graph emits: fractional
// seconds of varying width, or none.
var graphTimeLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// parseGraphTime converts a Graph dateTime plus timeZone into UTC.
func parseGraphTime(value, zone string) (time.Time, error) {
	loc, err := location(zone)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range graphTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("outlook: cannot parse time %q", value)
}
