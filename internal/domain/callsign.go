package domain

import (
	"regexp"
	"strings"
)

var (
	// airlineICAORe matches a three-letter ICAO airline designator.
	airlineICAORe = regexp.MustCompile(`^[A-Z]{3}$`)

	// flightNumberRe captures the numeric flight number and optional suffix
	// from forms like "303", "CSN303", "CZ303" or "0303A".
	flightNumberRe = regexp.MustCompile(`^[A-Z0-9]{0,3}?([0-9]{1,5}[A-Z]?)$`)

	// callsignRe accepts a ready-made callsign of four or more alphanumerics.
	callsignRe = regexp.MustCompile(`^[A-Z0-9]{4,}$`)
)

// NormalizeCode upper-cases and trims an identifier.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsAirlineICAO reports whether s is a three-letter ICAO airline designator.
func IsAirlineICAO(s string) bool {
	return airlineICAORe.MatchString(s)
}

// NumericFlightNumber extracts the numeric flight number (with an optional
// trailing suffix letter) from a flight number column.
func NumericFlightNumber(s string) (string, bool) {
	s = NormalizeCode(s)
	m := flightNumberRe.FindStringSubmatch(s)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// ComposeCallsign joins an airline ICAO designator and numeric flight number.
func ComposeCallsign(airline, flightNo string) (string, bool) {
	airline = NormalizeCode(airline)
	if !IsAirlineICAO(airline) {
		return "", false
	}
	num, ok := NumericFlightNumber(flightNo)
	if !ok {
		return "", false
	}
	return airline + num, true
}

// PlanCallsign takes the CALLSIGN column verbatim when it has at least four
// alphanumerics, otherwise composes it from airline and flight number.
func PlanCallsign(callsign, airline, flightNo string) (string, bool) {
	cs := NormalizeCode(callsign)
	if callsignRe.MatchString(cs) {
		return cs, true
	}
	return ComposeCallsign(airline, flightNo)
}

// SplitCallsign separates a composed callsign into airline designator and
// numeric flight number when it has the ICAO form.
func SplitCallsign(cs string) (airline, number string, ok bool) {
	cs = NormalizeCode(cs)
	if len(cs) < 4 || !IsAirlineICAO(cs[:3]) {
		return "", "", false
	}
	num, ok := NumericFlightNumber(cs[3:])
	if !ok {
		return "", "", false
	}
	return cs[:3], num, true
}
