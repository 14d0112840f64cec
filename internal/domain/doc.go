// Package domain models flight-plan and flight-dynamic message data for
// plan/actual reconciliation.
//
// # Data Sources
//
// Two independent message streams describe the same flights:
//
//	PLAN     scheduled flight plans (FPLA): FPL, CHG, DLA, CNL messages.
//	DYN_DEP  AFTN departure telegrams carrying the actual takeoff time.
//	DYN_ARR  AFTN arrival telegrams carrying the actual landing time.
//	OBS      FODC flight observations carrying actual takeoff/landing per leg.
//
// DYN_DEP, DYN_ARR and OBS together form the dynamic side. Each row arrives
// with an arrival timestamp: the instant the record became known to the
// upstream system. Later records for the same flight supersede earlier ones.
//
// # Time Conventions
//
// All timestamps in the inputs are civil times in UTC+8 (Beijing), encoded
// in one of several layouts:
//
//	20250923083000        YYYYMMDDHHMMSS
//	202509230830          YYYYMMDDHHMM
//	2025-09-23T08:30:00   ISO-8601 (offset honoured when present)
//	2025-09-23 08:30:00   YYYY-MM-DD HH:MM:SS
//
// [ParseTime] tries them in that order and always returns a time in [Beijing].
// Mixed representations must never be compared directly.
//
// # Flight Identity
//
// A [FlightKey] is (execution date, full callsign, departure ICAO, arrival
// ICAO). The execution date is a civil date in UTC+8 taken from, in order:
//
//  1. the DOF/YYMMDD item of the raw telegram body
//  2. the date of ETOT or ATOT
//  3. the date of SOBT, when the source value has at least 12 digits
//  4. the date of ALDT
//
// The full callsign is the airline ICAO designator followed by the numeric
// flight number, with no separator: "CSN" + "303" = "CSN303". Plan rows may
// carry a ready-made CALLSIGN column which is used verbatim when it holds at
// least four alphanumerics. Airport codes are four uppercase letters.
//
// Serialized form, used as the join key in intermediate files:
//
//	2025-09-23_CSN303_ZGGG_ZUUU
//
// # Recoverable Conditions
//
// Row-level problems never abort a run. They are recorded with a [Reason] in
// a [Diagnostics] sink:
//
//	PARSE_ERROR          row could not be decoded; dropped
//	KEY_UNRESOLVED       row decoded but a FlightKey part is missing; kept for diagnostics only
//	TIME_OUT_OF_RANGE    a time fell outside [date-1d, date+2d]; that time is nulled
//	INVARIANT_VIOLATION  e.g. ATOT after ALDT; ALDT is nulled
//	FILTERED             airline matched the configured exclusion pattern
//
// Only unreadable inputs and unwritable outputs are fatal ([InputError],
// [OutputError]).
package domain
