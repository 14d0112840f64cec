package normalize

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/flight-recon/internal/domain"
)

// Canonical field names.
const (
	FieldCallsign         = "callsign"
	FieldAirlineICAO      = "airline_icao"
	FieldFlightNo         = "flight_no"
	FieldDepAirport       = "dep_airport"
	FieldArrAirport       = "arr_airport"
	FieldActualArrAirport = "actual_arr_airport"
	FieldRegNo            = "reg_no"
	FieldCraftType        = "craft_type"
	FieldSOBT             = "sobt"
	FieldSIBT             = "sibt"
	FieldETOT             = "etot"
	FieldATOT             = "atot"
	FieldALDT             = "aldt"
	FieldScheduleStatus   = "schedule_status"
	FieldMessageKind      = "message_kind"
	FieldRawMessage       = "raw_message"
	FieldFormatCheck      = "format_check"
	FieldLogicCheck       = "logic_check"
	FieldTimelinessCheck  = "timeliness_check"
)

// CanonicalFields lists every canonical field in output order.
var CanonicalFields = []string{
	FieldCallsign, FieldAirlineICAO, FieldFlightNo,
	FieldDepAirport, FieldArrAirport, FieldActualArrAirport,
	FieldRegNo, FieldCraftType,
	FieldSOBT, FieldSIBT, FieldETOT, FieldATOT, FieldALDT,
	FieldScheduleStatus, FieldMessageKind, FieldRawMessage,
	FieldFormatCheck, FieldLogicCheck, FieldTimelinessCheck,
}

func isCanonical(name string) bool {
	for _, f := range CanonicalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Mapping maps each canonical field to the source field names that may carry
// it, tried in order.
type Mapping map[string][]string

// Candidates returns the source names for field, always ending with the
// canonical name itself so canonical records normalize to themselves.
func (m Mapping) Candidates(field string) []string {
	src := m[field]
	out := make([]string, 0, len(src)+1)
	out = append(out, src...)
	return append(out, field)
}

// Lookup returns the first non-empty candidate value for field.
func (m Mapping) Lookup(raw domain.RawRecord, field string) string {
	for _, name := range m.Candidates(field) {
		if v := raw.Get(name); v != "" {
			return v
		}
	}
	return ""
}

var planMapping = Mapping{
	FieldCallsign:         {"CALLSIGN", "呼号"},
	FieldAirlineICAO:      {"AIRLINE_ICAO", "AIRLINE", "航空公司三字码", "航空公司"},
	FieldFlightNo:         {"FLIGHTNO", "FLIGHT_NO", "航班号"},
	FieldDepAirport:       {"DEPAP", "DEP_AIRPORT", "ADEP", "计划起飞机场", "起飞机场"},
	FieldArrAirport:       {"ARRAP", "ARR_AIRPORT", "ADES", "计划到达机场", "到达机场"},
	FieldActualArrAirport: {"ACTUAL_ARRAP", "ACTUAL_ARR_AIRPORT", "实际到达机场"},
	FieldRegNo:            {"REGNO", "REG_NO", "机号", "注册号"},
	FieldCraftType:        {"CRAFTTYPE", "CRAFT_TYPE", "AIRCRAFT_TYPE", "机型"},
	FieldSOBT:             {"SOBT", "计划离港时间", "计划撤轮挡时间"},
	FieldSIBT:             {"SIBT", "计划到港时间", "计划上轮挡时间"},
	FieldETOT:             {"ETOT", "预计起飞时间"},
	FieldATOT:             {"ATOT", "实际起飞时间"},
	FieldALDT:             {"ALDT", "实际落地时间"},
	FieldScheduleStatus:   {"STATUS", "SCHEDULE_STATUS", "航班状态"},
	FieldMessageKind:      {"MSGTYPE", "MESSAGE_TYPE", "报文类型"},
	FieldRawMessage:       {"TEXT", "RAW_MESSAGE", "原始报文"},
	FieldFormatCheck:      {"FORMAT_CHECK", "格式校验"},
	FieldLogicCheck:       {"LOGIC_CHECK", "逻辑校验"},
	FieldTimelinessCheck:  {"TIMELINESS_CHECK", "及时性校验"},
}

var dynMapping = Mapping{
	FieldAirlineICAO:      {"airlineIcaoCode", "airlineIcao", "AIRLINE_ICAO", "航空公司三字码"},
	FieldFlightNo:         {"flightNo", "flightNumber", "FLIGHTNO", "航班号"},
	FieldDepAirport:       {"depAirport", "depAp", "adep", "DEPAP", "起飞机场"},
	FieldArrAirport:       {"arrAirport", "arrAp", "ades", "ARRAP", "到达机场"},
	FieldActualArrAirport: {"actualArrAirport", "actualArrAp", "实际到达机场"},
	FieldRegNo:            {"regNo", "registration", "REGNO", "机号"},
	FieldCraftType:        {"craftType", "aircraftType", "CRAFTTYPE", "机型"},
	FieldSOBT:             {"sobt", "SOBT", "计划离港时间"},
	FieldSIBT:             {"sibt", "SIBT", "计划到港时间"},
	FieldETOT:             {"etot", "ETOT", "预计起飞时间"},
	FieldATOT:             {"atot", "ATOT", "实际起飞时间"},
	FieldALDT:             {"aldt", "ALDT", "实际落地时间"},
	FieldScheduleStatus:   {"scheduleStatus", "flightStatus", "STATUS", "航班状态"},
	FieldMessageKind:      {"msgType", "messageType", "MSGTYPE", "报文类型"},
	FieldRawMessage:       {"text", "rawMessage", "TEXT", "原始报文"},
	FieldFormatCheck:      {"formatCheck", "FORMAT_CHECK", "格式校验"},
	FieldLogicCheck:       {"logicCheck", "LOGIC_CHECK", "逻辑校验"},
	FieldTimelinessCheck:  {"timelinessCheck", "TIMELINESS_CHECK", "及时性校验"},
}

// DefaultMappings returns a fresh copy of the built-in table for every stream.
func DefaultMappings() map[domain.Stream]Mapping {
	return map[domain.Stream]Mapping{
		domain.StreamPlan:   planMapping.clone(),
		domain.StreamDynDep: dynMapping.clone(),
		domain.StreamDynArr: dynMapping.clone(),
		domain.StreamObs:    dynMapping.clone(),
	}
}

func (m Mapping) clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// WithOverrides returns the default tables with configured candidates
// placed ahead of the built-in ones. Keys are stream tags, then canonical
// field names.
func WithOverrides(overrides map[string]map[string][]string) (map[domain.Stream]Mapping, error) {
	out := DefaultMappings()
	streams := make([]string, 0, len(overrides))
	for s := range overrides {
		streams = append(streams, s)
	}
	sort.Strings(streams)
	for _, s := range streams {
		stream := domain.Stream(s)
		if !stream.Valid() {
			return nil, fmt.Errorf("mapping for unknown stream %q", s)
		}
		for field, candidates := range overrides[s] {
			if !isCanonical(field) {
				return nil, fmt.Errorf("mapping for %s: unknown canonical field %q", s, field)
			}
			out[stream][field] = append(append([]string(nil), candidates...), out[stream][field]...)
		}
	}
	return out, nil
}
