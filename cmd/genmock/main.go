// Command genmock writes one reporting day of deterministic mock inputs: a
// plan spreadsheet (title row, Chinese headers) and departure and arrival
// telegram exports with a JSON payload column. The same seed always yields
// the same files, so fixtures can be regenerated and diffed.
//
// Usage:
//
//	go run ./cmd/genmock -date 2025-09-23 -airport ZGGG -flights 120 -out data/mock
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/flight-recon/internal/domain"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"
)

var (
	airlines = []string{"CES", "CSN", "CCA", "CHH", "CXA", "CSC"}
	airports = []string{"ZGGG", "ZSSS", "ZBAA", "ZUUU", "ZSPD", "ZJSY", "ZPPP", "ZHHH"}
	types    = []string{"A320", "A321", "B738", "A333", "B789"}
)

// planHeader matches the default plan mapping; CREATETIME is the insertion column.
var planHeader = []string{"呼号", "起飞机场", "到达机场", "机号", "机型", "计划离港时间", "计划到港时间", "航班状态", "报文类型", "格式校验", "CREATETIME"}

var dynHeader = []string{"ID", "MSG_TYPE", "CREATETIME", "PAYLOAD"}

type params struct {
	day     time.Time // midnight UTC+8
	airport string
	flights int
	seed    uint64
	out     string
}

// manifest summarizes what was generated.
type manifest struct {
	Date        string   `json:"date"`
	Airport     string   `json:"airport"`
	Seed        uint64   `json:"seed"`
	Flights     int      `json:"flights"`
	PlanRows    int      `json:"plan_rows"`
	DepRows     int      `json:"dep_rows"`
	ArrRows     int      `json:"arr_rows"`
	Cancelled   int      `json:"cancelled"`
	Unresolved  int      `json:"unresolved"`
	Files       []string `json:"files"` // names relative to the output directory
	GeneratedAt string   `json:"generated_at"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	date := flag.String("date", "", "reporting date YYYY-MM-DD")
	airport := flag.String("airport", "ZGGG", "target airport ICAO")
	flights := flag.Int("flights", 100, "number of planned flights")
	seed := flag.Uint64("seed", 20250923, "random seed")
	out := flag.String("out", "data/mock", "output directory")
	flag.Parse()

	if *date == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -date")
	}
	day, err := time.ParseInLocation(domain.DateLayout, *date, domain.Beijing)
	if err != nil {
		return fmt.Errorf("parse -date: %w", err)
	}
	if !domain.IsAirportICAO(*airport) {
		return fmt.Errorf("invalid -airport %q", *airport)
	}

	m, err := generate(params{day: day, airport: *airport, flights: *flights, seed: *seed, out: *out})
	if err != nil {
		return err
	}
	log.Printf("plan: %d rows, dep: %d rows, arr: %d rows (%d cancelled, %d unresolved)",
		m.PlanRows, m.DepRows, m.ArrRows, m.Cancelled, m.Unresolved)
	for _, f := range m.Files {
		log.Printf("wrote %s", filepath.Join(*out, f))
	}
	return nil
}

type flight struct {
	airline   string
	number    string
	dep, arr  string
	reg       string
	craft     string
	sobt      time.Time
	sibt      time.Time
	cancelled bool
}

func (f flight) callsign() string { return f.airline + f.number }

type gen struct {
	p     params
	rng   *rand.Rand
	clock *clockwork.FakeClock
}

func (g *gen) pick(xs []string) string { return xs[g.rng.IntN(len(xs))] }

func (g *gen) chance(pct int) bool { return g.rng.IntN(100) < pct }

func (g *gen) flight(i int) flight {
	f := flight{
		airline: g.pick(airlines),
		number:  strconv.Itoa(100 + i*7 + g.rng.IntN(7)),
		craft:   g.pick(types),
		reg:     fmt.Sprintf("B-%04d", 1000+g.rng.IntN(9000)),
	}
	other := g.pick(airports)
	for other == g.p.airport {
		other = g.pick(airports)
	}
	if i%2 == 0 {
		f.dep, f.arr = other, g.p.airport
	} else {
		f.dep, f.arr = g.p.airport, other
	}
	f.sobt = g.p.day.Add(6*time.Hour + time.Duration(i*9)*time.Minute)
	f.sibt = f.sobt.Add(time.Duration(90+g.rng.IntN(120)) * time.Minute)
	f.cancelled = g.chance(4)
	return f
}

// generate writes the three input files and a manifest under p.out.
func generate(p params) (*manifest, error) {
	if err := os.MkdirAll(p.out, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	g := &gen{
		p:     p,
		rng:   rand.New(rand.NewPCG(p.seed, p.seed^0x9e3779b97f4a7c15)), //nolint:gosec // reproducible fixtures
		clock: clockwork.NewFakeClockAt(p.day.Add(-6 * time.Hour)),
	}
	stamp := p.day.Format("20060102")
	m := &manifest{
		Date:        p.day.Format(domain.DateLayout),
		Airport:     p.airport,
		Seed:        p.seed,
		Flights:     p.flights,
		GeneratedAt: g.clock.Now().Format(time.RFC3339),
	}

	flights := make([]flight, p.flights)
	for i := range flights {
		flights[i] = g.flight(i)
	}

	plan := [][]any{}
	for _, f := range flights {
		rows := g.planRows(f)
		plan = append(plan, rows...)
		if f.cancelled {
			m.Cancelled++
		}
	}
	dep, arr, unresolved := g.dynRows(flights)
	m.PlanRows, m.DepRows, m.ArrRows, m.Unresolved = len(plan), len(dep), len(arr), unresolved

	planPath := filepath.Join(p.out, "plan_"+stamp+".xlsx")
	if err := writePlan(planPath, p.day, plan); err != nil {
		return nil, err
	}
	depPath := filepath.Join(p.out, "dyn_dep_"+stamp+".csv")
	if err := writeDyn(depPath, dep); err != nil {
		return nil, err
	}
	arrPath := filepath.Join(p.out, "dyn_arr_"+stamp+".csv")
	if err := writeDyn(arrPath, arr); err != nil {
		return nil, err
	}
	m.Files = []string{filepath.Base(planPath), filepath.Base(depPath), filepath.Base(arrPath)}

	manifestPath := filepath.Join(p.out, "manifest_"+stamp+".json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil { //nolint:gosec // fixtures are shared
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	m.Files = append(m.Files, filepath.Base(manifestPath))
	return m, nil
}

func ts(t time.Time) string { return t.In(domain.Beijing).Format("20060102150405") }

func minute(t time.Time) string { return t.In(domain.Beijing).Format("200601021504") }

// planRows emits an FPL filed hours ahead, sometimes followed by a CHG that
// drops the registration (a diff message) or a CNL.
func (g *gen) planRows(f flight) [][]any {
	filed := f.sobt.Add(-time.Duration(3+g.rng.IntN(6)) * time.Hour)
	check := ""
	if g.chance(5) {
		check = "SOBT format invalid"
	} else if g.chance(10) {
		check = "SIBT field value is empty"
	}
	rows := [][]any{{f.callsign(), f.dep, f.arr, f.reg, f.craft, minute(f.sobt), minute(f.sibt), "", "FPL", check, ts(filed)}}
	switch {
	case f.cancelled:
		rows = append(rows, []any{f.callsign(), f.dep, f.arr, "", "", minute(f.sobt), "", "CNL", "CNL", "", ts(filed.Add(time.Hour))})
	case g.chance(15):
		rows = append(rows, []any{f.callsign(), f.dep, f.arr, "", f.craft, minute(f.sobt), minute(f.sibt), "", "CHG", "", ts(filed.Add(30 * time.Minute))})
	}
	return rows
}

type dynPayload struct {
	AirlineICAO string `json:"airlineIcaoCode,omitempty"`
	FlightNo    string `json:"flightNo"`
	DepAirport  string `json:"depAirport"`
	ArrAirport  string `json:"arrAirport"`
	RegNo       string `json:"regNo,omitempty"`
	CraftType   string `json:"craftType,omitempty"`
	SOBT        string `json:"sobt,omitempty"`
	SIBT        string `json:"sibt,omitempty"`
	ATOT        string `json:"atot,omitempty"`
	ALDT        string `json:"aldt,omitempty"`
	Text        string `json:"text"`
	FormatCheck string `json:"formatCheck,omitempty"`
	Timeliness  string `json:"timelinessCheck,omitempty"`
}

type dynRow struct {
	kind     string
	received time.Time
	payload  dynPayload
}

// dynRows walks the fake clock through the day emitting DEP and ARR telegrams
// in receive order.
func (g *gen) dynRows(flights []flight) (dep, arr []dynRow, unresolved int) {
	for _, f := range flights {
		if f.cancelled || g.chance(10) {
			continue
		}
		atot := f.sobt.Add(time.Duration(5+g.rng.IntN(40)) * time.Minute)
		aldt := atot.Add(f.sibt.Sub(f.sobt) - time.Duration(10+g.rng.IntN(10))*time.Minute)
		reg := f.reg
		if g.chance(10) {
			reg = fmt.Sprintf("B-%04d", 1000+g.rng.IntN(9000))
		}
		base := dynPayload{AirlineICAO: f.airline, FlightNo: f.number, DepAirport: f.dep, ArrAirport: f.arr}
		if g.chance(2) {
			base.AirlineICAO = ""
			unresolved++
		}

		d := base
		d.SOBT = minute(f.sobt)
		d.ATOT = ts(atot)
		d.Text = fmt.Sprintf("(DEP-%s-%s%s-%s-DOF/%s)", f.callsign(), f.dep, atot.In(domain.Beijing).Format("1504"), f.arr, f.sobt.In(domain.Beijing).Format("060102"))
		dep = append(dep, dynRow{kind: "DEP", received: g.receive(atot), payload: d})

		a := base
		a.RegNo, a.CraftType = reg, f.craft
		a.SOBT, a.SIBT = minute(f.sobt), minute(f.sibt)
		a.ALDT = ts(aldt)
		a.Text = fmt.Sprintf("(ARR-%s-%s-%s%s)", f.callsign(), f.dep, f.arr, aldt.In(domain.Beijing).Format("1504"))
		if g.chance(8) {
			a.Timeliness = "ALDT reported late"
		}
		arr = append(arr, dynRow{kind: "ARR", received: g.receive(aldt), payload: a})
	}
	return dep, arr, unresolved
}

// receive advances the fake clock to just after the event and returns the
// receive instant.
func (g *gen) receive(event time.Time) time.Time {
	at := event.Add(time.Duration(30+g.rng.IntN(90)) * time.Second)
	if d := at.Sub(g.clock.Now()); d > 0 {
		g.clock.Advance(d)
	}
	return at
}

func writePlan(path string, day time.Time, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	sheet := f.GetSheetName(0)
	title := []any{"航班计划 " + day.Format(domain.DateLayout)}
	if err := f.SetSheetRow(sheet, "A1", &title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	hdr := make([]any, len(planHeader))
	for i, h := range planHeader {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A2", &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write plan row %d: %w", i+3, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeDyn(path string, rows []dynRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(dynHeader); err != nil {
		return err
	}
	for i, r := range rows {
		payload, err := json.Marshal(r.payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if err := w.Write([]string{strconv.Itoa(i + 1), r.kind, ts(r.received), string(payload)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // fixtures are shared
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
