package attendance

import (
	"context"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// RecentLimit is the number of records shown as recent activity on the dashboard.
const RecentLimit = 5

type (
	// Totals counts records by outcome. Matched and manual records count as present,
	// low confidence ones as unconfirmed and unmatched ones as absent.
	Totals struct {
		Records     int     `json:"records"`
		Present     int     `json:"present"`
		Unconfirmed int     `json:"unconfirmed"`
		Absent      int     `json:"absent"`
		Rate        float64 `json:"attendance_rate"` // percent of records marked present
	}

	StudentReport struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
		Totals
	}

	ClassReport struct {
		ClassID  int    `json:"class_id"`
		Name     string `json:"name"`
		Code     string `json:"code"`
		Sittings int    `json:"sittings"` // submitted sessions and manual entries
		Totals
	}

	Report struct {
		Since    *time.Time      `json:"since,omitempty"`
		Totals   Totals          `json:"totals"`
		Students []StudentReport `json:"students"`
		Classes  []ClassReport   `json:"classes"`
	}

	Dashboard struct {
		Date    string        `json:"date"` // UTC, YYYY-MM-DD
		Today   Totals        `json:"today"`
		Classes []ClassReport `json:"classes"`
		Recent  []Record      `json:"recent"`
	}

	ReportFilter struct {
		ClassID int `query:"class_id"`
		Days    int `query:"days"` // only the last n days; 0 means all time
	}
)

func (t *Totals) add(r Record) {
	t.Records++
	switch {
	case r.Manual || r.Status == StatusMatched:
		t.Present++
	case r.Status == StatusLowConfidence:
		t.Unconfirmed++
	default:
		t.Absent++
	}
	t.Rate = Rate(t.Present, t.Records)
}

// Rate returns part/total as a percentage with one decimal, 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}

// BuildReport aggregates records per student and per class. Every class of the directory
// is listed, those without records with zero totals.
func BuildReport(records []Record, classes []Class) Report {
	rep := Report{Students: []StudentReport{}, Classes: []ClassReport{}}

	students := make(map[string]*StudentReport)
	byClass := make(map[int]*ClassReport)
	sittings := make(map[int]map[string]bool)
	for _, c := range classes {
		byClass[c.ID] = &ClassReport{ClassID: c.ID, Name: c.Name, Code: c.Code}
	}

	for _, r := range records {
		rep.Totals.add(r)

		s, ok := students[r.StudentID]
		if !ok {
			s = &StudentReport{StudentID: r.StudentID}
			students[r.StudentID] = s
		}
		if s.Name == "" {
			s.Name = r.Name
		}
		s.add(r)

		c, ok := byClass[r.ClassID]
		if !ok {
			c = &ClassReport{ClassID: r.ClassID, Code: "#" + strconv.Itoa(r.ClassID)}
			byClass[r.ClassID] = c
		}
		c.add(r)
		sitting := r.SessionID
		if sitting == "" || r.Manual {
			sitting = "manual:" + r.ID
		}
		if sittings[r.ClassID] == nil {
			sittings[r.ClassID] = make(map[string]bool)
		}
		sittings[r.ClassID][sitting] = true
	}

	for _, s := range students {
		rep.Students = append(rep.Students, *s)
	}
	sort.Slice(rep.Students, func(i, j int) bool { return rep.Students[i].StudentID < rep.Students[j].StudentID })

	for id, c := range byClass {
		c.Sittings = len(sittings[id])
		rep.Classes = append(rep.Classes, *c)
	}
	sort.Slice(rep.Classes, func(i, j int) bool { return rep.Classes[i].ClassID < rep.Classes[j].ClassID })
	return rep
}

// BuildDashboard summarizes the records of the UTC day of now and lists the latest records.
func BuildDashboard(records []Record, classes []Class, now time.Time) Dashboard {
	day := now.UTC().Truncate(24 * time.Hour)
	today := make([]Record, 0)
	for _, r := range records {
		if !r.RecordedAt.Before(day) && r.RecordedAt.Before(day.Add(24*time.Hour)) {
			today = append(today, r)
		}
	}
	rep := BuildReport(today, classes)

	recent := append(make([]Record, 0, len(records)), records...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].RecordedAt.After(recent[j].RecordedAt) })
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return Dashboard{
		Date:    day.Format("2006-01-02"),
		Today:   rep.Totals,
		Classes: rep.Classes,
		Recent:  recent,
	}
}

// WriteCSV writes one line per student, then one line per class.
func (rep Report) WriteCSV(w io.Writer) error {
	header := []string{"kind", "id", "name", "records", "present", "unconfirmed", "absent", "attendance_rate"}
	row := func(kind, id, name string, t Totals) []string {
		return []string{
			kind, id, name,
			strconv.Itoa(t.Records), strconv.Itoa(t.Present), strconv.Itoa(t.Unconfirmed), strconv.Itoa(t.Absent),
			strconv.FormatFloat(t.Rate, 'f', 1, 64),
		}
	}

	rows := make([][]string, 0, len(rep.Students)+len(rep.Classes))
	for _, s := range rep.Students {
		rows = append(rows, row("student", s.StudentID, s.Name, s.Totals))
	}
	for _, c := range rep.Classes {
		rows = append(rows, row("class", c.Code, c.Name, c.Totals))
	}
	return writeCSV(w, header, rows)
}

// Reports aggregates the records of a RecordStore.
type Reports struct {
	records RecordStore
	classes ClassDirectory
}

func NewReports(records RecordStore, classes ClassDirectory) *Reports {
	return &Reports{records: records, classes: classes}
}

func (r *Reports) Report(ctx context.Context, filter ReportFilter) (Report, error) {
	rf := RecordFilter{ClassID: filter.ClassID}
	if filter.Days > 0 {
		rf.Since = NowFunc().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(filter.Days - 1))
	}
	records, err := r.records.ListRecords(ctx, rf)
	if err != nil {
		return Report{}, errors.Wrap(err, "listing attendance records")
	}
	classes, err := r.classes.ListClasses(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "listing classes")
	}
	if filter.ClassID > 0 {
		classes = onlyClass(classes, filter.ClassID)
	}

	rep := BuildReport(records, classes)
	if !rf.Since.IsZero() {
		rep.Since = &rf.Since
	}
	return rep, nil
}

func (r *Reports) Dashboard(ctx context.Context) (Dashboard, error) {
	records, err := r.records.ListRecords(ctx, RecordFilter{})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "listing attendance records")
	}
	classes, err := r.classes.ListClasses(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "listing classes")
	}
	return BuildDashboard(records, classes, NowFunc()), nil
}

func onlyClass(classes []Class, id int) []Class {
	for _, c := range classes {
		if c.ID == id {
			return []Class{c}
		}
	}
	return nil
}
