package attendance

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecordStore struct {
	fakeSink
	records []Record
	err     error
	filter  RecordFilter
}

func (s *fakeRecordStore) ListRecords(_ context.Context, filter RecordFilter) ([]Record, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if filter.ClassID > 0 && r.ClassID != filter.ClassID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var reportDay = time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

func rec(id, session string, classID int, studentID string, status MatchStatus, at time.Time) Record {
	return Record{ID: id, SessionID: session, ClassID: classID, StudentID: studentID, Name: "Student " + studentID, Status: status, RecordedAt: at}
}

func reportRecords() []Record {
	yesterday := reportDay.Add(-24 * time.Hour)
	return []Record{
		rec("r1", "s1", 1, "ST1001", StatusMatched, yesterday),
		rec("r2", "s1", 1, "ST1003", StatusLowConfidence, yesterday),
		rec("r3", "s1", 1, "ST1004", StatusUnmatched, yesterday),
		rec("r4", "s2", 1, "ST1001", StatusMatched, reportDay),
		rec("r5", "s2", 1, "ST1004", StatusMatched, reportDay),
		{ID: "r6", ClassID: 2, StudentID: "ST1003", Name: "Student ST1003", Status: StatusMatched, Manual: true, RecordedAt: reportDay.Add(time.Minute)},
		{ID: "r7", ClassID: 2, StudentID: "ST1003", Name: "Student ST1003", Status: StatusMatched, Manual: true, RecordedAt: reportDay.Add(2 * time.Minute)},
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		name        string
		part, total int
		want        float64
	}{
		{name: "no records", part: 0, total: 0, want: 0},
		{name: "all present", part: 4, total: 4, want: 100},
		{name: "none present", part: 0, total: 3, want: 0},
		{name: "one third", part: 1, total: 3, want: 33.3},
		{name: "two thirds", part: 2, total: 3, want: 66.7},
		{name: "half", part: 1, total: 2, want: 50},
		{name: "one seventh", part: 1, total: 7, want: 14.3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Rate(tc.part, tc.total))
		})
	}
}

func TestTotals_add(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   Totals
	}{
		{name: "matched", record: Record{Status: StatusMatched}, want: Totals{Records: 1, Present: 1, Rate: 100}},
		{name: "manual", record: Record{Status: StatusMatched, Manual: true}, want: Totals{Records: 1, Present: 1, Rate: 100}},
		{name: "low confidence", record: Record{Status: StatusLowConfidence}, want: Totals{Records: 1, Unconfirmed: 1}},
		{name: "unmatched", record: Record{Status: StatusUnmatched}, want: Totals{Records: 1, Absent: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var tot Totals
			tot.add(tc.record)
			assert.Equal(t, tc.want, tot)
		})
	}
}

func TestBuildReport(t *testing.T) {
	classes := []Class{
		{ID: 1, Name: "Web Development", Code: "CS101"},
		{ID: 2, Name: "Database Systems", Code: "CS202"},
		{ID: 3, Name: "Machine Learning", Code: "CS301"},
	}

	t.Run("empty", func(t *testing.T) {
		rep := BuildReport(nil, classes)
		assert.Equal(t, Totals{}, rep.Totals)
		assert.Empty(t, rep.Students)
		require.Len(t, rep.Classes, 3)
		for _, c := range rep.Classes {
			assert.Zero(t, c.Sittings)
			assert.Zero(t, c.Rate)
		}
	})

	rep := BuildReport(reportRecords(), classes)

	assert.Equal(t, Totals{Records: 7, Present: 5, Unconfirmed: 1, Absent: 1, Rate: 71.4}, rep.Totals)

	students := []struct {
		id   string
		want Totals
	}{
		{id: "ST1001", want: Totals{Records: 2, Present: 2, Rate: 100}},
		{id: "ST1003", want: Totals{Records: 3, Present: 2, Unconfirmed: 1, Rate: 66.7}},
		{id: "ST1004", want: Totals{Records: 2, Present: 1, Absent: 1, Rate: 50}},
	}
	require.Len(t, rep.Students, len(students))
	for i, s := range students {
		assert.Equal(t, s.id, rep.Students[i].StudentID)
		assert.Equal(t, "Student "+s.id, rep.Students[i].Name)
		assert.Equal(t, s.want, rep.Students[i].Totals, s.id)
	}

	classTests := []struct {
		code     string
		sittings int
		want     Totals
	}{
		{code: "CS101", sittings: 2, want: Totals{Records: 5, Present: 3, Unconfirmed: 1, Absent: 1, Rate: 60}},
		{code: "CS202", sittings: 2, want: Totals{Records: 2, Present: 2, Rate: 100}},
		{code: "CS301", sittings: 0, want: Totals{}},
	}
	require.Len(t, rep.Classes, len(classTests))
	for i, c := range classTests {
		assert.Equal(t, c.code, rep.Classes[i].Code)
		assert.Equal(t, c.sittings, rep.Classes[i].Sittings, c.code)
		assert.Equal(t, c.want, rep.Classes[i].Totals, c.code)
	}

	t.Run("record of an unknown class", func(t *testing.T) {
		rep := BuildReport([]Record{rec("x", "s9", 9, "ST1001", StatusMatched, reportDay)}, nil)
		require.Len(t, rep.Classes, 1)
		assert.Equal(t, "#9", rep.Classes[0].Code)
		assert.Equal(t, 1, rep.Classes[0].Sittings)
	})
}

func TestBuildDashboard(t *testing.T) {
	classes := []Class{{ID: 1, Name: "Web Development", Code: "CS101"}, {ID: 2, Name: "Database Systems", Code: "CS202"}}

	dash := BuildDashboard(reportRecords(), classes, reportDay)

	assert.Equal(t, "2024-03-11", dash.Date)
	assert.Equal(t, Totals{Records: 4, Present: 4, Rate: 100}, dash.Today)
	require.Len(t, dash.Classes, 2)
	assert.Equal(t, 1, dash.Classes[0].Sittings)
	assert.Equal(t, 2, dash.Classes[1].Sittings)

	require.Len(t, dash.Recent, RecentLimit)
	ids := make([]string, 0, len(dash.Recent))
	for _, r := range dash.Recent {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r7", "r6", "r4", "r5", "r1"}, ids)

	empty := BuildDashboard(nil, classes, reportDay)
	assert.NotNil(t, empty.Recent)
	assert.Empty(t, empty.Recent)
}

func TestReport_WriteCSV(t *testing.T) {
	rep := BuildReport(reportRecords(), []Class{{ID: 1, Name: "Web Development", Code: "CS101"}, {ID: 2, Name: "Database Systems", Code: "CS202"}})

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"kind,id,name,records,present,unconfirmed,absent,attendance_rate",
		"student,ST1001,Student ST1001,2,2,0,0,100.0",
		"student,ST1003,Student ST1003,3,2,1,0,66.7",
		"student,ST1004,Student ST1004,2,1,0,1,50.0",
		"class,CS101,Web Development,5,3,1,1,60.0",
		"class,CS202,Database Systems,2,2,0,0,100.0",
	}, lines)
}

func TestReports(t *testing.T) {
	NowFunc = func() time.Time { return reportDay }
	defer func() { NowFunc = time.Now }()

	t.Run("class filter", func(t *testing.T) {
		store := &fakeRecordStore{records: reportRecords()}
		rep, err := NewReports(store, fakeClasses{}).Report(context.Background(), ReportFilter{ClassID: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, store.filter.ClassID)
		assert.True(t, store.filter.Since.IsZero())
		assert.Nil(t, rep.Since)
		require.Len(t, rep.Classes, 1)
		assert.Equal(t, "CS202", rep.Classes[0].Code)
		assert.Equal(t, Totals{Records: 2, Present: 2, Rate: 100}, rep.Totals)
	})

	t.Run("last days", func(t *testing.T) {
		store := &fakeRecordStore{}
		rep, err := NewReports(store, fakeClasses{}).Report(context.Background(), ReportFilter{Days: 7})
		require.NoError(t, err)
		want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, want, store.filter.Since)
		require.NotNil(t, rep.Since)
		assert.Equal(t, want, *rep.Since)
		assert.Len(t, rep.Classes, 4)
	})

	t.Run("dashboard", func(t *testing.T) {
		store := &fakeRecordStore{records: reportRecords()}
		dash, err := NewReports(store, fakeClasses{}).Dashboard(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2024-03-11", dash.Date)
		assert.Equal(t, 4, dash.Today.Records)
	})

	errTests := []struct {
		name    string
		store   *fakeRecordStore
		classes fakeClasses
		wantErr string
	}{
		{name: "records", store: &fakeRecordStore{err: errBoom}, wantErr: "listing attendance records: boom"},
		{name: "classes", store: &fakeRecordStore{}, classes: fakeClasses{err: errBoom}, wantErr: "listing classes: boom"},
	}
	for _, tc := range errTests {
		t.Run(tc.name+" error", func(t *testing.T) {
			reports := NewReports(tc.store, tc.classes)
			_, err := reports.Report(context.Background(), ReportFilter{})
			assert.EqualError(t, err, tc.wantErr)
			_, err = reports.Dashboard(context.Background())
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}
