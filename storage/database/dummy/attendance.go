package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/rollcall/core/attendance"
)

var nowFunc = time.Now // mockable

type attendanceRepository struct {
	db       *attendanceTable
	students *studentTable
}

var _ attendance.RecordStore = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.RecordStore {
	return &attendanceRepository{db: db.attendance, students: db.student}
}

func (repo *attendanceRepository) Submit(_ context.Context, sub attendance.Submission) (attendance.Receipt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := nowFunc().UTC()
	for _, r := range sub.Records {
		repo.db.rows = append(repo.db.rows, attendance.Record{
			ID:         uuid.NewString(),
			SessionID:  sub.SessionID,
			ClassID:    sub.ClassID,
			StudentID:  r.StudentID,
			Name:       r.Name,
			Confidence: r.Confidence,
			Status:     r.Status,
			RecordedBy: sub.Operator.UserID,
			RecordedAt: now,
		})
	}
	return attendance.Receipt{
		ID:         uuid.NewString(),
		SessionID:  sub.SessionID,
		ClassID:    sub.ClassID,
		Count:      len(sub.Records),
		Message:    attendance.SubmittedMessage,
		ReceivedAt: now,
	}, nil
}

func (repo *attendanceRepository) SubmitManual(_ context.Context, entry attendance.ManualEntry) (attendance.Receipt, error) {
	name := repo.studentName(entry.StudentID)

	repo.db.Lock()
	defer repo.db.Unlock()

	now := nowFunc().UTC()
	repo.db.rows = append(repo.db.rows, attendance.Record{
		ID:         uuid.NewString(),
		ClassID:    entry.ClassID,
		StudentID:  entry.StudentID,
		Name:       name,
		Confidence: 1,
		Status:     attendance.StatusMatched,
		Manual:     true,
		RecordedBy: entry.Operator.UserID,
		RecordedAt: now,
	})
	return attendance.Receipt{
		ID:         uuid.NewString(),
		ClassID:    entry.ClassID,
		Count:      1,
		Message:    attendance.SubmittedMessage,
		ReceivedAt: now,
	}, nil
}

func (repo *attendanceRepository) studentName(studentID string) string {
	repo.students.RLock()
	defer repo.students.RUnlock()
	for _, s := range repo.students.table {
		if s.StudentID == studentID {
			return s.Name
		}
	}
	return ""
}

func (repo *attendanceRepository) ListRecords(_ context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Record, 0)
	for _, r := range repo.db.rows {
		if filter.ClassID > 0 && r.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if !filter.Since.IsZero() && r.RecordedAt.Before(filter.Since) {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
