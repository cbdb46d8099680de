package campus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverages(t *testing.T) {
	tests := []struct {
		name         string
		total        float64
		count        int
		wantAvg      float64
		wantAdjusted float64
	}{
		{name: "no grade", total: 0, count: 0, wantAvg: 0, wantAdjusted: 0},
		{name: "6 and 8", total: 14, count: 2, wantAvg: 7, wantAdjusted: 7.7},
		{name: "rounded", total: 10, count: 3, wantAvg: 3.33, wantAdjusted: 3.67},
		{name: "perfect", total: 30, count: 3, wantAvg: 10, wantAdjusted: 11},
		{name: "half up on decimal digits", total: 1.005, count: 1, wantAvg: 1.01, wantAdjusted: 1.11},
		{name: "half up after division", total: 8.05, count: 2, wantAvg: 4.03, wantAdjusted: 4.43},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, adjusted := Averages(tt.total, tt.count, DefaultReportAdjustment)
			assert.InDelta(t, tt.wantAvg, avg, 1e-9)
			assert.InDelta(t, tt.wantAdjusted, adjusted, 1e-9)
		})
	}
}

func TestAggregateGrades(t *testing.T) {
	enrollments := map[int64]Enrollment{
		1: {ID: 1, StudentID: 10, SubjectID: 100, UniversityID: 1, ProfessorID: 20},
		2: {ID: 2, StudentID: 11, SubjectID: 100, UniversityID: 1, ProfessorID: 20},
		3: {ID: 3, StudentID: 10, SubjectID: 101, UniversityID: 1}, // no professor
		4: {ID: 4, StudentID: 10, SubjectID: 100, UniversityID: 1, ProfessorID: 20},
	}
	professors := map[int64]Professor{20: {ID: 20, DepartmentID: 5}}
	grades := []Grade{
		{ID: 7, StudentID: 10, EnrollmentID: 1, Value: 8},
		{ID: 3, StudentID: 10, EnrollmentID: 4, Value: 6}, // same group as #7
		{ID: 5, StudentID: 11, EnrollmentID: 2, Value: 9.5},
		{ID: 1, StudentID: 10, EnrollmentID: 3, Value: 2},  // left out
		{ID: 2, StudentID: 10, EnrollmentID: 99, Value: 2}, // unknown enrollment
	}

	got := AggregateGrades(grades, enrollments, professors, DefaultReportAdjustment)
	want := []GradeReport{
		{ID: 3, UniversityID: 1, ProfessorID: 20, DepartmentID: 5, StudentID: 10, SubjectID: 100, Total: 14, Count: 2, Average: 7, Adjusted: 7.7},
		{ID: 5, UniversityID: 1, ProfessorID: 20, DepartmentID: 5, StudentID: 11, SubjectID: 100, Total: 9.5, Count: 1, Average: 9.5, Adjusted: 10.45},
	}
	assert.Equal(t, want, got)
}
