package campus

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultReportAdjustment is the +10% factor applied to the adjusted average.
const DefaultReportAdjustment = 1.1

type reportKey struct {
	universityID, professorID, departmentID, studentID, subjectID int64
}

// AggregateGrades groups grades by (university, professor, department, student, subject), as the
// report_university_grade view does: university, professor & subject come from the enrollment,
// the department from the enrollment's professor. Grades whose enrollment (or professor) is unknown are skipped.
// Rows are sorted by ID.
func AggregateGrades(
	grades []Grade,
	enrollments map[int64]Enrollment,
	professors map[int64]Professor,
	adjustment float64,
) []GradeReport {
	rows := make(map[reportKey]*GradeReport)
	for _, g := range grades {
		enr, ok := enrollments[g.EnrollmentID]
		if !ok {
			continue
		}
		prof, ok := professors[enr.ProfessorID]
		if !ok {
			continue
		}

		key := reportKey{enr.UniversityID, enr.ProfessorID, prof.DepartmentID, g.StudentID, enr.SubjectID}
		row, ok := rows[key]
		if !ok {
			row = &GradeReport{
				ID:           g.ID,
				UniversityID: key.universityID,
				ProfessorID:  key.professorID,
				DepartmentID: key.departmentID,
				StudentID:    key.studentID,
				SubjectID:    key.subjectID,
			}
			rows[key] = row
		}
		if g.ID < row.ID {
			row.ID = g.ID
		}
		row.Total += g.Value
		row.Count++
	}

	report := make([]GradeReport, 0, len(rows))
	for _, row := range rows {
		row.Average, row.Adjusted = Averages(row.Total, row.Count, adjustment)
		report = append(report, *row)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].ID < report[j].ID })
	return report
}

// Averages returns round(total/count, 2) and round(total/count * adjustment, 2); both are 0 when count is 0.
func Averages(total float64, count int, adjustment float64) (avg, adjusted float64) {
	if count == 0 {
		return 0, 0
	}
	mean := decimal.NewFromFloat(total / float64(count))
	avg, _ = mean.Round(2).Float64()
	adjusted, _ = mean.Mul(decimal.NewFromFloat(adjustment)).Round(2).Float64()
	return avg, adjusted
}
