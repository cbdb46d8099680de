package boiledrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/universidad/core/campus"
)

const reportView = "report_university_grade"

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

type gradeReportRow struct {
	ID           int64      `boil:"id"`
	UniversityID null.Int64 `boil:"university_id"`
	ProfessorID  null.Int64 `boil:"professor_id"`
	DepartmentID null.Int64 `boil:"department_id"`
	StudentID    int64      `boil:"student_id"`
	SubjectID    null.Int64 `boil:"subject_id"`
	Total        float64    `boil:"total"`
	Count        int        `boil:"count"`
	Average      float64    `boil:"average"`
	Adjusted     float64    `boil:"adjusted"`
}

func (r gradeReportRow) unboil() campus.GradeReport {
	return campus.GradeReport{
		ID:           r.ID,
		UniversityID: r.UniversityID.Int64,
		ProfessorID:  r.ProfessorID.Int64,
		DepartmentID: r.DepartmentID.Int64,
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID.Int64,
		Total:        r.Total,
		Count:        r.Count,
		Average:      r.Average,
		Adjusted:     r.Adjusted,
	}
}

// ReportRepository reads the report_university_grade view.
type ReportRepository struct {
	exec boil.ContextExecutor
}

func NewReportRepository(exec boil.ContextExecutor) *ReportRepository {
	return &ReportRepository{exec: exec}
}

func (repo ReportRepository) QueryGradeReport(ctx context.Context, filter campus.ReportFilter) ([]campus.GradeReport, error) {
	mods := []qm.QueryMod{
		qm.Select("id", "university_id", "professor_id", "department_id", "student_id", "subject_id",
			"total", "count", "average", "adjusted"),
		qm.From(reportView),
	}
	eq := func(col string, id int64) {
		if id != 0 {
			mods = append(mods, qm.Where(col+" = ?", id))
		}
	}
	eq("university_id", filter.UniversityID)
	eq("professor_id", filter.ProfessorID)
	eq("department_id", filter.DepartmentID)
	eq("student_id", filter.StudentID)
	eq("subject_id", filter.SubjectID)
	mods = append(mods, qm.OrderBy("id"))

	var rows []gradeReportRow
	if err := newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying grade report")
	}

	report := make([]campus.GradeReport, 0, len(rows))
	for _, r := range rows {
		report = append(report, r.unboil())
	}
	return report, nil
}
