package campus

import (
	"context"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

// StudentGrades lists the grades visible to viewer. Admins see every grade matching filter;
// other viewers only see the grades of the student linked to their account, whatever filter.StudentID says.
func (svc *Service) StudentGrades(ctx context.Context, viewer account.User, filter GradeFilter) (grades []Grade, err error) {
	if err = filter.applyStatus(svc.passingGrade); err != nil {
		return nil, err
	}

	err = svc.store.View(ctx, func(repo Repository) error {
		if !viewer.IsAdmin() {
			st, err := repo.GetStudentByUser(ctx, viewer.ID)
			if err != nil {
				if core.IsNotFound(err) {
					return core.ErrForbidden
				}
				return err
			}
			filter.StudentID = st.ID
		}
		grades, err = repo.QueryGrades(ctx, filter)
		return err
	})
	return grades, err
}

// Passed reports whether value is a passing grade.
func (svc *Service) Passed(value float64) bool {
	return value >= svc.passingGrade
}
