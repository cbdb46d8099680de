package campus

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

// SendProfessorWelcome mails a welcome message, with a link to choose a password, to each professor.
func (svc *Service) SendProfessorWelcome(ctx context.Context, ids ...int64) error {
	var messages []*core.EmailMessage
	err := svc.store.View(ctx, func(repo Repository) error {
		for _, id := range ids {
			p, err := repo.GetProfessor(ctx, id)
			if err != nil {
				return err
			}
			u, err := repo.GetUniversity(ctx, p.UniversityID)
			if err != nil {
				return errors.Wrap(err, "finding university")
			}
			var depName string
			if p.DepartmentID != 0 {
				dep, err := repo.GetDepartment(ctx, p.DepartmentID)
				if err != nil {
					return errors.Wrap(err, "finding department")
				}
				depName = dep.Name
			}

			link, err := svc.setPasswordLink(ctx, p.UserID)
			if err != nil {
				return err
			}
			messages = append(messages, &core.EmailMessage{
				To:           []mail.Address{{Name: p.Name, Address: p.Email}},
				Subject:      "Welcome to " + u.Name,
				TemplateName: "professor_welcome",
				TemplateData: map[string]interface{}{
					"Name":           p.Name,
					"University":     u.Name,
					"Department":     depName,
					"SetPasswordURL": link,
				},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(messages...)
	return nil
}

// WelcomeColleagues sends the welcome message to professors of the viewer's department.
// The viewer must be a professor; it cannot welcome itself.
func (svc *Service) WelcomeColleagues(ctx context.Context, viewer account.User, ids []int64) error {
	if len(ids) == 0 {
		return invalid("professor_ids", "select at least one professor")
	}

	err := svc.store.View(ctx, func(repo Repository) error {
		cur, err := repo.GetProfessorByUser(ctx, viewer.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.ErrForbidden
			}
			return errors.Wrap(err, "finding current professor")
		}
		for _, id := range ids {
			if id == cur.ID {
				return invalid("professor_ids", "you cannot welcome yourself")
			}
			p, err := repo.GetProfessor(ctx, id)
			if err != nil {
				return lookupErr(err, "professor_ids", "professor")
			}
			if cur.DepartmentID == 0 || p.DepartmentID != cur.DepartmentID {
				return invalid("professor_ids", "professor %q is not a member of your department", p.Name)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return svc.SendProfessorWelcome(ctx, ids...)
}

// SendStudentWelcome mails a welcome message, with a link to choose a password, to the student.
func (svc *Service) SendStudentWelcome(ctx context.Context, id int64) error {
	var msg *core.EmailMessage
	err := svc.store.View(ctx, func(repo Repository) error {
		st, err := repo.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		u, err := repo.GetUniversity(ctx, st.UniversityID)
		if err != nil {
			return errors.Wrap(err, "finding university")
		}
		link, err := svc.setPasswordLink(ctx, st.UserID)
		if err != nil {
			return err
		}
		msg = &core.EmailMessage{
			To:           []mail.Address{{Name: st.Name, Address: st.Email}},
			Subject:      "Welcome to " + u.Name,
			TemplateName: "student_welcome",
			TemplateData: map[string]interface{}{
				"Name":           st.Name,
				"University":     u.Name,
				"SetPasswordURL": link,
			},
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *Service) setPasswordLink(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", invalid("id", "no account is linked to this person")
	}
	usr, err := svc.accounts.Get(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "finding account")
	}
	return svc.accounts.PasswordResetLink(usr), nil
}

type (
	gradeLine struct {
		Subject string
		Value   string
		Date    string
		Passed  bool
	}

	reportLine struct {
		Subject   string
		Professor string
		Count     int
		Average   string
		Adjusted  string
	}
)

// SendStudentReport mails the student its grades and report rows; the grades are attached as CSV.
func (svc *Service) SendStudentReport(ctx context.Context, id int64) error {
	var msg *core.EmailMessage
	err := svc.store.View(ctx, func(repo Repository) error {
		var err error
		msg, err = svc.studentReport(ctx, repo, id)
		return err
	})
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *Service) studentReport(ctx context.Context, repo Repository, id int64) (*core.EmailMessage, error) {
	st, err := repo.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	grades, err := repo.QueryGrades(ctx, GradeFilter{StudentID: id})
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	rows, err := repo.QueryGradeReport(ctx, ReportFilter{StudentID: id})
	if err != nil {
		return nil, errors.Wrap(err, "querying grade report")
	}

	subjects := make(map[int64]string)
	subjectName := func(sid int64) string {
		name, ok := subjects[sid]
		if !ok {
			if sub, err := repo.GetSubject(ctx, sid); err == nil {
				name = sub.Name
			}
			subjects[sid] = name
		}
		return name
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"subject", "grade", "date", "status"})

	gradeLines := make([]gradeLine, 0, len(grades))
	for _, g := range grades {
		line := gradeLine{
			Subject: subjectName(g.SubjectID),
			Value:   FormatGrade(g.Value),
			Date:    g.Date.Format(DateLayout),
			Passed:  svc.Passed(g.Value),
		}
		gradeLines = append(gradeLines, line)

		status := GradeStatusFailed
		if line.Passed {
			status = GradeStatusPassed
		}
		_ = w.Write([]string{line.Subject, line.Value, line.Date, status})
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return nil, errors.Wrap(err, "writing grades csv")
	}

	reportLines := make([]reportLine, 0, len(rows))
	for _, r := range rows {
		line := reportLine{
			Subject:  subjectName(r.SubjectID),
			Count:    r.Count,
			Average:  fmt.Sprintf("%.2f", r.Average),
			Adjusted: fmt.Sprintf("%.2f", r.Adjusted),
		}
		if prof, err := repo.GetProfessor(ctx, r.ProfessorID); err == nil {
			line.Professor = prof.Name
		}
		reportLines = append(reportLines, line)
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject:      "Your grades",
		TemplateName: "student_report",
		TemplateData: map[string]interface{}{
			"Name":   st.Name,
			"Grades": gradeLines,
			"Report": reportLines,
		},
	}
	if err = msg.Attach(&buf, "grades.csv", "text/csv"); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendUniversityReports mails their report to every active student of the university
// and returns the number of reports sent. Students whose report fails are logged and skipped.
func (svc *Service) SendUniversityReports(ctx context.Context, universityID int64) (int, error) {
	var messages []*core.EmailMessage
	err := svc.store.View(ctx, func(repo Repository) error {
		if _, err := repo.GetUniversity(ctx, universityID); err != nil {
			return err
		}
		students, err := repo.QueryStudents(ctx, StudentFilter{UniversityID: universityID})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		for _, st := range students {
			msg, err := svc.studentReport(ctx, repo, st.ID)
			if err != nil {
				svc.logger.Error(fmt.Sprintf("preparing report of student #%d", st.ID), err)
				continue
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	svc.mailSvc.SendMessages(messages...)
	return len(messages), nil
}
