package campus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

const (
	// NewCode marks an enrollment code left for numbering.
	NewCode = "New"

	unknownPrefix = "UNK"
	// maxCodeAttempts bounds the allocations tried when a generated code is already taken.
	maxCodeAttempts = 5
)

// SubjectPrefix returns the first three characters of the subject name, upper-cased.
// An unresolved (nil or unnamed) subject gives "UNK".
func SubjectPrefix(sub *Subject) string {
	if sub == nil {
		return unknownPrefix
	}
	name := []rune(core.CleanString(sub.Name))
	if len(name) == 0 {
		return unknownPrefix
	}
	if len(name) > 3 {
		name = name[:3]
	}
	return strings.ToUpper(string(name))
}

// EnrollmentYear is the year of date, or of today when date is zero.
func EnrollmentYear(date, today time.Time) int {
	if date.IsZero() {
		return today.Year()
	}
	return date.Year()
}

// FormatEnrollmentCode composes "PREFIX/YEAR/SEQ", SEQ being padded to 4 digits.
func FormatEnrollmentCode(prefix string, year, seq int) string {
	return fmt.Sprintf("%s/%d/%04d", prefix, year, seq)
}

func needsCode(code string) bool {
	return code == "" || code == NewCode
}

// numberEnrollment sets the code of e if it was not supplied. The sequence comes from the
// Sequencer if any, else from the repository; taken codes are skipped.
func (svc *Service) numberEnrollment(ctx context.Context, repo Repository, e *Enrollment) error {
	if !needsCode(e.Code) {
		return nil
	}

	var sub *Subject
	if e.SubjectID != 0 {
		s, err := repo.GetSubject(ctx, e.SubjectID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding subject")
		}
		if err == nil {
			sub = &s
		}
	}
	prefix := SubjectPrefix(sub)
	year := EnrollmentYear(e.Date, svc.now())

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		seq, err := svc.nextSequence(ctx, repo, e.SubjectID, year)
		if err != nil {
			return errors.Wrap(err, "allocating enrollment sequence")
		}
		code := FormatEnrollmentCode(prefix, year, seq)
		exists, err := repo.EnrollmentCodeExists(ctx, code, e.ID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment code")
		}
		if !exists {
			e.Code = code
			return nil
		}
		svc.logger.Warn(fmt.Sprintf("enrollment code %s already taken, retrying", code))
	}
	return core.NewValidationError(ErrDuplicateCode, core.FieldError{Field: "code", Error: "could not generate a unique code"})
}

func (svc *Service) nextSequence(ctx context.Context, repo Repository, subjectID int64, year int) (int, error) {
	if svc.sequencer == nil {
		return repo.NextEnrollmentSequence(ctx, subjectID, year)
	}
	existing, err := repo.QueryEnrollments(ctx, EnrollmentFilter{SubjectID: subjectID, Year: year})
	if err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return svc.sequencer.Next(ctx, subjectID, year, len(existing))
}
