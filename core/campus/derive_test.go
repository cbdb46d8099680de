package campus

import "testing"

func TestGradeDisplayName(t *testing.T) {
	tests := []struct {
		subject string
		value   float64
		want    string
	}{
		{"Mathematics", 8, "Mathematics / 8.0"},
		{"Mathematics", 7.25, "Mathematics / 7.25"},
		{"Mathematics", 0, "Mathematics / 0.0"},
		{"History", 9.5, "History / 9.5"},
		{"", 10, "10.0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := GradeDisplayName(tt.subject, tt.value); got != tt.want {
				t.Errorf("GradeDisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectChanges(t *testing.T) {
	base := Subject{ID: 1, UniversityID: 1, DepartmentID: 2, Name: "Algebra", ProfessorIDs: []int64{3, 4}}

	tests := []struct {
		name string
		cur  func(s Subject) Subject
		want []source
	}{
		{name: "nothing", cur: func(s Subject) Subject { return s }},
		{
			name: "second professor removed",
			cur:  func(s Subject) Subject { s.ProfessorIDs = []int64{3}; return s },
		},
		{
			name: "first professor changed",
			cur:  func(s Subject) Subject { s.ProfessorIDs = []int64{4, 3}; return s },
			want: []source{srcSubjectProfessors},
		},
		{
			name: "renamed & moved",
			cur:  func(s Subject) Subject { s.Name = "Geometry"; s.DepartmentID = 5; return s },
			want: []source{srcSubjectDepartment, srcSubjectName},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subjectChanges(base, tt.cur(base))
			if len(got) != len(tt.want) {
				t.Fatalf("subjectChanges() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("subjectChanges() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
