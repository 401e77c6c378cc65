package fees

import (
	"sort"
	"strings"
)

// FamilyOf returns the students sharing parentPhone. An empty phone has no family.
func FamilyOf(parentPhone string, students []Student) []Student {
	phone := normalizePhone(parentPhone)
	if phone == "" {
		return nil
	}
	var family []Student
	for _, s := range students {
		if normalizePhone(s.ParentPhone) == phone {
			family = append(family, s)
		}
	}
	return family
}

// IsSibling reports whether student gets the sibling discount: some other
// student with the same parent phone was born strictly earlier. The firstborn
// never qualifies. Unknown birth dates never compare as earlier.
func IsSibling(student Student, students []Student) bool {
	if student.DateOfBirth.IsZero() {
		return false
	}
	for _, other := range FamilyOf(student.ParentPhone, students) {
		if other.ID == student.ID || other.DateOfBirth.IsZero() {
			continue
		}
		if other.DateOfBirth.Before(student.DateOfBirth) {
			return true
		}
	}
	return false
}

// ByBirth orders a family eldest first; unknown birth dates sort last.
func ByBirth(family []Student) []Student {
	sorted := append([]Student{}, family...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].DateOfBirth, sorted[j].DateOfBirth
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
	return sorted
}

func normalizePhone(p string) string {
	return strings.Join(strings.Fields(p), "")
}
