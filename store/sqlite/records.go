package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
	"github.com/warp/school-engine/results"
)

// Compile-time checks
var (
	_ generic.TxStore   = (*Store)(nil)
	_ fees.Directory    = (*Store)(nil)
	_ payroll.Directory = (*Store)(nil)
	_ results.Directory = (*Store)(nil)
)

// =============================================================================
// STUDENT STORE (fees.Directory)
// =============================================================================

// SaveStudent inserts or updates a student.
func (s *Store) SaveStudent(ctx context.Context, st fees.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var override sql.NullString
	if !st.FeeOverride.IsEmpty() {
		b, err := json.Marshal(st.FeeOverride)
		if err != nil {
			return fmt.Errorf("failed to encode fee override: %w", err)
		}
		override = sql.NullString{String: string(b), Valid: true}
	}
	var dob sql.NullString
	if !st.DateOfBirth.IsZero() {
		dob = sql.NullString{String: st.DateOfBirth.DateKey(), Valid: true}
	}

	query := `
		INSERT INTO students (id, name, class_name, parent_phone, date_of_birth, fee_override_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class_name = excluded.class_name,
			parent_phone = excluded.parent_phone,
			date_of_birth = excluded.date_of_birth,
			fee_override_json = excluded.fee_override_json
	`

	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Name, st.ClassName, st.ParentPhone, dob, override, now(),
	)
	return err
}

// GetStudent retrieves a student by ID. Returns nil, nil when not found.
func (s *Store) GetStudent(ctx context.Context, id string) (*fees.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, class_name, parent_phone, date_of_birth, fee_override_json FROM students WHERE id = ?",
		id,
	)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStudents returns all students ordered by class and name.
func (s *Store) ListStudents(ctx context.Context) ([]fees.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, class_name, parent_phone, date_of_birth, fee_override_json FROM students ORDER BY class_name, name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []fees.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// StudentsByPhone returns the students registered under a parent phone.
func (s *Store) StudentsByPhone(ctx context.Context, phone string) ([]fees.Student, error) {
	all, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	return fees.FamilyOf(phone, all), nil
}

// StudentClass returns the student's class name (results.Directory).
func (s *Store) StudentClass(ctx context.Context, studentID string) (string, error) {
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", &generic.NotFoundError{Kind: "student", ID: studentID}
	}
	return st.ClassName, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (fees.Student, error) {
	var (
		st       fees.Student
		phone    sql.NullString
		dob      sql.NullString
		override sql.NullString
	)
	if err := row.Scan(&st.ID, &st.Name, &st.ClassName, &phone, &dob, &override); err != nil {
		return st, err
	}
	st.ParentPhone = phone.String
	if dob.Valid {
		st.DateOfBirth = parseDate(dob.String)
	}
	if override.Valid && override.String != "" {
		if err := json.Unmarshal([]byte(override.String), &st.FeeOverride); err != nil {
			return st, fmt.Errorf("failed to decode fee override for %s: %w", st.ID, err)
		}
	}
	return st, nil
}

// =============================================================================
// CLASS DEFAULTS
// =============================================================================

// SaveClassFees replaces the default fee structure of a class.
func (s *Store) SaveClassFees(ctx context.Context, className string, fs fees.FeeStructure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("failed to encode fee structure: %w", err)
	}

	query := `
		INSERT INTO class_fees (class_name, structure_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(class_name) DO UPDATE SET
			structure_json = excluded.structure_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, className, string(b), now())
	return err
}

// ClassFees returns every class default keyed by class name (fees.Directory).
func (s *Store) ClassFees(ctx context.Context) (map[string]fees.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT class_name, structure_json FROM class_fees")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]fees.FeeStructure)
	for rows.Next() {
		var className, structureJSON string
		if err := rows.Scan(&className, &structureJSON); err != nil {
			return nil, err
		}
		var fs fees.FeeStructure
		if err := json.Unmarshal([]byte(structureJSON), &fs); err != nil {
			return nil, fmt.Errorf("failed to decode fees for class %s: %w", className, err)
		}
		out[className] = fs
	}
	return out, rows.Err()
}

// SaveSubjects replaces the subjects taught in a class.
func (s *Store) SaveSubjects(ctx context.Context, className string, subjects []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(subjects)
	if err != nil {
		return fmt.Errorf("failed to encode subjects: %w", err)
	}

	query := `
		INSERT INTO class_subjects (class_name, subjects_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(class_name) DO UPDATE SET
			subjects_json = excluded.subjects_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, className, string(b), now())
	return err
}

// Subjects returns the subjects of a class; empty when none are defined.
func (s *Store) Subjects(ctx context.Context, className string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subjectsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT subjects_json FROM class_subjects WHERE class_name = ?", className,
	).Scan(&subjectsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var subjects []string
	if err := json.Unmarshal([]byte(subjectsJSON), &subjects); err != nil {
		return nil, fmt.Errorf("failed to decode subjects for class %s: %w", className, err)
	}
	return subjects, nil
}

// =============================================================================
// TEACHER STORE (payroll.Directory)
// =============================================================================

// SaveTeacher inserts or updates a teacher.
func (s *Store) SaveTeacher(ctx context.Context, t payroll.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO teachers (id, name, subject, phone, base_salary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			subject = excluded.subject,
			phone = excluded.phone,
			base_salary = excluded.base_salary
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Subject, t.Phone, t.BaseSalary.String(), now(),
	)
	return err
}

// GetTeacher retrieves a teacher by ID. Returns nil, nil when not found.
func (s *Store) GetTeacher(ctx context.Context, id string) (*payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, subject, phone, base_salary FROM teachers WHERE id = ?", id,
	)
	t, err := scanTeacher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeachers returns all teachers ordered by name.
func (s *Store) ListTeachers(ctx context.Context) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, subject, phone, base_salary FROM teachers ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []payroll.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

func scanTeacher(row rowScanner) (payroll.Teacher, error) {
	var (
		t       payroll.Teacher
		subject sql.NullString
		phone   sql.NullString
		salary  string
	)
	if err := row.Scan(&t.ID, &t.Name, &subject, &phone, &salary); err != nil {
		return t, err
	}
	t.Subject = subject.String
	t.Phone = phone.String
	base, err := decimal.NewFromString(salary)
	if err != nil {
		return t, fmt.Errorf("invalid base salary for %s: %w", t.ID, err)
	}
	t.BaseSalary = base
	return t, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendance records a teacher's status for a day, replacing any earlier mark.
func (s *Store) MarkAttendance(ctx context.Context, date generic.TimePoint, teacherID string, status payroll.AttendanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance (date, teacher_id, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, teacher_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, date.DateKey(), teacherID, string(status), now())
	return err
}

// AttendanceForMonth returns the register for every day of month (payroll.Directory).
func (s *Store) AttendanceForMonth(ctx context.Context, month generic.MonthKey) (payroll.AttendanceRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := month.Period()
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, teacher_id, status FROM attendance WHERE date >= ? AND date <= ? ORDER BY date",
		p.Start.DateKey(), p.End.DateKey(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	register := payroll.AttendanceRegister{}
	for rows.Next() {
		var date, teacherID, status string
		if err := rows.Scan(&date, &teacherID, &status); err != nil {
			return nil, err
		}
		register.Mark(parseDate(date), generic.EntityID(teacherID), payroll.AttendanceStatus(status))
	}
	return register, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday saves a holiday. The same name on the same date is stored once.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, name) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, h.ID, h.Date.DateKey(), h.Name, now())
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// Holidays returns every holiday ordered by date (payroll.Directory).
func (s *Store) Holidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, date, name FROM holidays ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// MARKS (results.Directory)
// =============================================================================

// SaveMarks replaces a student's marks for one exam cycle.
func (s *Store) SaveMarks(ctx context.Context, studentID string, cycle results.ExamCycle, marks results.RecordedMarks) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		"DELETE FROM marks WHERE student_id = ? AND exam_cycle = ?", studentID, string(cycle),
	); err != nil {
		return err
	}
	for subject, mark := range marks {
		var v sql.NullFloat64
		if mark != nil {
			v = sql.NullFloat64{Float64: *mark, Valid: true}
		}
		if _, err := sqlTx.ExecContext(ctx,
			"INSERT INTO marks (student_id, exam_cycle, subject, mark) VALUES (?, ?, ?, ?)",
			studentID, string(cycle), subject, v,
		); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// StudentMarks returns all recorded marks for a student by cycle.
func (s *Store) StudentMarks(ctx context.Context, studentID string) (results.StudentMarks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT exam_cycle, subject, mark FROM marks WHERE student_id = ?", studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := results.StudentMarks{}
	for rows.Next() {
		var (
			cycle, subject string
			mark           sql.NullFloat64
		)
		if err := rows.Scan(&cycle, &subject, &mark); err != nil {
			return nil, err
		}
		c := results.ExamCycle(cycle)
		if out[c] == nil {
			out[c] = results.RecordedMarks{}
		}
		if mark.Valid {
			v := mark.Float64
			out[c][subject] = &v
		} else {
			out[c][subject] = nil
		}
	}
	return out, rows.Err()
}
