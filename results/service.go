package results

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Directory provides the student's class, the class subjects and recorded marks.
type Directory interface {
	// StudentClass returns a not-found error when the student doesn't exist.
	StudentClass(ctx context.Context, studentID string) (string, error)
	Subjects(ctx context.Context, className string) ([]string, error)
	StudentMarks(ctx context.Context, studentID string) (StudentMarks, error)
}

// Service reports cumulative results.
type Service struct {
	directory Directory
	log       *zap.Logger
}

func NewService(directory Directory, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{directory: directory, log: log.Named("results")}
}

// Result evaluates a student's cumulative result up to exam.
func (s *Service) Result(ctx context.Context, studentID, exam string) (Result, error) {
	cycle, err := ParseExamCycle(exam)
	if err != nil {
		return Result{}, err
	}
	className, err := s.directory.StudentClass(ctx, studentID)
	if err != nil {
		return Result{}, err
	}
	subjects, err := s.directory.Subjects(ctx, className)
	if err != nil {
		return Result{}, fmt.Errorf("load subjects for %s: %w", className, err)
	}
	marks, err := s.directory.StudentMarks(ctx, studentID)
	if err != nil {
		return Result{}, fmt.Errorf("load marks: %w", err)
	}

	r := Evaluate(marks, cycle, len(subjects))
	if r.Percentage == nil {
		s.log.Debug("no marks recorded yet",
			zap.String("student_id", studentID),
			zap.String("exam", exam),
		)
	}
	return r, nil
}
