package core

import "context"

// EmploymentStatus is the employee's appointment status. Only regular
// employees accrue leave.
type EmploymentStatus string

const (
	EmploymentRegular      EmploymentStatus = "regular"
	EmploymentProbationary EmploymentStatus = "probationary"
	EmploymentCasual       EmploymentStatus = "casual"
	EmploymentContractual  EmploymentStatus = "contractual"
	EmploymentJobOrder     EmploymentStatus = "job_order"
)

func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentRegular, EmploymentProbationary, EmploymentCasual, EmploymentContractual, EmploymentJobOrder:
		return true
	}
	return false
}

// Employee is the directory's view of a person. Role is empty for staff who
// approve nothing.
type Employee struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	DepartmentID     string           `json:"department_id"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
	Role             ApproverRole     `json:"role,omitempty"`
	Active           bool             `json:"active"`
}

// Department is a node of the organization tree.
type Department struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

type EmployeeFilter struct {
	DepartmentID string
	Status       EmploymentStatus
	ActiveOnly   bool
}

// EmployeeDirectory answers who works where. Getters return (nil, nil) for
// unknown ids.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context, f EmployeeFilter) ([]Employee, error)
	GetDepartment(ctx context.Context, id string) (*Department, error)
}
