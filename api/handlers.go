/*
handlers.go - HTTP API handlers for the leave ledger and approval engine

PURPOSE:
  Exposes the core services via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to core.

ENDPOINTS:
  Leave types:
    GET    /api/leave-types                       List (?active=true)
    POST   /api/leave-types                       Create
    GET    /api/leave-types/{id}                  Get
    PATCH  /api/leave-types/{id}                  Update
    DELETE /api/leave-types/{id}                  Deactivate

  Directory:
    GET|POST /api/departments
    GET|POST /api/employees
    GET      /api/employees/{id}

  Ledger:
    GET    /api/employees/{id}/balances                       All balances
    POST   /api/employees/{id}/balances                       Provision
    GET    /api/employees/{id}/balances/{typeID}              Balance + history
    GET    /api/employees/{id}/balances/{typeID}/reconcile    Replay check
    POST   /api/employees/{id}/adjustments                    Manual adjustment

  Leave requests and pass slips:
    GET|POST /api/leave-requests                   GET|POST /api/pass-slips
    GET      /api/leave-requests/{id}              GET      /api/pass-slips/{id}
    PATCH    /api/leave-requests/{id}
    POST     /api/leave-requests/{id}/approve      POST     /api/pass-slips/{id}/approve
    POST     /api/leave-requests/{id}/deny         POST     /api/pass-slips/{id}/deny
    POST     /api/leave-requests/{id}/cancel       POST     /api/pass-slips/{id}/cancel
    GET      /api/leave-requests/{id}/approvals    GET      /api/pass-slips/{id}/approvals
    GET      /api/leave-requests/{id}/audit

  Workflow and admin:
    GET    /api/approvals/pending                 ?kind=&role=
    GET    /api/conflicts                         ?department_id=&from=&to=
    GET    /api/workflows                         ?department_id=&kind=&pass_slip_type=
    PUT    /api/workflows
    POST   /api/admin/accrual                     Run one month
    GET    /api/admin/accrual/runs
    GET|POST /api/holidays, POST /api/holidays/defaults, DELETE /api/holidays/{id}

ACTOR:
  Every mutation requires the X-Actor-ID header. For leave requests and
  pass slips the actor is also the filing employee.

ERROR HANDLING:
  Domain errors map onto HTTP status in errors.go:
  - 400: Validation errors, invalid input
  - 403: Approver not authorized
  - 404: Resource not found
  - 409: State conflict, cancellation window, duplicate
  - 422: Insufficient balance
  - 503: Lock wait timed out, retry

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/leave"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the core components the handlers delegate to.
type Services struct {
	Manager   *core.RequestManager
	Ledger    *core.BalanceLedger
	Registry  *core.LeaveTypeRegistry
	Workflow  *core.WorkflowEngine
	Accrual   *core.AccrualEngine
	Conflicts *core.ConflictDetector
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	Store    *sqlite.Store
	Location *time.Location
	Now      core.Clock

	logger *zap.Logger
}

func NewHandler(store *sqlite.Store, svc Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Services: svc,
		Store:    store,
		Location: time.UTC,
		Now:      time.Now,
		logger:   logger.Named("leave.api"),
	}
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	types, err := h.Registry.List(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, r, "Failed to list leave types", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(types))
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var in core.LeaveTypeInput
	if !decode(w, r, &in) {
		return
	}
	lt, err := h.Registry.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to create leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, lt)
}

func (h *Handler) GetLeaveType(w http.ResponseWriter, r *http.Request) {
	lt, err := h.Registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, lt)
}

func (h *Handler) UpdateLeaveType(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var upd core.LeaveTypeUpdate
	if !decode(w, r, &upd) {
		return
	}
	lt, err := h.Registry.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.fail(w, r, "Failed to update leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, lt)
}

func (h *Handler) DeactivateLeaveType(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	lt, err := h.Registry.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to deactivate leave type", err)
		return
	}
	writeJSON(w, http.StatusOK, lt)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Store.ListDepartments(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list departments", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(depts))
}

func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var req CreateDepartmentRequest
	if !decode(w, r, &req) {
		return
	}
	dept := core.Department{ID: req.ID, Name: req.Name, ParentID: req.ParentID}
	if err := h.Store.SaveDepartment(r.Context(), dept); err != nil {
		h.fail(w, r, "Failed to save department", err)
		return
	}
	writeJSON(w, http.StatusCreated, dept)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly, _ := strconv.ParseBool(q.Get("active"))
	employees, err := h.Store.ListEmployees(r.Context(), core.EmployeeFilter{
		DepartmentID: q.Get("department_id"),
		Status:       core.EmploymentStatus(q.Get("employment_status")),
		ActiveOnly:   activeOnly,
	})
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(employees))
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var req CreateEmployeeRequest
	if !decode(w, r, &req) {
		return
	}
	dept, err := h.Store.GetDepartment(r.Context(), req.DepartmentID)
	if err != nil {
		h.fail(w, r, "Failed to get department", err)
		return
	}
	if dept == nil {
		writeError(w, http.StatusBadRequest, "Unknown department", &core.ValidationError{Field: "department_id", Message: "does not exist"})
		return
	}
	emp := core.Employee{
		ID:               req.ID,
		Name:             req.Name,
		DepartmentID:     req.DepartmentID,
		EmploymentStatus: core.EmploymentStatus(req.EmploymentStatus),
		Role:             core.ApproverRole(req.Role),
		Active:           req.Active == nil || *req.Active,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.fail(w, r, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// =============================================================================
// LEDGER
// =============================================================================

func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Ledger.Balances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to list balances", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(balances))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID, typeID := chi.URLParam(r, "id"), chi.URLParam(r, "typeID")
	balance, err := h.Ledger.GetBalance(r.Context(), employeeID, typeID)
	if err != nil {
		h.fail(w, r, "Failed to get balance", err)
		return
	}
	history, err := h.Ledger.History(r.Context(), employeeID, typeID)
	if err != nil {
		h.fail(w, r, "Failed to load ledger history", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		EmployeeID:  employeeID,
		LeaveTypeID: typeID,
		Balance:     balance,
		History:     nonNil(history),
	})
}

func (h *Handler) ReconcileBalance(w http.ResponseWriter, r *http.Request) {
	employeeID, typeID := chi.URLParam(r, "id"), chi.URLParam(r, "typeID")
	resp := ReconcileResponse{EmployeeID: employeeID, LeaveTypeID: typeID, Consistent: true}
	if err := h.Ledger.Reconcile(r.Context(), employeeID, typeID); err != nil {
		if !errors.Is(err, core.ErrReconciliation) {
			h.fail(w, r, "Failed to reconcile balance", err)
			return
		}
		h.logger.Error("ledger out of balance", zap.String("employee_id", employeeID), zap.String("leave_type_id", typeID), zap.Error(err))
		resp.Consistent = false
		resp.Problem = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ProvisionBalance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req ProvisionRequest
	if !decode(w, r, &req) {
		return
	}
	bal, err := h.Ledger.Provision(r.Context(), chi.URLParam(r, "id"), req.LeaveTypeID, req.OpeningBalance, actorID)
	if err != nil {
		h.fail(w, r, "Failed to provision balance", err)
		return
	}
	writeJSON(w, http.StatusCreated, bal)
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req AdjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.Ledger.Adjust(r.Context(), chi.URLParam(r, "id"), req.LeaveTypeID, req.Amount, req.Reason, actorID)
	if err != nil {
		h.fail(w, r, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statuses, err := parseStatuses(q.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status filter", err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	reqs, err := h.Manager.ListLeaveRequests(r.Context(), core.LeaveRequestFilter{
		EmployeeID:   q.Get("employee_id"),
		DepartmentID: q.Get("department_id"),
		Statuses:     statuses,
		From:         from,
		To:           to,
	})
	if err != nil {
		h.fail(w, r, "Failed to list leave requests", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var in core.LeaveRequestInput
	if !decode(w, r, &in) {
		return
	}
	req, report, err := h.Manager.CreateLeaveRequest(r.Context(), actorID, in)
	if err != nil {
		h.fail(w, r, "Failed to file leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, LeaveRequestResponse{LeaveRequest: req, Conflict: report})
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Manager.GetLeaveRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ModifyLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var ch core.LeaveRequestChanges
	if !decode(w, r, &ch) {
		return
	}
	req, err := h.Manager.Modify(r.Context(), chi.URLParam(r, "id"), actorID, ch)
	if err != nil {
		h.fail(w, r, "Failed to modify leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body DecisionRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	req, err := h.Manager.Approve(r.Context(), chi.URLParam(r, "id"), actorID, body.Comments)
	if err != nil {
		h.fail(w, r, "Failed to approve leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) DenyLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body DecisionRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := h.Manager.Deny(r.Context(), chi.URLParam(r, "id"), actorID, body.Reason)
	if err != nil {
		h.fail(w, r, "Failed to deny leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body CancelRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	req, err := h.Manager.Cancel(r.Context(), chi.URLParam(r, "id"), actorID, body.Reason)
	if err != nil {
		h.fail(w, r, "Failed to cancel leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ListLeaveRequestApprovals(w http.ResponseWriter, r *http.Request) {
	h.listApprovals(w, r, core.KindLeaveRequest)
}

func (h *Handler) LeaveRequestAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Manager.GetLeaveRequest(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to get leave request", err)
		return
	}
	events, err := h.Store.AuditTrail(r.Context(), string(core.KindLeaveRequest), id)
	if err != nil {
		h.fail(w, r, "Failed to load audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

// =============================================================================
// PASS SLIPS
// =============================================================================

func (h *Handler) ListPassSlips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statuses, err := parseStatuses(q.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status filter", err)
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	slips, err := h.Manager.ListPassSlips(r.Context(), core.PassSlipFilter{
		EmployeeID:   q.Get("employee_id"),
		DepartmentID: q.Get("department_id"),
		Statuses:     statuses,
		Date:         date,
	})
	if err != nil {
		h.fail(w, r, "Failed to list pass slips", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slips))
}

func (h *Handler) CreatePassSlip(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var in core.PassSlipInput
	if !decode(w, r, &in) {
		return
	}
	slip, err := h.Manager.CreatePassSlip(r.Context(), actorID, in)
	if err != nil {
		h.fail(w, r, "Failed to file pass slip", err)
		return
	}
	writeJSON(w, http.StatusCreated, slip)
}

func (h *Handler) GetPassSlip(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Manager.GetPassSlip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get pass slip", err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (h *Handler) ApprovePassSlip(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body DecisionRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	slip, err := h.Manager.ApprovePassSlip(r.Context(), chi.URLParam(r, "id"), actorID, body.Comments)
	if err != nil {
		h.fail(w, r, "Failed to approve pass slip", err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (h *Handler) DenyPassSlip(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body DecisionRequest
	if !decode(w, r, &body) {
		return
	}
	slip, err := h.Manager.DenyPassSlip(r.Context(), chi.URLParam(r, "id"), actorID, body.Reason)
	if err != nil {
		h.fail(w, r, "Failed to deny pass slip", err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (h *Handler) CancelPassSlip(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body CancelRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	slip, err := h.Manager.CancelPassSlip(r.Context(), chi.URLParam(r, "id"), actorID, body.Reason)
	if err != nil {
		h.fail(w, r, "Failed to cancel pass slip", err)
		return
	}
	writeJSON(w, http.StatusOK, slip)
}

func (h *Handler) ListPassSlipApprovals(w http.ResponseWriter, r *http.Request) {
	h.listApprovals(w, r, core.KindPassSlip)
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request, kind core.EntityKind) {
	approvals, err := h.Manager.ListApprovals(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to list approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(approvals))
}

// =============================================================================
// WORKFLOW
// =============================================================================

// ListPendingApprovals returns the open approvals, optionally narrowed to the
// levels a role may decide.
func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := core.EntityKind(q.Get("kind"))
	if kind == "" {
		kind = core.KindLeaveRequest
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown entity kind", &core.ValidationError{Field: "kind", Message: "must be leave_request or pass_slip"})
		return
	}
	role := core.ApproverRole(q.Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown approver role", &core.ValidationError{Field: "role", Message: "unknown role"})
		return
	}
	pending, err := h.Manager.PendingApprovals(r.Context(), kind, role)
	if err != nil {
		h.fail(w, r, "Failed to list pending approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(pending))
}

func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := core.ParseDate("from", q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	to, err := core.ParseDate("to", q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	report, err := h.Conflicts.CheckOverlap(r.Context(), q.Get("department_id"), from, to)
	if err != nil {
		h.fail(w, r, "Failed to check conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetWorkflow returns the chain that applies to new entities, falling back to
// the default when the department has none configured.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := WorkflowResponse{
		DepartmentID: q.Get("department_id"),
		Kind:         core.EntityKind(q.Get("kind")),
		PassSlipType: core.PassSlipType(q.Get("pass_slip_type")),
	}
	if resp.Kind == "" {
		resp.Kind = core.KindLeaveRequest
	}
	if !resp.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown entity kind", &core.ValidationError{Field: "kind", Message: "must be leave_request or pass_slip"})
		return
	}
	levels, err := h.Workflow.ResolveConfig(r.Context(), resp.DepartmentID, resp.Kind, resp.PassSlipType)
	if err != nil {
		h.fail(w, r, "Failed to resolve workflow", err)
		return
	}
	resp.Levels = levels
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SaveWorkflow(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var cfg core.WorkflowConfig
	if !decode(w, r, &cfg) {
		return
	}
	saved, err := h.Workflow.SaveWorkflow(r.Context(), cfg, actorID)
	if err != nil {
		h.fail(w, r, "Failed to save workflow", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// =============================================================================
// ADMIN
// =============================================================================

// RunAccrual credits one month by hand. Pairs already credited for the
// period are skipped, so repeating a month is safe.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var req RunAccrualRequest
	if !decode(w, r, &req) {
		return
	}
	period := core.AccrualPeriod{Year: req.Year, Month: time.Month(req.Month)}
	result, run, err := runAccrual(r.Context(), h.Store, h.Accrual, period, h.Now, h.logger)
	if err != nil {
		h.fail(w, r, "Failed to run accrual", err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualRunResponse{Result: result, Run: run})
}

func (h *Handler) ListAccrualRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListAccrualRuns(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list accrual runs", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(holidays))
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var req CreateHolidayRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := core.ParseDate("date", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	holiday := core.Holiday{ID: req.ID, Date: date, Name: req.Name, Recurring: req.Recurring}
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		h.fail(w, r, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDefaultHolidays installs the national holiday set for a year, the
// current one when none is given.
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	var req DefaultHolidaysRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	year := req.Year
	if year == 0 {
		year = core.TodayIn(h.Now, h.Location).Year()
	}
	holidays := leave.PhilippineHolidays(year)
	for _, hol := range holidays {
		if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
			h.fail(w, r, "Failed to save holiday", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, DefaultHolidaysResponse{Year: year, Holidays: holidays})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decode(w, r, v)
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := core.ParseDate(name, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseStatuses reads a comma-separated status filter.
func parseStatuses(raw string) ([]core.RequestStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []core.RequestStatus
	for _, part := range strings.Split(raw, ",") {
		st := core.RequestStatus(strings.TrimSpace(part))
		if !st.Valid() {
			return nil, &core.ValidationError{Field: "status", Message: "unknown status " + string(st)}
		}
		out = append(out, st)
	}
	return out, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
