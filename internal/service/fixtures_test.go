package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-billing-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var (
	adminActor   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	studentActor = models.Actor{UserID: "student-1", Role: models.RoleStudent}
	otherStudent = models.Actor{UserID: "student-2", Role: models.RoleStudent}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memEnrollmentStore struct {
	mu       sync.Mutex
	items    map[string]*models.EnrollmentRequest
	courses  map[string]*models.Course
	seq      int
	findErr  error
	flagErr  error
	flagCall int
}

func newMemEnrollmentStore(courses map[string]*models.Course) *memEnrollmentStore {
	return &memEnrollmentStore{items: map[string]*models.EnrollmentRequest{}, courses: courses}
}

func (s *memEnrollmentStore) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.StudentID == req.StudentID && existing.CourseID == req.CourseID && existing.Status.Active() {
			return &pq.Error{Code: "23505"}
		}
	}
	s.seq++
	if req.ID == "" {
		req.ID = fmt.Sprintf("enr-%d", s.seq)
	}
	if req.RequestDate.IsZero() {
		req.RequestDate = fixedNow
	}
	cp := *req
	s.items[req.ID] = &cp
	return nil
}

func (s *memEnrollmentStore) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (s *memEnrollmentStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error) {
	req, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.EnrollmentRequestDetail{EnrollmentRequest: *req}
	if course, ok := s.courses[req.CourseID]; ok {
		detail.CourseName = course.Name
	}
	return detail, nil
}

func (s *memEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentRequestDetail, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EnrollmentRequestDetail
	for _, item := range s.items {
		if filter.StudentID != "" && item.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentRequestDetail{EnrollmentRequest: *item})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memEnrollmentStore) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.StudentID == studentID && item.CourseID == courseID && item.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memEnrollmentStore) Approve(ctx context.Context, params models.ApproveEnrollmentParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[params.ID]
	if !ok || item.Status != models.EnrollmentStatusPending || !item.RegistrationFeePaid {
		return sql.ErrNoRows
	}
	item.Status = models.EnrollmentStatusApproved
	at := params.ApprovalDate
	item.ApprovalDate = &at
	classID, notes, by := params.ClassID, params.AdminNotes, params.AssignedBy
	item.AssignedClassID = &classID
	item.AdminNotes = &notes
	item.AssignedBy = &by
	return nil
}

func (s *memEnrollmentStore) Reject(ctx context.Context, params models.RejectEnrollmentParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[params.ID]
	if !ok || item.Status != models.EnrollmentStatusPending || (params.RequireFeeUnpaid && item.RegistrationFeePaid) {
		return sql.ErrNoRows
	}
	item.Status = models.EnrollmentStatusRejected
	notes, by := params.AdminNotes, params.AssignedBy
	item.AdminNotes = &notes
	item.AssignedBy = &by
	return nil
}

func (s *memEnrollmentStore) MarkRegistrationFeePaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagCall++
	if s.flagErr != nil {
		return false, s.flagErr
	}
	item, ok := s.items[id]
	if !ok || item.RegistrationFeePaid {
		return false, nil
	}
	item.RegistrationFeePaid = true
	item.PaymentDate = &paidAt
	return true, nil
}

func (s *memEnrollmentStore) ClearRegistrationFeePaid(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.Status != models.EnrollmentStatusPending || !item.RegistrationFeePaid {
		return false, nil
	}
	item.RegistrationFeePaid = false
	item.PaymentDate = nil
	return true, nil
}

func (s *memEnrollmentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.Status == models.EnrollmentStatusApproved {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *memEnrollmentStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.EnrollmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EnrollmentRequest
	for _, item := range s.items {
		if item.Status == models.EnrollmentStatusPending && !item.RegistrationFeePaid && item.RequestDate.Before(cutoff) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memEnrollmentStore) get(id string) *models.EnrollmentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// memPaymentStore mirrors the version check of PaymentRepository.Update.
type memPaymentStore struct {
	mu        sync.Mutex
	items     map[string]*models.Payment
	seq       int
	updateErr error
	updates   int
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{items: map[string]*models.Payment{}}
}

func (s *memPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.StudentID == payment.StudentID && existing.CourseID == payment.CourseID {
			return &pq.Error{Code: "23505"}
		}
	}
	s.seq++
	payment.ID = fmt.Sprintf("pay-%d", s.seq)
	payment.Version = 1
	s.items[payment.ID] = payment.Clone()
	return nil
}

func (s *memPaymentStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item.Clone(), nil
}

func (s *memPaymentStore) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.EnrollmentID != nil && *item.EnrollmentID == enrollmentID {
			return item.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memPaymentStore) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, item := range s.items {
		if filter.StudentID != "" && item.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *memPaymentStore) ListWithUnpaidInstallments(ctx context.Context) ([]models.Payment, error) {
	all, _, err := s.List(ctx, models.PaymentFilter{})
	if err != nil {
		return nil, err
	}
	var out []models.Payment
	for _, p := range all {
		if p.Outstanding().IsPositive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPaymentStore) ListForStatistics(ctx context.Context) ([]models.PaymentStatRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]models.PaymentStatRow, 0, len(s.items))
	for _, item := range s.items {
		rows = append(rows, models.PaymentStatRow{TotalDue: item.TotalDue, TotalPaid: item.TotalPaid, PaymentStatus: item.PaymentStatus})
	}
	return rows, nil
}

func (s *memPaymentStore) Update(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	current, ok := s.items[payment.ID]
	if !ok || current.Version != payment.Version {
		return sql.ErrNoRows
	}
	payment.Version++
	s.items[payment.ID] = payment.Clone()
	s.updates++
	return nil
}

func (s *memPaymentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || !item.TotalPaid.IsZero() {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *memPaymentStore) get(id string) *models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Clone()
}

type courseStub map[string]*models.Course

func (c courseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := c[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *course
	return &cp, nil
}

type templateStub struct {
	items map[string]*models.InstallmentTemplate
	err   error
}

func (s *templateStub) FindByCourse(ctx context.Context, courseID string) (*models.InstallmentTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	tpl, ok := s.items[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tpl, nil
}

func (s *templateStub) Upsert(ctx context.Context, tpl *models.InstallmentTemplate) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = map[string]*models.InstallmentTemplate{}
	}
	tpl.ID = "tpl-" + tpl.CourseID
	s.items[tpl.CourseID] = tpl
	return nil
}

func (s *templateStub) DeleteByCourse(ctx context.Context, courseID string) error {
	if _, ok := s.items[courseID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, courseID)
	return nil
}

type settingsStub struct {
	settings models.CenterSettings
	err      error
}

func (s settingsStub) GetCenterSettings(ctx context.Context) (*models.CenterSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := s.settings
	return &cp, nil
}

type classStub struct {
	classes     map[string]*models.Class
	unavailable map[string]bool
	roster      map[string]map[string]bool
	addErr      error
	addCalls    int
}

func newClassStub(classes ...*models.Class) *classStub {
	stub := &classStub{classes: map[string]*models.Class{}, unavailable: map[string]bool{}, roster: map[string]map[string]bool{}}
	for _, c := range classes {
		stub.classes[c.ID] = c
	}
	return stub
}

func (s *classStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	class, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

func (s *classStub) IsClassAvailable(ctx context.Context, classID, courseID, level string) (bool, error) {
	class, ok := s.classes[classID]
	if !ok || s.unavailable[classID] {
		return false, nil
	}
	return class.CourseID == courseID && class.Level == level && class.Active, nil
}

func (s *classStub) AddStudent(ctx context.Context, classID, studentID string) error {
	s.addCalls++
	if s.addErr != nil {
		return s.addErr
	}
	if s.roster[classID] == nil {
		s.roster[classID] = map[string]bool{}
	}
	s.roster[classID][studentID] = true
	return nil
}

type enrolledCourseStub struct {
	entries map[string]models.EnrolledCourse
}

func (s *enrolledCourseStub) AppendEnrolledCourse(ctx context.Context, entry *models.EnrolledCourse) error {
	if s.entries == nil {
		s.entries = map[string]models.EnrolledCourse{}
	}
	s.entries[entry.StudentID+"/"+entry.CourseID] = *entry
	return nil
}

type auditStub struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *log)
	return s.err
}

func (s *auditStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type notifierStub struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (s *notifierStub) Notify(ctx context.Context, n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *notifierStub) kinds() []models.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(s.sent))
	for _, n := range s.sent {
		out = append(out, n.Kind)
	}
	return out
}

type invalidatorStub struct {
	mu    sync.Mutex
	calls int
}

func (s *invalidatorStub) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

// billingHarness wires the real services over in-memory stores.
type billingHarness struct {
	courses     courseStub
	templates   *templateStub
	settings    settingsStub
	enrollments *memEnrollmentStore
	payments    *memPaymentStore
	classes     *classStub
	enrolled    *enrolledCourseStub
	audit       *auditStub
	notifier    *notifierStub
	stats       *invalidatorStub

	coordinator   *Coordinator
	paymentSvc    *PaymentService
	enrollmentSvc *EnrollmentService
}

func newBillingHarness(t *testing.T) *billingHarness {
	t.Helper()
	h := &billingHarness{
		courses: courseStub{
			"course-1": {ID: "course-1", Name: "English B1", Price: dec("100000"), Level: "B1", Active: true},
			"course-2": {ID: "course-2", Name: "French A1", Price: dec("1000"), Level: "A1", Active: true},
			"closed":   {ID: "closed", Name: "Archived", Price: dec("1"), Level: "A1", Active: false},
		},
		templates: &templateStub{},
		settings:  settingsStub{settings: models.CenterSettings{RegistrationFee: dec("20000"), EnrollmentValidityHours: 72}},
		payments:  newMemPaymentStore(),
		classes: newClassStub(
			&models.Class{ID: "class-1", CourseID: "course-1", Name: "B1 Morning", Level: "B1", Capacity: 20, Active: true},
			&models.Class{ID: "class-a1", CourseID: "course-2", Name: "A1 Evening", Level: "A1", Capacity: 20, Active: true},
		),
		enrolled: &enrolledCourseStub{},
		audit:    &auditStub{},
		notifier: &notifierStub{},
		stats:    &invalidatorStub{},
	}
	h.enrollments = newMemEnrollmentStore(h.courses)
	h.coordinator = NewCoordinator(h.enrollments, h.audit, nil)
	h.coordinator.now = func() time.Time { return fixedNow }
	h.paymentSvc = NewPaymentService(PaymentServiceDeps{
		Payments:       h.payments,
		Courses:        h.courses,
		Templates:      h.templates,
		Settings:       h.settings,
		Guard:          h.coordinator,
		FeeListener:    h.coordinator,
		RefundListener: h.coordinator,
		Audit:          h.audit,
		Statistics:     h.stats,
		Notifier:       h.notifier,
	})
	h.paymentSvc.now = func() time.Time { return fixedNow }
	h.enrollmentSvc = NewEnrollmentService(EnrollmentServiceDeps{
		Enrollments:    h.enrollments,
		Courses:        h.courses,
		Classes:        h.classes,
		StudentCourses: h.enrolled,
		Payments:       h.paymentSvc,
		FeeReconciler:  h.coordinator,
		Settings:       h.settings,
		Audit:          h.audit,
		Notifier:       h.notifier,
	})
	h.enrollmentSvc.now = func() time.Time { return fixedNow }
	return h
}

var errBoom = errors.New("boom")
