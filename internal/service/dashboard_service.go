package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

const recentComplaintsLimit = 5

type markLister interface {
	List(ctx context.Context, filter models.MarkFilter) ([]models.Mark, error)
}

type balanceReader interface {
	Get(ctx context.Context, learnerID string) (*models.Balance, error)
	List(ctx context.Context) ([]models.Balance, error)
}

type complaintLister interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
}

type materialLister interface {
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error)
}

type announcementFeed interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error)
}

type registrationLister interface {
	ListAll(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
}

// DashboardConfig tunes dashboard aggregation.
type DashboardConfig struct {
	PassMark          float64
	AnnouncementLimit int
}

// DashboardRepositories groups the stores dashboards read from.
type DashboardRepositories struct {
	Marks         markLister
	Balances      balanceReader
	Complaints    complaintLister
	Materials     materialLister
	Announcements announcementFeed
	Registrations registrationLister
}

// DashboardService builds role dashboards. Every call re-reads and re-aggregates.
type DashboardService struct {
	repos  DashboardRepositories
	cfg    DashboardConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repos DashboardRepositories, cfg DashboardConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PassMark <= 0 {
		cfg.PassMark = DefaultPassMark
	}
	if cfg.AnnouncementLimit <= 0 {
		cfg.AnnouncementLimit = 5
	}
	return &DashboardService{repos: repos, cfg: cfg, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Build assembles the dashboard of the approved caller.
func (s *DashboardService) Build(ctx context.Context, state AccessState) (*dto.Dashboard, error) {
	if state.Registration == nil || state.Status != models.RegistrationApproved {
		return nil, appErrors.ErrForbidden
	}
	reg := state.Registration
	board := &dto.Dashboard{Role: state.Role, GeneratedAt: s.now()}

	var err error
	switch state.Role {
	case models.RoleLearner:
		err = s.learner(ctx, reg, board)
	case models.RoleTeacher:
		err = s.teacher(ctx, reg, board)
	case models.RoleGradeHead:
		err = s.gradeHead(ctx, reg, board)
	case models.RoleHOD:
		err = s.hod(ctx, reg, board)
	case models.RolePrincipal, models.RoleDeputyPrincipal:
		err = s.principal(ctx, board)
	case models.RoleLLC:
		err = s.llc(ctx, board)
	case models.RoleAdmin:
		err = s.admin(ctx, board)
	case models.RoleFinance:
		err = s.finance(ctx, board)
	case models.RoleLibrarian:
		err = s.librarian(ctx, board)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no dashboard for role %q", state.Role))
	}
	if err != nil {
		s.logger.Warn("dashboard build failed", zap.String("role", string(state.Role)), zap.Error(err))
		return nil, err
	}
	return board, nil
}

func (s *DashboardService) learner(ctx context.Context, reg *models.Registration, board *dto.Dashboard) error {
	board.Scope.Grade = deref(reg.Grade)
	marks, err := s.marks(ctx, models.MarkFilter{LearnerID: reg.AccountID})
	if err != nil {
		return err
	}
	s.markSummary(marks, board)
	board.SubjectAverages = AverageBy(marks, bySubject)

	balance, err := s.repos.Balances.Get(ctx, reg.AccountID)
	switch {
	case err == nil:
		board.Balance = balance
	case errors.Is(err, sql.ErrNoRows):
	default:
		return appErrors.Remote(err, "failed to load balance")
	}
	return s.announcements(ctx, models.RoleLearner, board)
}

// Staff dashboards are scoped by the grade and subjects on the registration.
// A department is the subjects its head registered under it. A staff member
// whose scope is incomplete gets an empty board, never a school-wide one.
func (s *DashboardService) teacher(ctx context.Context, reg *models.Registration, board *dto.Dashboard) error {
	board.Scope = dto.DashboardScope{Grade: deref(reg.GradeTaught), Subjects: nonBlank(reg.Subjects)}
	if board.Scope.Grade == "" || len(board.Scope.Subjects) == 0 {
		return nil
	}
	marks, err := s.marks(ctx, models.MarkFilter{Grade: board.Scope.Grade, Subjects: board.Scope.Subjects})
	if err != nil {
		return err
	}
	board.ClassAverages = AverageBy(marks, byClass)
	board.SubjectAverages = AverageBy(marks, bySubject)
	board.AtRisk = AtRisk(marks, s.cfg.PassMark)
	return nil
}

func (s *DashboardService) gradeHead(ctx context.Context, reg *models.Registration, board *dto.Dashboard) error {
	board.Scope.Grade = deref(reg.GradeTaught)
	if board.Scope.Grade == "" {
		return nil
	}
	marks, err := s.marks(ctx, models.MarkFilter{Grade: board.Scope.Grade})
	if err != nil {
		return err
	}
	passRate := PassRate(marks, s.cfg.PassMark)
	board.PassRate = &passRate
	board.ClassAverages = AverageBy(marks, byClass)
	board.SubjectAverages = AverageBy(marks, bySubject)
	board.AtRisk = AtRisk(marks, s.cfg.PassMark)
	return nil
}

func (s *DashboardService) hod(ctx context.Context, reg *models.Registration, board *dto.Dashboard) error {
	board.Scope = dto.DashboardScope{Department: deref(reg.Department), Subjects: nonBlank(reg.Subjects)}
	if board.Scope.Department == "" || len(board.Scope.Subjects) == 0 {
		return nil
	}
	marks, err := s.marks(ctx, models.MarkFilter{Subjects: board.Scope.Subjects})
	if err != nil {
		return err
	}
	passRate := PassRate(marks, s.cfg.PassMark)
	board.PassRate = &passRate
	board.SubjectAverages = AverageBy(marks, bySubject)
	return nil
}

func (s *DashboardService) principal(ctx context.Context, board *dto.Dashboard) error {
	marks, err := s.marks(ctx, models.MarkFilter{})
	if err != nil {
		return err
	}
	s.markSummary(marks, board)
	board.GradeAverages = AverageBy(marks, byGrade)

	regs, err := s.repos.Registrations.ListAll(ctx, models.RegistrationFilter{})
	if err != nil {
		return appErrors.Remote(err, "failed to load registrations")
	}
	counts := CountRegistrations(regs)
	counts.ByRole = nil
	board.Registrations = &counts
	return nil
}

func (s *DashboardService) llc(ctx context.Context, board *dto.Dashboard) error {
	complaints, err := s.repos.Complaints.List(ctx, models.ComplaintFilter{})
	if err != nil {
		return appErrors.Remote(err, "failed to load complaints")
	}
	summary := &dto.ComplaintSummary{Recent: complaints[:min(len(complaints), recentComplaintsLimit)]}
	for _, c := range complaints {
		if c.Status == models.ComplaintResponded {
			summary.Responded++
		} else {
			summary.Open++
		}
	}
	board.Complaints = summary
	return s.announcements(ctx, models.RoleLLC, board)
}

func (s *DashboardService) admin(ctx context.Context, board *dto.Dashboard) error {
	regs, err := s.repos.Registrations.ListAll(ctx, models.RegistrationFilter{})
	if err != nil {
		return appErrors.Remote(err, "failed to load registrations")
	}
	counts := CountRegistrations(regs)
	pending := counts.ByStatus[models.RegistrationPending]
	board.Registrations = &counts
	board.Pending = &pending
	return nil
}

func (s *DashboardService) finance(ctx context.Context, board *dto.Dashboard) error {
	balances, err := s.repos.Balances.List(ctx)
	if err != nil {
		return appErrors.Remote(err, "failed to load balances")
	}
	summary := &dto.FinanceSummary{InArrears: []models.Balance{}}
	amounts := make([]float64, len(balances))
	for i, b := range balances {
		amounts[i] = b.Amount
		if b.InArrears() {
			summary.Outstanding += b.Amount
			summary.InArrears = append(summary.InArrears, b)
		}
	}
	summary.AverageBalance = Average(amounts)
	board.Finance = summary
	return nil
}

func (s *DashboardService) librarian(ctx context.Context, board *dto.Dashboard) error {
	materials, err := s.repos.Materials.List(ctx, models.MaterialFilter{})
	if err != nil {
		return appErrors.Remote(err, "failed to load materials")
	}
	summary := &dto.LibrarySummary{Total: len(materials), ByCategory: make(map[string]int)}
	for _, m := range materials {
		summary.ByCategory[m.Category]++
	}
	board.Library = summary
	return nil
}

func (s *DashboardService) marks(ctx context.Context, filter models.MarkFilter) ([]models.Mark, error) {
	marks, err := s.repos.Marks.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Remote(err, "failed to load marks")
	}
	return marks, nil
}

func (s *DashboardService) markSummary(marks []models.Mark, board *dto.Dashboard) {
	average := MarkAverage(marks)
	passRate := PassRate(marks, s.cfg.PassMark)
	board.Average = &average
	board.PassRate = &passRate
}

func (s *DashboardService) announcements(ctx context.Context, role models.Role, board *dto.Dashboard) error {
	items, err := s.repos.Announcements.List(ctx, models.AnnouncementFilter{Role: role, Limit: s.cfg.AnnouncementLimit})
	if err != nil {
		return appErrors.Remote(err, "failed to load announcements")
	}
	board.Announcements = items
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
