package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ywcorp/corploango/internal/database"
	"github.com/ywcorp/corploango/internal/models"
)

const loanIDAttempts = 5

// Service owns the workflow state machine and its persistence contract.
// It is constructed once at startup and injected into the router; there is
// no package-level instance.
type Service struct {
	db *database.DB
}

// New creates a workflow Service on top of the shared database handle.
func New(db *database.DB) *Service {
	return &Service{db: db}
}

// Actor identifies who performed an operation, for the audit log.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

// CreateLoan registers a new application at stage 1 / pending and bulk-creates
// its 8 stage rows. Stage initialization runs in its own transaction; if it
// fails the loan is kept and the failure logged (accepted inconsistency).
func (s *Service) CreateLoan(ctx context.Context, in *CreateLoanInput, actor Actor) (*models.LoanApplication, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	createdBy := actor.UserID
	if createdBy == "" {
		createdBy = "web-user"
	}

	// The date+4-digit id format collides under load; retry a few times
	// against the unique index before giving up.
	var loan models.LoanApplication
	var err error
	for attempt := 0; attempt < loanIDAttempts; attempt++ {
		loan = in.toModel(GenerateLoanID(time.Now()), createdBy)
		err = s.db.WithContext(ctx).Create(&loan).Error
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create loan application: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to allocate a unique loan id after %d attempts: %w", loanIDAttempts, err)
	}

	if err := s.initStages(ctx, loan.LoanID); err != nil {
		// Best effort: the loan stays, stage rows can be repaired manually
		log.Printf("⚠️ Failed to initialize workflow stages for %s: %v", loan.LoanID, err)
	}

	s.audit(ctx, loan.LoanID, actor, "create", "신규 대출 신청 생성", nil, loan)

	return &loan, nil
}

// initStages inserts all 8 stage rows atomically.
func (s *Service) initStages(ctx context.Context, loanID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range StageCatalog() {
			stage := models.WorkflowStage{
				LoanID:           loanID,
				StageID:          def.ID,
				StageName:        def.Name,
				StageTitle:       def.Title,
				StageDescription: def.Description,
				EstimatedTime:    def.EstimatedTime,
				Status:           StagePending,
			}
			if err := tx.Create(&stage).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AdvanceResult describes a successful single-step advance.
type AdvanceResult struct {
	LoanID        string `json:"loanId"`
	PreviousStage int    `json:"previousStage"`
	CurrentStage  int    `json:"currentStage"`
	Status        string `json:"status"`
}

// AdvanceStage completes the current stage and starts the next one.
// All three writes commit or roll back together; the loan row is locked so
// concurrent advances on the same loan serialize.
func (s *Service) AdvanceStage(ctx context.Context, loanID string, stageData json.RawMessage, actor Actor) (*AdvanceResult, error) {
	var result AdvanceResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.LoanApplication
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("loan_id = ?", loanID).
			First(&loan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if loan.CurrentStage >= TotalStages {
			return fmt.Errorf("%w: already at final stage", ErrInvalidState)
		}

		now := time.Now().UTC()
		current := loan.CurrentStage
		next := current + 1

		err = tx.Model(&models.WorkflowStage{}).
			Where("loan_id = ? AND stage_id = ?", loanID, current).
			Updates(map[string]interface{}{
				"status":       StageCompleted,
				"progress":     100,
				"completed_at": now,
			}).Error
		if err != nil {
			return err
		}

		nextUpdates := map[string]interface{}{
			"status":     StageProcessing,
			"progress":   0,
			"started_at": now,
		}
		if len(stageData) > 0 {
			nextUpdates["stage_data"] = datatypes.JSON(stageData)
		}
		err = tx.Model(&models.WorkflowStage{}).
			Where("loan_id = ? AND stage_id = ?", loanID, next).
			Updates(nextUpdates).Error
		if err != nil {
			return err
		}

		err = tx.Model(&models.LoanApplication{}).
			Where("loan_id = ?", loanID).
			Updates(map[string]interface{}{
				"current_stage":   next,
				"workflow_status": models.StatusProcessing,
			}).Error
		if err != nil {
			return err
		}

		result = AdvanceResult{
			LoanID:        loanID,
			PreviousStage: current,
			CurrentStage:  next,
			Status:        models.StatusProcessing,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, loanID, actor, "advance_stage",
		fmt.Sprintf("단계 %d로 진행", result.CurrentStage), nil, result)

	return &result, nil
}

// UpdateStageInput is the direct stage overwrite request. Status and
// Progress are optional; StageID must be in [1,8].
type UpdateStageInput struct {
	StageID  int     `json:"stageId"`
	Status   *string `json:"status"`
	Progress *int    `json:"progress"`
}

// UpdateStage overwrites a single stage's status/progress and forces the
// loan's current_stage to that stage. This deliberately bypasses the ordered
// progression, including backward moves; only AdvanceStage enforces order.
func (s *Service) UpdateStage(ctx context.Context, loanID string, in *UpdateStageInput, actor Actor) error {
	if in.StageID < 1 || in.StageID > TotalStages {
		return invalidField("stageId", "stage id must be an integer between 1 and 8")
	}
	if in.Status != nil && !ValidStageStatus(*in.Status) {
		return invalidField("status", "must be one of pending, processing, completed, failed")
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return invalidField("progress", "must be between 0 and 100")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.LoanApplication
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("loan_id = ?", loanID).
			First(&loan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if in.Status != nil {
			updates := map[string]interface{}{"status": *in.Status}
			if in.Progress != nil {
				updates["progress"] = *in.Progress
			}
			switch *in.Status {
			case StageProcessing:
				updates["started_at"] = now
			case StageCompleted:
				updates["completed_at"] = now
			}
			err = tx.Model(&models.WorkflowStage{}).
				Where("loan_id = ? AND stage_id = ?", loanID, in.StageID).
				Updates(updates).Error
			if err != nil {
				return err
			}
		} else if in.Progress != nil {
			err = tx.Model(&models.WorkflowStage{}).
				Where("loan_id = ? AND stage_id = ?", loanID, in.StageID).
				Update("progress", *in.Progress).Error
			if err != nil {
				return err
			}
		}

		workflowStatus := models.StatusProcessing
		if in.StageID == TotalStages && in.Status != nil && *in.Status == StageCompleted {
			workflowStatus = models.StatusCompleted
		}

		return tx.Model(&models.LoanApplication{}).
			Where("loan_id = ?", loanID).
			Updates(map[string]interface{}{
				"current_stage":   in.StageID,
				"workflow_status": workflowStatus,
			}).Error
	})
	if err != nil {
		return err
	}

	s.audit(ctx, loanID, actor, "update_stage",
		fmt.Sprintf("단계 %d 상태 변경", in.StageID), nil, in)

	return nil
}

// LoanDetail is the full read model for one loan.
type LoanDetail struct {
	Loan      models.LoanApplication    `json:"loan"`
	Stages    []models.WorkflowStage    `json:"stages"`
	Documents []models.UploadedDocument `json:"documents"`
}

const loanAnnotations = `loan_applications.*,
	(SELECT COUNT(*) FROM uploaded_documents WHERE uploaded_documents.loan_id = loan_applications.loan_id) AS document_count,
	(SELECT COUNT(*) FROM workflow_stages WHERE workflow_stages.loan_id = loan_applications.loan_id AND workflow_stages.status = 'completed') AS completed_stages`

// Get returns a loan with its stage rows and document metadata.
func (s *Service) Get(ctx context.Context, loanID string) (*LoanDetail, error) {
	var detail LoanDetail

	err := s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Select(loanAnnotations).
		Where("loan_applications.loan_id = ?", loanID).
		First(&detail.Loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("stage_id").
		Find(&detail.Stages).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at DESC").
		Find(&detail.Documents).Error
	if err != nil {
		return nil, err
	}

	return &detail, nil
}

// Documents returns the metadata rows for a loan, newest first.
func (s *Service) Documents(ctx context.Context, loanID string) ([]models.UploadedDocument, error) {
	if err := s.ensureExists(ctx, loanID); err != nil {
		return nil, err
	}
	var docs []models.UploadedDocument
	err := s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

// Document returns one document row scoped to its loan.
func (s *Service) Document(ctx context.Context, loanID string, documentID uint) (*models.UploadedDocument, error) {
	var doc models.UploadedDocument
	err := s.db.WithContext(ctx).
		Where("id = ? AND loan_id = ?", documentID, loanID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// StageView is one stage in the workflow status read model.
type StageView struct {
	StageID       int             `json:"stageId"`
	StageName     string          `json:"stageName"`
	StageTitle    string          `json:"stageTitle"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	EstimatedTime int             `json:"estimatedTime"`
	StartedAt     *time.Time      `json:"startedAt"`
	CompletedAt   *time.Time      `json:"completedAt"`
	StageData     json.RawMessage `json:"stageData,omitempty"`
}

// StatusView is the aggregated workflow state of one loan.
//
// OverallProgress is the server-side metric: completed stages over total
// stages, excluding partial progress of the stage in flight. The dashboard
// display formula (offline.Manager.OverallProgress) folds partial progress
// in and reports a different number on purpose.
type StatusView struct {
	LoanID          string      `json:"loanId"`
	CompanyName     string      `json:"companyName"`
	CurrentStage    int         `json:"currentStage"`
	WorkflowStatus  string      `json:"workflowStatus"`
	OverallProgress int         `json:"overallProgress"`
	CompletedStages int         `json:"completedStages"`
	TotalStages     int         `json:"totalStages"`
	Stages          []StageView `json:"stages"`
}

// Status returns the workflow status read model for one loan.
func (s *Service) Status(ctx context.Context, loanID string) (*StatusView, error) {
	var loan models.LoanApplication
	err := s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stages []models.WorkflowStage
	err = s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("stage_id").
		Find(&stages).Error
	if err != nil {
		return nil, err
	}

	completed := 0
	views := make([]StageView, 0, len(stages))
	for _, st := range stages {
		if st.Status == StageCompleted {
			completed++
		}
		views = append(views, StageView{
			StageID:       st.StageID,
			StageName:     st.StageName,
			StageTitle:    st.StageTitle,
			Status:        st.Status,
			Progress:      st.Progress,
			EstimatedTime: st.EstimatedTime,
			StartedAt:     st.StartedAt,
			CompletedAt:   st.CompletedAt,
			StageData:     json.RawMessage(st.StageData),
		})
	}

	return &StatusView{
		LoanID:          loan.LoanID,
		CompanyName:     loan.CompanyName,
		CurrentStage:    loan.CurrentStage,
		WorkflowStatus:  loan.WorkflowStatus,
		OverallProgress: ServerOverallProgress(completed, len(stages)),
		CompletedStages: completed,
		TotalStages:     len(stages),
		Stages:          views,
	}, nil
}

// ServerOverallProgress is the coarse aggregate: round(100 * completed / total).
// Partial progress within the processing stage is intentionally ignored.
func ServerOverallProgress(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ListFilters narrows and pages the loan list.
type ListFilters struct {
	Page   int
	Limit  int
	Status string
	Stage  int
}

// Pagination describes one page of the loan list.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListResult is one page of annotated loans.
type ListResult struct {
	Loans      []models.LoanApplication `json:"loans"`
	Pagination Pagination               `json:"pagination"`
}

// List returns loans newest-first with document/stage counts, optionally
// filtered by workflow status and current stage.
func (s *Service) List(ctx context.Context, f ListFilters) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}

	base := s.db.WithContext(ctx).Model(&models.LoanApplication{})
	if f.Status != "" {
		base = base.Where("workflow_status = ?", f.Status)
	}
	if f.Stage > 0 {
		base = base.Where("current_stage = ?", f.Stage)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	loans := []models.LoanApplication{}
	err := base.Session(&gorm.Session{}).
		Select(loanAnnotations).
		Order("created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&loans).Error
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Loans: loans,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
		},
	}, nil
}

// StageCount is one bucket of the by-stage breakdown.
type StageCount struct {
	CurrentStage int   `json:"currentStage"`
	Count        int64 `json:"count"`
}

// Stats is the dashboard aggregate, recomputed on every call.
type Stats struct {
	Total      int64        `json:"total"`
	Processing int64        `json:"processing"`
	Completed  int64        `json:"completed"`
	Failed     int64        `json:"failed"`
	ByStage    []StageCount `json:"byStage"`
}

// GetStats counts loans overall, by workflow status and by current stage.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStage: []StageCount{}}

	err := s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Count(&stats.Total).Error
	if err != nil {
		return nil, err
	}

	var byStatus []struct {
		WorkflowStatus string
		Count          int64
	}
	err = s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Select("workflow_status, COUNT(*) as count").
		Group("workflow_status").
		Find(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		switch row.WorkflowStatus {
		case models.StatusProcessing:
			stats.Processing = row.Count
		case models.StatusCompleted:
			stats.Completed = row.Count
		case models.StatusFailed:
			stats.Failed = row.Count
		}
	}

	err = s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Select("current_stage, COUNT(*) as count").
		Group("current_stage").
		Order("current_stage").
		Find(&stats.ByStage).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Delete removes a loan and everything it owns. The three deletes run in
// foreign-key order (documents, stages, loan) as separate statements, not
// one transaction. Returns the object-store keys of the removed documents
// so the caller can clean up file bytes best-effort.
func (s *Service) Delete(ctx context.Context, loanID string, actor Actor) ([]string, error) {
	var loan models.LoanApplication
	err := s.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	err = s.db.WithContext(ctx).
		Model(&models.UploadedDocument{}).
		Where("loan_id = ? AND s3_key <> ''", loanID).
		Pluck("s3_key", &keys).Error
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Where("loan_id = ?", loanID).Delete(&models.UploadedDocument{}).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("loan_id = ?", loanID).Delete(&models.WorkflowStage{}).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("loan_id = ?", loanID).Delete(&models.LoanApplication{}).Error; err != nil {
		return nil, err
	}

	s.audit(ctx, loanID, actor, "delete", "대출 신청 삭제", loan, nil)

	return keys, nil
}

// AddDocument inserts one uploaded-document metadata row.
func (s *Service) AddDocument(ctx context.Context, doc *models.UploadedDocument) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

// MarkFirstUpload flips a pending loan to processing; a no-op once the loan
// has left the pending state.
func (s *Service) MarkFirstUpload(ctx context.Context, loanID string) error {
	return s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Where("loan_id = ? AND workflow_status = ?", loanID, models.StatusPending).
		Update("workflow_status", models.StatusProcessing).Error
}

func (s *Service) ensureExists(ctx context.Context, loanID string) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.LoanApplication{}).
		Where("loan_id = ?", loanID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// audit appends a UserAction row. Audit failures are logged, never fatal.
func (s *Service) audit(ctx context.Context, loanID string, actor Actor, actionType, description string, before, after interface{}) {
	role := actor.Role
	if role == "" {
		role = "applicant"
	}
	userID := actor.UserID
	if userID == "" {
		userID = "web-user"
	}

	action := models.UserAction{
		LoanID:            loanID,
		UserID:            userID,
		UserRole:          role,
		ActionType:        actionType,
		ActionDescription: description,
		IPAddress:         actor.IP,
	}
	if before != nil {
		if data, err := json.Marshal(before); err == nil {
			action.BeforeData = datatypes.JSON(data)
		}
	}
	if after != nil {
		if data, err := json.Marshal(after); err == nil {
			action.AfterData = datatypes.JSON(data)
		}
	}

	if err := s.db.WithContext(ctx).Create(&action).Error; err != nil {
		log.Printf("⚠️ Failed to record user action (%s on %s): %v", actionType, loanID, err)
	}
}
