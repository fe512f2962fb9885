package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/repository"
)

const maxViolationReasonLength = 100

// ViolationService records proctor incident reports and their evidence.
type ViolationService interface {
	Create(ctx context.Context, req dto.ViolationCreateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error)
	Get(ctx context.Context, id uint) (dto.ViolationResponse, error)
	List(ctx context.Context, filter dto.ViolationFilter) ([]dto.ViolationResponse, error)
	Update(ctx context.Context, id uint, req dto.ViolationUpdateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error)
	Delete(ctx context.Context, id uint) error
}

type violationService struct {
	store     repository.Store
	files     FileStore
	events    EventPublisher
	sanitizer *bluemonday.Policy
	maxBytes  int64
	logger    zerolog.Logger
}

// NewViolationService constructs the violation recorder. events may be nil.
func NewViolationService(store repository.Store, files FileStore, events EventPublisher, maxUploadMB int, logger zerolog.Logger) ViolationService {
	return &violationService{
		store:     store,
		files:     files,
		events:    events,
		sanitizer: bluemonday.StrictPolicy(),
		maxBytes:  maxUploadBytes(maxUploadMB),
		logger:    logger.With().Str("component", "violation_service").Logger(),
	}
}

func (s *violationService) Create(ctx context.Context, req dto.ViolationCreateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error) {
	reason, err := s.cleanReason(req.Reason)
	if err != nil {
		return dto.ViolationResponse{}, err
	}

	if _, err := s.store.Exams().GetByID(ctx, req.ExamID); err != nil {
		if repository.IsNotFound(err) {
			return dto.ViolationResponse{}, notFound("exam", req.ExamID)
		}
		return dto.ViolationResponse{}, err
	}
	if _, err := s.store.Students().GetByID(ctx, req.StudentID); err != nil {
		if repository.IsNotFound(err) {
			return dto.ViolationResponse{}, notFound("student", req.StudentID)
		}
		return dto.ViolationResponse{}, err
	}
	if req.CheckinID != nil {
		if err := s.ensureCheckin(ctx, *req.CheckinID); err != nil {
			return dto.ViolationResponse{}, err
		}
	}

	violation := models.Violation{
		ExamID:    req.ExamID,
		StudentID: req.StudentID,
		CheckinID: req.CheckinID,
		Reason:    reason,
		Notes:     s.cleanNotes(req.Notes),
	}

	if evidence != nil {
		location, err := s.storeEvidence(ctx, req.ExamID, req.StudentID, evidence)
		if err != nil {
			return dto.ViolationResponse{}, err
		}
		violation.EvidenceImagePath = location
	}

	if err := s.store.Violations().Create(ctx, &violation); err != nil {
		if violation.HasEvidence() {
			s.removeEvidence(ctx, violation.EvidenceImagePath)
		}
		return dto.ViolationResponse{}, fmt.Errorf("save violation: %w", err)
	}

	response := dto.NewViolationResponse(violation)
	s.publish(ctx, dto.ExamEventViolationRecorded, violation, response)
	s.logger.Info().Uint("violation_id", violation.ID).Uint("exam_id", violation.ExamID).Uint("student_id", violation.StudentID).Msg("violation recorded")
	return response, nil
}

func (s *violationService) Get(ctx context.Context, id uint) (dto.ViolationResponse, error) {
	violation, err := s.load(ctx, id)
	if err != nil {
		return dto.ViolationResponse{}, err
	}
	return dto.NewViolationResponse(violation), nil
}

func (s *violationService) List(ctx context.Context, filter dto.ViolationFilter) ([]dto.ViolationResponse, error) {
	violations, err := s.store.Violations().List(ctx, repository.ViolationFilter{ExamID: filter.ExamID})
	if err != nil {
		return nil, err
	}
	return dto.NewViolationResponseSlice(violations), nil
}

// Update applies only the fields present in req. Reason can change but not be
// cleared; notes and the check-in link clear on null.
func (s *violationService) Update(ctx context.Context, id uint, req dto.ViolationUpdateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error) {
	violation, err := s.load(ctx, id)
	if err != nil {
		return dto.ViolationResponse{}, err
	}

	if req.Reason.Set {
		if req.Reason.Null {
			return dto.ViolationResponse{}, newError(KindInvalidRequest, "reason cannot be cleared",
				FieldError{Index: -1, Field: "reason", Message: "required"})
		}
		reason, err := s.cleanReason(req.Reason.Value)
		if err != nil {
			return dto.ViolationResponse{}, err
		}
		violation.Reason = reason
	}

	if req.Notes.Set {
		violation.Notes = s.cleanNotes(req.Notes.Ptr())
	}

	if req.CheckinID.Set {
		if req.CheckinID.Null {
			violation.CheckinID = nil
		} else {
			if err := s.ensureCheckin(ctx, req.CheckinID.Value); err != nil {
				return dto.ViolationResponse{}, err
			}
			checkinID := req.CheckinID.Value
			violation.CheckinID = &checkinID
		}
	}

	if evidence != nil {
		image, err := readImage(evidence, s.maxBytes, "evidence")
		if err != nil {
			return dto.ViolationResponse{}, err
		}
		if violation.HasEvidence() {
			s.removeEvidence(ctx, violation.EvidenceImagePath)
		}
		location, err := s.files.Save(ctx, evidenceName(violation.ExamID, violation.StudentID, image.name), image.reader())
		if err != nil {
			return dto.ViolationResponse{}, fmt.Errorf("store evidence: %w", err)
		}
		violation.EvidenceImagePath = location
	}

	if err := s.store.Violations().Update(ctx, &violation); err != nil {
		return dto.ViolationResponse{}, fmt.Errorf("update violation: %w", err)
	}

	response := dto.NewViolationResponse(violation)
	s.publish(ctx, dto.ExamEventViolationUpdated, violation, response)
	s.logger.Info().Uint("violation_id", violation.ID).Msg("violation updated")
	return response, nil
}

func (s *violationService) Delete(ctx context.Context, id uint) error {
	violation, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if violation.HasEvidence() {
		s.removeEvidence(ctx, violation.EvidenceImagePath)
	}

	if err := s.store.Violations().Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound("violation", id)
		}
		return fmt.Errorf("delete violation: %w", err)
	}

	s.publish(ctx, dto.ExamEventViolationDeleted, violation, map[string]interface{}{"id": violation.ID})
	s.logger.Info().Uint("violation_id", id).Msg("violation deleted")
	return nil
}

func (s *violationService) load(ctx context.Context, id uint) (models.Violation, error) {
	violation, err := s.store.Violations().GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return models.Violation{}, notFound("violation", id)
		}
		return models.Violation{}, err
	}
	return violation, nil
}

func (s *violationService) ensureCheckin(ctx context.Context, id uint) error {
	if _, err := s.store.Checkins().GetByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound("checkin", id)
		}
		return err
	}
	return nil
}

func (s *violationService) cleanReason(raw string) (string, error) {
	reason := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	if reason == "" {
		return "", newError(KindInvalidRequest, "reason is required",
			FieldError{Index: -1, Field: "reason", Message: "required"})
	}
	if utf8.RuneCountInString(reason) > maxViolationReasonLength {
		return "", newError(KindInvalidRequest, "reason is too long",
			FieldError{Index: -1, Field: "reason", Message: fmt.Sprintf("must be at most %d characters", maxViolationReasonLength)})
	}
	return reason, nil
}

func (s *violationService) cleanNotes(raw *string) *string {
	if raw == nil {
		return nil
	}
	notes := strings.TrimSpace(s.sanitizer.Sanitize(*raw))
	if notes == "" {
		return nil
	}
	return &notes
}

func (s *violationService) storeEvidence(ctx context.Context, examID, studentID uint, file *multipart.FileHeader) (string, error) {
	image, err := readImage(file, s.maxBytes, "evidence")
	if err != nil {
		return "", err
	}
	location, err := s.files.Save(ctx, evidenceName(examID, studentID, image.name), image.reader())
	if err != nil {
		return "", fmt.Errorf("store evidence: %w", err)
	}
	return location, nil
}

// removeEvidence never fails the caller; a missing or locked file only logs.
func (s *violationService) removeEvidence(ctx context.Context, location string) {
	if err := s.files.Delete(ctx, location); err != nil {
		s.logger.Warn().Err(err).Str("location", location).Msg("failed to delete evidence file")
	}
}

func (s *violationService) publish(ctx context.Context, eventType string, violation models.Violation, data interface{}) {
	if s.events == nil {
		return
	}
	studentID := violation.StudentID
	s.events.PublishExamEvent(ctx, violation.ExamID, eventType, &studentID, data)
}
