package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/mesikahq/luxe-portal/internal/apiclient"
	"github.com/mesikahq/luxe-portal/internal/audit"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrMissingID       = errors.New("patient id is required")
)

// API is the subset of the remote API client the patient service needs.
type API interface {
	Get(ctx context.Context, op, path string, out interface{}) error
	Post(ctx context.Context, op, path string, in, out interface{}) error
	Put(ctx context.Context, op, path string, in, out interface{}) error
	Delete(ctx context.Context, op, path string) error
}

type Service interface {
	List(ctx context.Context) ([]Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, patient *Patient) error
	Update(ctx context.Context, id string, patient *Patient) error
	Delete(ctx context.Context, id string) error
}

type service struct {
	api   API
	audit audit.Service
}

func NewService(api API, audit audit.Service) Service {
	return &service{
		api:   api,
		audit: audit,
	}
}

func (s *service) List(ctx context.Context) ([]Patient, error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, "patient.list", "patients", &raw); err != nil {
		s.logEvent(ctx, audit.EventAccess, "LIST", "", err)
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	patients, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patients: %w", err)
	}
	s.logEvent(ctx, audit.EventAccess, "LIST", "", nil)
	return patients, nil
}

func (s *service) Get(ctx context.Context, id string) (*Patient, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	var p Patient
	if err := s.api.Get(ctx, "patient.get", patientPath(id), &p); err != nil {
		s.logEvent(ctx, audit.EventAccess, "READ", id, err)
		return nil, translate(err)
	}
	if p.ID == "" {
		p.ID = id
	}
	s.logEvent(ctx, audit.EventAccess, "READ", id, nil)
	return &p, nil
}

func (s *service) Create(ctx context.Context, patient *Patient) error {
	err := s.api.Post(ctx, "patient.create", "patients/add", patient, nil)
	s.logEvent(ctx, audit.EventCreate, "CREATE", patient.ID, err)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (s *service) Update(ctx context.Context, id string, patient *Patient) error {
	if id == "" {
		return ErrMissingID
	}

	err := s.api.Put(ctx, "patient.update", patientPath(id), patient, nil)
	s.logEvent(ctx, audit.EventModify, "UPDATE", id, err)
	if err != nil {
		return translate(err)
	}
	patient.ID = id
	return nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	err := s.api.Delete(ctx, "patient.delete", patientPath(id))
	s.logEvent(ctx, audit.EventDelete, "DELETE", id, err)
	if err != nil {
		return translate(err)
	}
	return nil
}

func patientPath(id string) string {
	return "patients/" + url.PathEscape(id)
}

func translate(err error) error {
	if errors.Is(err, apiclient.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrPatientNotFound, err)
	}
	return err
}

func (s *service) logEvent(ctx context.Context, eventType audit.EventType, action, id string, err error) {
	if s.audit == nil {
		return
	}

	event := &audit.AuditEvent{
		EventType:  eventType,
		Action:     action,
		Resource:   "patient",
		ResourceID: id,
		Status:     audit.StatusSuccess,
	}
	if err != nil {
		event.Status = audit.StatusFailure
		details, _ := json.Marshal(map[string]string{"error": err.Error()})
		event.Details = details
	}
	_ = s.audit.LogEvent(ctx, event)
}
