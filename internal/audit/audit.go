package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess          EventType = "ACCESS"
	EventCreate          EventType = "CREATE"
	EventModify          EventType = "MODIFY"
	EventDelete          EventType = "DELETE"
	EventLogin           EventType = "LOGIN"
	EventLogout          EventType = "LOGOUT"
	EventValidationError EventType = "VALIDATION_ERROR"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type AuditEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"event_type"`
	UserID      string          `json:"user_id"`
	Action      string          `json:"action"`
	Resource    string          `json:"resource"`
	ResourceID  string          `json:"resource_id"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	RequestID   string          `json:"request_id"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Sensitivity string          `json:"sensitivity"`
}

type Service interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
	QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error)
}

type service struct {
	es          *elasticsearch.Client
	logger      *logrus.Logger
	indexPrefix string
}

// NewService returns an audit trail that always writes to logger and, when
// esClient is non-nil, also indexes events into monthly Elasticsearch indices.
func NewService(esClient *elasticsearch.Client, logger *logrus.Logger, indexPrefix string) Service {
	if logger == nil {
		logger = NewLogger()
	}
	if indexPrefix == "" {
		indexPrefix = "luxe_audit_"
	}

	return &service{
		es:          esClient,
		logger:      logger,
		indexPrefix: indexPrefix,
	}
}

// NewLogger is the default audit logger: JSON lines at info level.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

func (s *service) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Sensitivity == "" {
		event.Sensitivity = "PHI"
	}
	enrichFromContext(ctx, event)

	entry := s.logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"ip_address":  event.IPAddress,
		"request_id":  event.RequestID,
		"status":      event.Status,
		"sensitivity": event.Sensitivity,
	})
	if event.Status == StatusFailure {
		entry.Warn("Audit event logged")
	} else {
		entry.Info("Audit event logged")
	}

	if s.es == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	index := s.indexPrefix + event.Timestamp.Format("2006.01")
	res, err := s.es.Index(
		index,
		bytes.NewReader(payload),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to index audit event")
		return fmt.Errorf("failed to index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.WithField("status", res.StatusCode).Error("Failed to index audit event")
		return fmt.Errorf("failed to index audit event: %s", res.Status())
	}

	return nil
}

func (s *service) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]AuditEvent, error) {
	if s.es == nil {
		return nil, ErrSearchDisabled
	}

	query := map[string]interface{}{
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "desc",
				},
			},
		},
		"from": from,
		"size": size,
	}
	if must := buildQueryFilters(filters); len(must) > 0 {
		query["query"] = map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		}
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.indexPrefix+"*"),
		s.es.Search.WithBody(strings.NewReader(string(queryJSON))),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("audit search failed: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source AuditEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}

	events := make([]AuditEvent, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		events[i] = hit.Source
	}

	return events, nil
}

func buildQueryFilters(filters map[string]interface{}) []map[string]interface{} {
	var must []map[string]interface{}

	for field, value := range filters {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				field: value,
			},
		})
	}

	return must
}
