// Package store persists processed alerts, group snapshots and lifecycle
// events. The in-memory engines stay authoritative while the process runs;
// the store is the durable mirror dashboards and restarts read from.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/suppression"
)

// Service wraps all persistence operations
type Service struct {
	db *gorm.DB
}

// NewService creates a store service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SaveAlert upserts the durable record for a processed alert
func (s *Service) SaveAlert(a *alerts.Alert, score float64) error {
	record := ProcessedAlert{
		AlertID:       a.ID,
		Fingerprint:   a.Fingerprint,
		GroupID:       a.GroupID,
		Source:        a.Source,
		Severity:      string(a.Severity),
		Message:       a.Message,
		Tags:          StringList(a.Tags),
		Metadata:      JSONB(a.Metadata),
		BusinessScore: score,
		Suppressed:    a.Suppressed,
		Timestamp:     a.Timestamp,
	}

	var existing ProcessedAlert
	err := s.db.Where("alert_id = ?", a.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up alert %s: %w", a.ID, err)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to update alert %s: %w", a.ID, err)
	}
	return nil
}

// GetAlert loads one processed alert by its alert id
func (s *Service) GetAlert(alertID string) (*ProcessedAlert, error) {
	var record ProcessedAlert
	if err := s.db.Where("alert_id = ?", alertID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListAlerts returns processed alerts newest-first with a total count
func (s *Service) ListAlerts(limit, offset int) ([]ProcessedAlert, int64, error) {
	var total int64
	if err := s.db.Model(&ProcessedAlert{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []ProcessedAlert
	err := s.db.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SaveGroup upserts a deduplication group snapshot
func (s *Service) SaveGroup(g *alerts.AlertGroup) error {
	source := ""
	if g.Representative != nil {
		source = g.Representative.Source
	}
	record := GroupSnapshot{
		GroupID:     g.ID,
		Fingerprint: g.Fingerprint,
		Source:      source,
		Severity:    string(g.Severity),
		AlertCount:  g.Count,
		Suppressed:  g.Suppressed,
		FirstSeen:   g.FirstSeen,
		LastSeen:    g.LastSeen,
	}

	var existing GroupSnapshot
	err := s.db.Where("group_id = ?", g.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to save group %s: %w", g.ID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up group %s: %w", g.ID, err)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	record.ExpiredAt = existing.ExpiredAt
	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to update group %s: %w", g.ID, err)
	}
	return nil
}

// MarkGroupExpired stamps a group snapshot as evicted
func (s *Service) MarkGroupExpired(groupID string, at time.Time) error {
	return s.db.Model(&GroupSnapshot{}).
		Where("group_id = ?", groupID).
		Update("expired_at", at).Error
}

// ListGroups returns group snapshots most recently seen first
func (s *Service) ListGroups(limit, offset int) ([]GroupSnapshot, int64, error) {
	var total int64
	if err := s.db.Model(&GroupSnapshot{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []GroupSnapshot
	err := s.db.Order("last_seen DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// RecordEvent persists one lifecycle event
func (s *Service) RecordEvent(ev *alerts.AlertEvent) error {
	record := EventRecord{
		EventID:       ev.ID,
		AlertID:       ev.AlertID,
		Type:          string(ev.Type),
		Source:        ev.Source,
		Severity:      string(ev.Severity),
		DurationMs:    ev.Duration.Milliseconds(),
		BusinessScore: ev.BusinessScore,
		Tags:          StringList(ev.Tags),
		Timestamp:     ev.Timestamp,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}

// ListEvents returns persisted events newest-first with a total count
func (s *Service) ListEvents(limit, offset int) ([]EventRecord, int64, error) {
	var total int64
	if err := s.db.Model(&EventRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []EventRecord
	err := s.db.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// PurgeEventsBefore deletes persisted events older than the cutoff
func (s *Service) PurgeEventsBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&EventRecord{})
	return res.RowsAffected, res.Error
}

// SaveRule upserts a suppression rule record
func (s *Service) SaveRule(rule *suppression.Rule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode rule condition: %w", err)
	}
	var conditionMap JSONB
	if err := json.Unmarshal(condition, &conditionMap); err != nil {
		return fmt.Errorf("failed to encode rule condition: %w", err)
	}

	record := SuppressionRuleRecord{
		RuleID:    rule.ID,
		Name:      rule.Name,
		Priority:  rule.Priority,
		Condition: conditionMap,
		Permanent: rule.Permanent,
		Duration:  int64(rule.Duration.Seconds()),
		Notify:    rule.Notify,
		Enabled:   rule.Enabled,
	}

	var existing SuppressionRuleRecord
	err = s.db.Where("rule_id = ?", rule.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up rule %s: %w", rule.ID, err)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to update rule %s: %w", rule.ID, err)
	}
	return nil
}

// ListRules loads all persisted suppression rules
func (s *Service) ListRules() ([]*suppression.Rule, error) {
	var records []SuppressionRuleRecord
	if err := s.db.Order("priority DESC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	rules := make([]*suppression.Rule, 0, len(records))
	for _, r := range records {
		conditionJSON, err := json.Marshal(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("failed to decode rule %s condition: %w", r.RuleID, err)
		}
		var condition suppression.Condition
		if err := json.Unmarshal(conditionJSON, &condition); err != nil {
			return nil, fmt.Errorf("failed to decode rule %s condition: %w", r.RuleID, err)
		}

		rules = append(rules, &suppression.Rule{
			ID:        r.RuleID,
			Name:      r.Name,
			Priority:  r.Priority,
			Condition: condition,
			Permanent: r.Permanent,
			Duration:  time.Duration(r.Duration) * time.Second,
			Notify:    r.Notify,
			Enabled:   r.Enabled,
		})
	}
	return rules, nil
}

// DeleteRule removes a persisted suppression rule
func (s *Service) DeleteRule(ruleID string) error {
	res := s.db.Where("rule_id = ?", ruleID).Delete(&SuppressionRuleRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
