package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type settingRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
	BulkUpsert(ctx context.Context, settings []models.Setting) error
}

type settingTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type settingAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type allowedSetting struct {
	Key           string
	Type          models.SettingType
	Description   string
	RequiresTerm  bool
	AffectsPolicy bool
}

var allowedSettingKeys = []string{
	models.SettingSISPostEnabled,
	models.SettingSISRequireDueDate,
	models.SettingDefaultTermID,
}

var allowedSettings = map[string]allowedSetting{
	models.SettingSISPostEnabled: {
		Key:           models.SettingSISPostEnabled,
		Type:          models.SettingTypeBoolean,
		Description:   "Whether assignments may post grades to the student information system",
		AffectsPolicy: true,
	},
	models.SettingSISRequireDueDate: {
		Key:           models.SettingSISRequireDueDate,
		Type:          models.SettingTypeBoolean,
		Description:   "Whether SIS-posted assignments must carry a due date",
		AffectsPolicy: true,
	},
	models.SettingDefaultTermID: {
		Key:          models.SettingDefaultTermID,
		Type:         models.SettingTypeString,
		Description:  "Term used when course listings do not specify one",
		RequiresTerm: true,
	},
}

var builtinSettingDefaults = map[string]string{
	models.SettingSISPostEnabled:    "true",
	models.SettingSISRequireDueDate: "false",
}

// SettingsServiceConfig tunes runtime behaviour.
type SettingsServiceConfig struct {
	Defaults map[string]string
}

// SettingsService orchestrates CRUD workflow for account settings.
type SettingsService struct {
	repo      settingRepository
	terms     settingTermReader
	audit     settingAuditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingRepository, terms settingTermReader, audit settingAuditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg SettingsServiceConfig) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinSettingDefaults))
	for key, value := range builtinSettingDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &SettingsService{
		repo:      repo,
		terms:     terms,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

// List returns setting items scoped to allowed keys.
func (s *SettingsService) List(ctx context.Context) ([]dto.SettingItem, error) {
	keys := allowedKeys()
	rows, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	existing := make(map[string]models.Setting, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.SettingItem, 0, len(keys))
	for _, key := range keys {
		meta := allowedSettings[key]
		item := dto.SettingItem{
			Key:         key,
			Type:        string(meta.Type),
			Description: meta.Description,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
			if row.Description != nil && *row.Description != "" {
				item.Description = *row.Description
			}
		} else if def, ok := s.defaultValue(key); ok {
			item.Value = def
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single setting.
func (s *SettingsService) Get(ctx context.Context, key string) (*dto.SettingItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			if def, ok := s.defaultValue(key); ok {
				return &dto.SettingItem{
					Key:         key,
					Value:       def,
					Type:        string(meta.Type),
					Description: meta.Description,
				}, nil
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get setting")
	}
	description := meta.Description
	if setting.Description != nil && *setting.Description != "" {
		description = *setting.Description
	}
	return &dto.SettingItem{
		Key:         setting.Key,
		Value:       setting.Value,
		Type:        string(setting.Type),
		Description: description,
	}, nil
}

// Update upserts a setting entry.
func (s *SettingsService) Update(ctx context.Context, key string, value string, actor *models.JWTClaims) (*dto.SettingItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = s.validateValue(ctx, meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch setting")
	}
	if prev != nil && prev.Type != meta.Type {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting type mismatch")
	}

	setting := &models.Setting{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}

	if meta.AffectsPolicy {
		s.invalidatePolicies(ctx)
	}
	s.emitAudit(ctx, actor, key, prevValue(prev), value)

	return &dto.SettingItem{
		Key:         key,
		Value:       value,
		Type:        string(meta.Type),
		Description: meta.Description,
	}, nil
}

// BulkUpdate applies multiple updates transactionally.
func (s *SettingsService) BulkUpdate(ctx context.Context, req dto.BulkUpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing settings")
	}
	existingMap := make(map[string]models.Setting, len(existing))
	for _, setting := range existing {
		existingMap[setting.Key] = setting
	}

	touchesPolicy := false
	toUpsert := make([]models.Setting, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			return nil, err
		}
		normalizedValue, err := s.validateValue(ctx, meta, item.Value)
		if err != nil {
			return nil, err
		}
		if prev, ok := existingMap[item.Key]; ok && prev.Type != meta.Type {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("setting type mismatch for %s", item.Key))
		}
		if meta.AffectsPolicy {
			touchesPolicy = true
		}
		toUpsert = append(toUpsert, models.Setting{
			Key:         item.Key,
			Value:       normalizedValue,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk update settings")
	}
	if touchesPolicy {
		s.invalidatePolicies(ctx)
	}

	result := make([]dto.SettingItem, 0, len(toUpsert))
	for _, setting := range toUpsert {
		result = append(result, dto.SettingItem{
			Key:         setting.Key,
			Value:       setting.Value,
			Type:        string(setting.Type),
			Description: allowedSettings[setting.Key].Description,
		})
		prev := existingMap[setting.Key]
		s.emitAudit(ctx, actor, setting.Key, prevValue(&prev), setting.Value)
	}
	return result, nil
}

// SISDueDatePolicy reports whether SIS posting is enabled and whether posted
// assignments must carry a due date.
func (s *SettingsService) SISDueDatePolicy(ctx context.Context) (postEnabled bool, requireDueDate bool, err error) {
	postValue, err := s.getValueOrDefault(ctx, models.SettingSISPostEnabled)
	if err != nil {
		return false, false, err
	}
	requireValue, err := s.getValueOrDefault(ctx, models.SettingSISRequireDueDate)
	if err != nil {
		return false, false, err
	}
	return boolValue(postValue), boolValue(requireValue), nil
}

// DefaultTermID returns the configured default term with existence check.
func (s *SettingsService) DefaultTermID(ctx context.Context) (string, error) {
	value, err := s.getValueOrDefault(ctx, models.SettingDefaultTermID)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "default_term_id not configured")
	}
	if err := s.ensureTermExists(ctx, value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *SettingsService) requireAllowedKey(key string) (allowedSetting, error) {
	meta, ok := allowedSettings[key]
	if !ok {
		return allowedSetting{}, appErrors.Clone(appErrors.ErrValidation, "unsupported setting key")
	}
	return meta, nil
}

func (s *SettingsService) validateValue(ctx context.Context, meta allowedSetting, value string) (string, error) {
	switch meta.Type {
	case models.SettingTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", meta.Key))
		}
	case models.SettingTypeString:
		value = strings.TrimSpace(value)
		if meta.RequiresTerm {
			if value == "" {
				return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s requires termId value", meta.Key))
			}
			if err := s.ensureTermExists(ctx, value); err != nil {
				return "", err
			}
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported setting type")
	}
}

func (s *SettingsService) ensureTermExists(ctx context.Context, termID string) error {
	if s.terms == nil {
		return nil
	}
	_, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify term")
	}
	return nil
}

func (s *SettingsService) invalidatePolicies(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, policyCachePattern); err != nil {
		s.logger.Warn("failed to invalidate policy cache", zap.Error(err))
	}
}

func (s *SettingsService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldPayload := map[string]string{"key": key, "value": oldValue}
	newPayload := map[string]string{"key": key, "value": newValue}
	oldBytes, _ := json.Marshal(oldPayload)
	newBytes, _ := json.Marshal(newPayload)
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionSettingUpdate,
		Resource:   "setting",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "settings-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record setting audit", zap.Error(err))
	}
}

func allowedKeys() []string {
	keys := make([]string, len(allowedSettingKeys))
	copy(keys, allowedSettingKeys)
	return keys
}

func prevValue(setting *models.Setting) string {
	if setting == nil {
		return ""
	}
	return setting.Value
}

func boolValue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}

func (s *SettingsService) defaultValue(key string) (string, bool) {
	if s.defaults == nil {
		return "", false
	}
	value, ok := s.defaults[key]
	return value, ok
}

func (s *SettingsService) getValueOrDefault(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			if def, ok := s.defaultValue(key); ok {
				return def, nil
			}
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get setting")
	}
	return setting.Value, nil
}
