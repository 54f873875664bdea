package repository

import (
	"fmt"
	"strconv"

	"github.com/duynhne/session-service/internal/core/domain"
)

// sessionFromRow splits a flat session row into the fixed fields and the
// remaining attribute columns.
func sessionFromRow(row map[string]any) (*domain.Session, error) {
	id, err := stringColumn(row, domain.ColumnID)
	if err != nil {
		return nil, err
	}
	userID, err := stringColumn(row, domain.ColumnUserID)
	if err != nil {
		return nil, err
	}
	expiresAt, err := int64Column(row, domain.ColumnExpiresAt)
	if err != nil {
		return nil, err
	}

	attributes := make(domain.Attributes, len(row))
	for k, v := range row {
		switch k {
		case domain.ColumnID, domain.ColumnUserID, domain.ColumnExpiresAt:
			continue
		}
		attributes[k] = normalizeValue(v)
	}

	return &domain.Session{
		ID:         id,
		UserID:     userID,
		ExpiresAt:  domain.FromUnixSeconds(expiresAt),
		Attributes: attributes,
	}, nil
}

func userFromRow(row map[string]any) (*domain.User, error) {
	id, err := stringColumn(row, domain.ColumnID)
	if err != nil {
		return nil, err
	}

	attributes := make(domain.Attributes, len(row))
	for k, v := range row {
		if k == domain.ColumnID {
			continue
		}
		attributes[k] = normalizeValue(v)
	}

	return &domain.User{ID: id, Attributes: attributes}, nil
}

// normalizeValue folds driver-specific scan results into the attribute kinds:
// string, int64, float64, bool, time.Time or nil.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func stringColumn(row map[string]any, name string) (string, error) {
	switch v := row[name].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("column %s is missing or NULL", name)
	default:
		return fmt.Sprint(v), nil
	}
}

func int64Column(row map[string]any, name string) (int64, error) {
	switch v := normalizeValue(row[name]).(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("column %s is missing or NULL", name)
	default:
		return 0, fmt.Errorf("column %s: unsupported type %T", name, v)
	}
}
