package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// RoleList is a set of signature roles stored as comma-separated text.
type RoleList []SignatureRole

// Contains reports whether the list includes the given role.
func (l RoleList) Contains(role SignatureRole) bool {
	for _, r := range l {
		if r == role {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (l RoleList) Value() (driver.Value, error) {
	parts := make([]string, 0, len(l))
	for _, r := range l {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner.
func (l *RoleList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported role list type %T", src)
	}
	if raw == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	list := make(RoleList, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			list = append(list, SignatureRole(part))
		}
	}
	*l = list
	return nil
}
