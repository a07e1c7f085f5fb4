package domain

import (
	"encoding/json"
	"fmt"
)

// ApprovalStatus is the promoter account's position in the approval workflow:
// not submitted, pending, then rejected or passed/active.
type ApprovalStatus int

const (
	// StatusUnknown is any wire value this build does not recognise.
	StatusUnknown ApprovalStatus = iota
	StatusNotSubmitted
	StatusPending
	StatusRejected
	StatusPassed
	StatusActive
)

var approvalStatusNames = map[ApprovalStatus]string{
	StatusUnknown:      "unknown",
	StatusNotSubmitted: "not_submitted",
	StatusPending:      "pending",
	StatusRejected:     "reject",
	StatusPassed:       "pass",
	StatusActive:       "active",
}

// ParseApprovalStatus maps a wire value onto the enum.
func ParseApprovalStatus(s string) ApprovalStatus {
	switch s {
	case "not_submitted":
		return StatusNotSubmitted
	case "pending":
		return StatusPending
	case "reject":
		return StatusRejected
	case "pass":
		return StatusPassed
	case "active":
		return StatusActive
	default:
		return StatusUnknown
	}
}

func (s ApprovalStatus) String() string {
	if name, ok := approvalStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ApprovalStatus(%d)", int(s))
}

// IsApproved reports whether the account may use the promoter pages.
// Passed and active are equivalent for access purposes.
func (s ApprovalStatus) IsApproved() bool {
	return s == StatusPassed || s == StatusActive
}

// Level is the promoter tier. LevelNone covers a null level on the wire.
type Level int

const (
	LevelNone Level = 0
	LevelOne  Level = 1
	LevelTwo  Level = 2
)

// PromoterType distinguishes individual from company promoters.
type PromoterType string

const (
	PromoterPersonal PromoterType = "personal"
	PromoterCompany  PromoterType = "company"
)

// AccountStatus is the approval snapshot returned by the status endpoint.
// It is never persisted.
type AccountStatus struct {
	Status     ApprovalStatus
	RawStatus  string
	PromoterID int64
	Name       string
	Phone      string
	Level      Level
	Type       PromoterType
}

type accountStatusJSON struct {
	Status     string       `json:"status"`
	PromoterID int64        `json:"promoter_id"`
	Name       string       `json:"name"`
	Phone      string       `json:"phone"`
	Level      *int         `json:"level"`
	Type       PromoterType `json:"type"`
}

func (a *AccountStatus) UnmarshalJSON(data []byte) error {
	var wire accountStatusJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	level := LevelNone
	if wire.Level != nil {
		level = Level(*wire.Level)
	}

	*a = AccountStatus{
		Status:     ParseApprovalStatus(wire.Status),
		RawStatus:  wire.Status,
		PromoterID: wire.PromoterID,
		Name:       wire.Name,
		Phone:      wire.Phone,
		Level:      level,
		Type:       wire.Type,
	}
	return nil
}

func (a AccountStatus) MarshalJSON() ([]byte, error) {
	wire := accountStatusJSON{
		Status:     a.RawStatus,
		PromoterID: a.PromoterID,
		Name:       a.Name,
		Phone:      a.Phone,
		Type:       a.Type,
	}
	if wire.Status == "" && a.Status != StatusUnknown {
		wire.Status = a.Status.String()
	}
	if a.Level != LevelNone {
		level := int(a.Level)
		wire.Level = &level
	}
	return json.Marshal(wire)
}
