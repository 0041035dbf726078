package models

import (
	"time"
)

// PlanKind represents the subscription tier a quota record belongs to
type PlanKind string

const (
	PlanKindFlow     PlanKind = "flow"
	PlanKindCreative PlanKind = "creative"
)

// Valid reports whether the plan kind is one of the known tiers
func (p PlanKind) Valid() bool {
	return p == PlanKindFlow || p == PlanKindCreative
}

// AccountQuota tracks credited and consumed transformation volume
// per account and plan kind. One row per (account_id, plan_kind).
type AccountQuota struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"id"`
	AccountID        uint      `gorm:"column:account_id;not null;uniqueIndex:uk_account_plan,priority:1" json:"account_id"`
	PlanKind         PlanKind  `gorm:"column:plan_kind;size:20;not null;uniqueIndex:uk_account_plan,priority:2" json:"plan_kind"`
	CreditedVolume   int64     `gorm:"column:credited_volume;not null;default:0" json:"credited_volume"`
	PeriodStart      time.Time `gorm:"column:period_start" json:"period_start"`
	FlowsConsumed    int64     `gorm:"column:flows_consumed;not null;default:0" json:"flows_consumed"`
	CreativeConsumed int64     `gorm:"column:creative_consumed;not null;default:0" json:"creative_consumed"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AccountQuota) TableName() string {
	return "account_quotas"
}

// Consumed returns the consumption counter matching the record's plan kind
func (q *AccountQuota) Consumed() int64 {
	if q.PlanKind == PlanKindCreative {
		return q.CreativeConsumed
	}
	return q.FlowsConsumed
}
