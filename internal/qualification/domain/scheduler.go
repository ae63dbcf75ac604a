package domain

import (
	"strings"
	"time"
)

// SchedulerState 重测状态机状态
type SchedulerState string

const (
	SchedulerStateCurrent   SchedulerState = "CURRENT"                // 资质有效
	SchedulerStateSuggested SchedulerState = "REASSESSMENT_SUGGESTED" // 建议重测
	SchedulerStateRequired  SchedulerState = "REASSESSMENT_REQUIRED"  // 强制重测
)

// 状态机事件
const (
	schedulerEventSuggest = "SUGGEST"
	schedulerEventRequire = "REQUIRE"
	schedulerEventAssess  = "ASSESS"
)

// TriggerKind 重测触发条件类别
type TriggerKind string

const (
	TriggerElapsedTime      TriggerKind = "ELAPSED_TIME"      // 距定级生效已满 6 个月
	TriggerRealizedLoss     TriggerKind = "REALIZED_LOSS"     // 已实现亏损达期权资金 20%
	TriggerRepeatedOverride TriggerKind = "REPEATED_OVERRIDE" // 滚动窗口内连续 3 次带确认放行
	TriggerComplianceFlag   TriggerKind = "COMPLIANCE_FLAG"   // 外部合规协作方高风险标记，直达强制重测
)

// ReassessmentInterval 时间触发条件：距 tier_effective_since 的时长
const ReassessmentInterval = 6 * 30 * 24 * time.Hour

// OverrideWindow 连续带确认放行的滚动窗口
const OverrideWindow = 30 * 24 * time.Hour

// ConsecutiveAckLimit 窗口内触发重测建议的连续带确认放行次数
const ConsecutiveAckLimit = 3

// RealizedLossThreshold 已实现亏损占期权资金比例的触发下限
const RealizedLossThresholdPct = 20

// parseTriggers 逗号分隔的触发条件集合
func parseTriggers(s string) []TriggerKind {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]TriggerKind, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, TriggerKind(p))
		}
	}
	return out
}

func joinTriggers(kinds []TriggerKind) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, ",")
}

func containsTrigger(kinds []TriggerKind, kind TriggerKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
