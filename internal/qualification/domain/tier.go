package domain

// Tier 投资者能力分级，全序：Beginner < Intermediate < Advanced
type Tier int8

const (
	TierBeginner     Tier = 1 // 初级
	TierIntermediate Tier = 2 // 中级
	TierAdvanced     Tier = 3 // 高级
)

// String 分级名称
func (t Tier) String() string {
	switch t {
	case TierBeginner:
		return "BEGINNER"
	case TierIntermediate:
		return "INTERMEDIATE"
	case TierAdvanced:
		return "ADVANCED"
	default:
		return "UNKNOWN"
	}
}

// TierFromString 解析分级名称，未知名称按最低分级处理
func TierFromString(s string) Tier {
	switch s {
	case "INTERMEDIATE":
		return TierIntermediate
	case "ADVANCED":
		return TierAdvanced
	default:
		return TierBeginner
	}
}

// AtLeast 当前分级是否不低于要求分级
func (t Tier) AtLeast(required Tier) bool {
	return t >= required
}
