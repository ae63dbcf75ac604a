package domain

// Classify 按题库版本声明的阈值对评分结果定级
// 规则按序评估，多条命中时取最严格者：
//  1. 基础类答对数不达下限 -> 初级，总分再高也不例外
//  2. 总加权分严格大于高级阈值 且 高阶类达下限 -> 高级
//  3. 总加权分严格大于中级阈值 且 策略类达下限 -> 中级
//  4. 其余 -> 初级
//
// 百分比阈值为排他下界：压线（恰好等于阈值）落入下一级（fail closed）
func Classify(version *CatalogVersionRecord, score *ScoreResult) Tier {
	if version == nil || score == nil {
		return TierBeginner
	}

	if score.CategoryCorrect(CategoryFundamental) < version.MinCorrectFundamental {
		return TierBeginner
	}

	if score.WeightedPct.GreaterThan(version.AdvancedPct) &&
		score.CategoryCorrect(CategoryAdvanced) >= version.MinCorrectAdvanced {
		return TierAdvanced
	}

	if score.WeightedPct.GreaterThan(version.IntermediatePct) &&
		score.CategoryCorrect(CategoryStrategy) >= version.MinCorrectStrategy {
		return TierIntermediate
	}

	return TierBeginner
}
