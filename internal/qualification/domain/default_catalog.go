package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCatalogVersion 内置 12 题压缩问卷的版本号
const DefaultCatalogVersion = "2025.1"

// DefaultCatalog 内置 12 题压缩问卷：基础 4 题（权重 2）、策略 4 题（权重 1.5）、
// 高阶 4 题（权重 1），阈值中级 50 / 高级 75，下限 基础 3 / 策略 2 / 高阶 3。
// 仅用于开发环境初始化，生产题库通过发布接口导入。
func DefaultCatalog(publishedAt time.Time) *Catalog {
	w2 := decimal.NewFromInt(2)
	w15 := decimal.NewFromFloat(1.5)
	w1 := decimal.NewFromInt(1)

	version := &CatalogVersionRecord{
		Version:               DefaultCatalogVersion,
		PublishedAt:           publishedAt,
		MinCorrectFundamental: 3,
		MinCorrectStrategy:    2,
		MinCorrectAdvanced:    3,
		IntermediatePct:       decimal.NewFromInt(50),
		AdvancedPct:           decimal.NewFromInt(75),
	}

	type q struct {
		id      string
		cat     Category
		correct string
		weight  decimal.Decimal
		concept string
	}
	defs := []q{
		{"q1", CategoryFundamental, "B", w2, "Basic Risk: Maximum loss on a long options position"},
		{"q2", CategoryFundamental, "B", w2, "Covered Calls: Income generation from existing holdings"},
		{"q3", CategoryFundamental, "B", w2, "Time Decay (Theta): How options lose value over time"},
		{"q4", CategoryFundamental, "B", w2, "Portfolio Protection: Using puts to hedge downside risk"},
		{"q5", CategoryStrategy, "B", w15, "Delta: Option price sensitivity to underlying movement"},
		{"q6", CategoryStrategy, "B", w15, "Assignment Mechanics: What happens when ITM options expire"},
		{"q7", CategoryStrategy, "C", w15, "Cash-Secured Puts: Strategic entry at target price"},
		{"q8", CategoryStrategy, "B", w15, "Implied Volatility: Pre-earnings IV expansion"},
		{"q9", CategoryAdvanced, "C", w1, "Expiration Management: Actively managing ITM positions near expiry"},
		{"q10", CategoryAdvanced, "B", w1, "Gamma: Accelerating delta sensitivity near expiry"},
		{"q11", CategoryAdvanced, "B", w1, "Multi-Leg Strategies: Iron condor mechanics and profit conditions"},
		{"q12", CategoryAdvanced, "B", w1, "Volatility Crush: Post-earnings IV collapse"},
	}

	questions := make([]*QuestionDefinition, 0, len(defs))
	for _, d := range defs {
		questions = append(questions, &QuestionDefinition{
			CatalogVersion: DefaultCatalogVersion,
			QuestionID:     d.id,
			Category:       d.cat,
			CorrectOption:  d.correct,
			Weight:         d.weight,
			ConceptLabel:   d.concept,
		})
	}

	unlimitedChecklist := []string{
		"I understand this strategy carries unlimited or very large loss potential; losses are not capped by a premium paid.",
		"I understand margin calls can force position closure at an unfavourable price.",
		"I understand volatile underlyings can gap through my strike overnight.",
	}
	oversizeChecklist := []string{
		"I understand the requested position exceeds the size cap for my qualification tier.",
		"I accept concentration risk above the recommended fraction of my portfolio.",
	}

	// 模拟盘不动真实资金，初级即可用且不设仓位上限
	paper := &PolicyRule{CatalogVersion: DefaultCatalogVersion, Class: ClassPaper, MinTier: TierBeginner, MaxPositionFraction: decimal.NewFromInt(1)}
	basic := &PolicyRule{CatalogVersion: DefaultCatalogVersion, Class: ClassBasic, MinTier: TierBeginner, MaxPositionFraction: decimal.NewFromFloat(0.02)}
	basic.SetChecklistItems(oversizeChecklist)
	intermediate := &PolicyRule{CatalogVersion: DefaultCatalogVersion, Class: ClassIntermediate, MinTier: TierIntermediate, MaxPositionFraction: decimal.NewFromFloat(0.10)}
	intermediate.SetChecklistItems(oversizeChecklist)
	complexRule := &PolicyRule{CatalogVersion: DefaultCatalogVersion, Class: ClassComplex, MinTier: TierAdvanced, MaxPositionFraction: decimal.NewFromFloat(0.20)}
	complexRule.SetChecklistItems(oversizeChecklist)
	unlimited := &PolicyRule{CatalogVersion: DefaultCatalogVersion, Class: ClassUnlimitedRisk, MinTier: TierAdvanced, MaxPositionFraction: decimal.NewFromFloat(0.05), RequiresAck: true}
	unlimited.SetChecklistItems(unlimitedChecklist)

	strategies := []*StrategyDefinition{
		{CatalogVersion: DefaultCatalogVersion, Name: "buy_calls_puts", Class: ClassBasic, Legs: 1, Description: "Single-leg directional bet; max loss is the premium paid."},
		{CatalogVersion: DefaultCatalogVersion, Name: "paper_trading", Class: ClassPaper, Legs: 0, Description: "Risk-free practice on a portfolio replica."},
		{CatalogVersion: DefaultCatalogVersion, Name: "covered_calls", Class: ClassIntermediate, Legs: 1, Description: "Sell call against 100 owned shares; caps upside, generates income."},
		{CatalogVersion: DefaultCatalogVersion, Name: "protective_puts", Class: ClassIntermediate, Legs: 1, Description: "Buy put to insure a long stock/ETF position."},
		{CatalogVersion: DefaultCatalogVersion, Name: "cash_secured_puts", Class: ClassIntermediate, Legs: 1, Description: "Sell put with full cash collateral."},
		{CatalogVersion: DefaultCatalogVersion, Name: "vertical_spread", Class: ClassIntermediate, Legs: 2, Description: "Buy and sell calls (or puts) at different strikes, same expiry."},
		{CatalogVersion: DefaultCatalogVersion, Name: "collar", Class: ClassIntermediate, Legs: 2, Description: "Protective put + covered call on the same position."},
		{CatalogVersion: DefaultCatalogVersion, Name: "iron_condor", Class: ClassComplex, Legs: 4, Description: "Sell OTM call spread + sell OTM put spread."},
		{CatalogVersion: DefaultCatalogVersion, Name: "butterfly", Class: ClassComplex, Legs: 3, Description: "Three-strike strategy that profits if stock pins near the middle strike."},
		{CatalogVersion: DefaultCatalogVersion, Name: "calendar_spread", Class: ClassComplex, Legs: 2, MultiExpiry: true, Description: "Same strike, different expiries."},
		{CatalogVersion: DefaultCatalogVersion, Name: "diagonal_spread", Class: ClassComplex, Legs: 2, MultiExpiry: true, Description: "Different strikes and different expiries."},
		{CatalogVersion: DefaultCatalogVersion, Name: "ratio_spread", Class: ClassUnlimitedRisk, Legs: 2, UndefinedRisk: true, Description: "Unequal long vs short contracts; one side becomes uncovered."},
		{CatalogVersion: DefaultCatalogVersion, Name: "naked_options", Class: ClassUnlimitedRisk, Legs: 1, UndefinedRisk: true, Description: "Short options with no offsetting position; unlimited loss potential."},
	}

	return &Catalog{
		Version:    version,
		Questions:  questions,
		Policies:   []*PolicyRule{paper, basic, intermediate, complexRule, unlimited},
		Strategies: strategies,
	}
}
