package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Category 题目类别
type Category string

const (
	CategoryFundamental Category = "FUNDAMENTAL" // 基础安全认知
	CategoryStrategy    Category = "STRATEGY"    // 策略应用
	CategoryAdvanced    Category = "ADVANCED"    // 高阶风险
)

// Categories 固定的类别遍历顺序
var Categories = []Category{CategoryFundamental, CategoryStrategy, CategoryAdvanced}

// StrategyClass 策略复杂度类别
type StrategyClass string

const (
	ClassPaper         StrategyClass = "PAPER"          // 模拟盘，无真实资金风险，不受仓位上限约束
	ClassBasic         StrategyClass = "BASIC"          // 单腿买入等基础操作
	ClassIntermediate  StrategyClass = "INTERMEDIATE"   // 备兑、保护性对冲等
	ClassComplex       StrategyClass = "COMPLEX"        // 多腿组合
	ClassUnlimitedRisk StrategyClass = "UNLIMITED_RISK" // 无上限风险（裸卖等）
)

// QuestionDefinition 题目定义，发布后不可变
type QuestionDefinition struct {
	ID             uint            `gorm:"primarykey" json:"-"`
	CatalogVersion string          `gorm:"column:catalog_version;type:varchar(32);uniqueIndex:uk_catalog_question;not null" json:"catalog_version"`
	QuestionID     string          `gorm:"column:question_id;type:varchar(32);uniqueIndex:uk_catalog_question;not null" json:"question_id"`
	Text           string          `gorm:"column:text;type:text" json:"text"`
	Category       Category        `gorm:"column:category;type:varchar(20);not null" json:"category"`
	CorrectOption  string          `gorm:"column:correct_option;type:varchar(8);not null" json:"correct_option"`
	Weight         decimal.Decimal `gorm:"column:weight;type:decimal(6,3);not null" json:"weight"`
	ConceptLabel   string          `gorm:"column:concept_label;type:varchar(128)" json:"concept_label"`
}

// TableName 表名
func (QuestionDefinition) TableName() string {
	return "catalog_questions"
}

// CatalogVersionRecord 题库版本与分级阈值，发布后不可变
// 阈值随版本声明，同一套分级逻辑可表达不同题量的问卷变体
type CatalogVersionRecord struct {
	ID          uint      `gorm:"primarykey" json:"-"`
	Version     string    `gorm:"column:version;type:varchar(32);uniqueIndex;not null" json:"version"`
	PublishedAt time.Time `gorm:"column:published_at;not null" json:"published_at"`

	// 各类别最低答对数下限（含）；不达标直接判为初级
	MinCorrectFundamental int `gorm:"column:min_correct_fundamental;not null" json:"min_correct_fundamental"`
	MinCorrectStrategy    int `gorm:"column:min_correct_strategy;not null" json:"min_correct_strategy"`
	MinCorrectAdvanced    int `gorm:"column:min_correct_advanced;not null" json:"min_correct_advanced"`

	// 加权总分百分比阈值，严格大于才越过边界（压线落入下一级）
	IntermediatePct decimal.Decimal `gorm:"column:intermediate_pct;type:decimal(6,2);not null" json:"intermediate_pct"`
	AdvancedPct     decimal.Decimal `gorm:"column:advanced_pct;type:decimal(6,2);not null" json:"advanced_pct"`
}

// TableName 表名
func (CatalogVersionRecord) TableName() string {
	return "catalog_versions"
}

// MinCorrect 类别对应的答对数下限
func (c *CatalogVersionRecord) MinCorrect(cat Category) int {
	switch cat {
	case CategoryFundamental:
		return c.MinCorrectFundamental
	case CategoryStrategy:
		return c.MinCorrectStrategy
	case CategoryAdvanced:
		return c.MinCorrectAdvanced
	default:
		return 0
	}
}

// PolicyRule 策略类别的准入规则，按题库版本发布，不可变
type PolicyRule struct {
	ID             uint          `gorm:"primarykey" json:"-"`
	CatalogVersion string        `gorm:"column:catalog_version;type:varchar(32);uniqueIndex:uk_catalog_class;not null" json:"catalog_version"`
	Class          StrategyClass `gorm:"column:class;type:varchar(20);uniqueIndex:uk_catalog_class;not null" json:"class"`
	MinTier        Tier          `gorm:"column:min_tier;type:tinyint;not null" json:"min_tier"`
	// 该分级下单笔仓位占组合的最大比例
	MaxPositionFraction decimal.Decimal `gorm:"column:max_position_fraction;type:decimal(6,4);not null" json:"max_position_fraction"`
	// 是否无条件要求逐项确认（无上限风险类别恒为 true）
	RequiresAck bool `gorm:"column:requires_ack;not null" json:"requires_ack"`
	// 确认清单条目，JSON 数组
	Checklist string `gorm:"column:checklist;type:text" json:"-"`
}

// TableName 表名
func (PolicyRule) TableName() string {
	return "catalog_policy_rules"
}

// ChecklistItems 反序列化确认清单
func (p *PolicyRule) ChecklistItems() []string {
	if p.Checklist == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(p.Checklist), &items); err != nil {
		return nil
	}
	return items
}

// SetChecklistItems 序列化确认清单
func (p *PolicyRule) SetChecklistItems(items []string) {
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	p.Checklist = string(data)
}

// StrategyDefinition 具名策略到复杂度类别的映射，发布后不可变
type StrategyDefinition struct {
	ID             uint          `gorm:"primarykey" json:"-"`
	CatalogVersion string        `gorm:"column:catalog_version;type:varchar(32);uniqueIndex:uk_catalog_strategy;not null" json:"catalog_version"`
	Name           string        `gorm:"column:name;type:varchar(64);uniqueIndex:uk_catalog_strategy;not null" json:"name"`
	Class          StrategyClass `gorm:"column:class;type:varchar(20);not null" json:"class"`
	Legs           int           `gorm:"column:legs;not null" json:"legs"`
	MultiExpiry    bool          `gorm:"column:multi_expiry;not null" json:"multi_expiry"`
	UndefinedRisk  bool          `gorm:"column:undefined_risk;not null" json:"undefined_risk"`
	Description    string        `gorm:"column:description;type:varchar(255)" json:"description"`
}

// TableName 表名
func (StrategyDefinition) TableName() string {
	return "catalog_strategies"
}

// Catalog 一个题库版本的完整只读快照：题目、阈值、准入规则、策略目录
type Catalog struct {
	Version    *CatalogVersionRecord
	Questions  []*QuestionDefinition
	Policies   []*PolicyRule
	Strategies []*StrategyDefinition
}

// Question 按题目 ID 查找
func (c *Catalog) Question(questionID string) *QuestionDefinition {
	for _, q := range c.Questions {
		if q.QuestionID == questionID {
			return q
		}
	}
	return nil
}

// PolicyFor 按策略类别查找准入规则
func (c *Catalog) PolicyFor(class StrategyClass) *PolicyRule {
	for _, p := range c.Policies {
		if p.Class == class {
			return p
		}
	}
	return nil
}

// StrategyByName 按策略名查找
func (c *Catalog) StrategyByName(name string) *StrategyDefinition {
	for _, s := range c.Strategies {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// TotalWeight 类别权重合计；cat 为空串时合计全部
func (c *Catalog) TotalWeight(cat Category) decimal.Decimal {
	total := decimal.Zero
	for _, q := range c.Questions {
		if cat == "" || q.Category == cat {
			total = total.Add(q.Weight)
		}
	}
	return total
}

// QuestionCount 类别题目数
func (c *Catalog) QuestionCount(cat Category) int {
	n := 0
	for _, q := range c.Questions {
		if q.Category == cat {
			n++
		}
	}
	return n
}
