package model

import "time"

// 六个封闭的行为评分维度。维度集合固定，评分范围 1-10。
const (
	DimPatience             = "patience"
	DimTechnicalDepth       = "technical_depth"
	DimFrustrationTolerance = "frustration_tolerance"
	DimVerbosity            = "verbosity"
	DimPoliteness           = "politeness"
	DimEngagementLevel      = "engagement_level"
)

// CanonicalDimensions 是维度的规范顺序。
// 提示词合成按此顺序遍历，保证相同评分集合产出的提示词逐字节一致。
var CanonicalDimensions = []string{
	DimPatience,
	DimTechnicalDepth,
	DimFrustrationTolerance,
	DimVerbosity,
	DimPoliteness,
	DimEngagementLevel,
}

// IsKnownDimension 判断给定名称是否属于封闭维度集合。
func IsKnownDimension(name string) bool {
	for _, d := range CanonicalDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// DimensionScore 对应于数据库中的 'dimension_scores' 表。
// 以 (user_id, dimension) 为唯一键，每次重新评分整体覆盖，不保留历史。
type DimensionScore struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_user_dim" json:"userId"`
	Dimension       string    `gorm:"type:varchar(50);not null;uniqueIndex:uk_user_dim" json:"dimension"`
	Score           float64   `gorm:"not null" json:"score"`
	Confidence      float64   `gorm:"not null;default:0" json:"confidence"`
	EvidenceSummary string    `gorm:"type:text" json:"evidenceSummary"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (DimensionScore) TableName() string {
	return "dimension_scores"
}
