package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// FilterConfig 筛选配置表，存储一棵完整的筛选条件树
type FilterConfig struct {
	ConfigID        string         `gorm:"type:char(36);primaryKey"`
	Name            string         `gorm:"type:varchar(255);not null"`
	Description     string         `gorm:"type:text"`
	ConditionTree   datatypes.JSON `gorm:"type:json;not null"` // 条件树JSON，根节点为组或叶子
	RulesetVersion  string         `gorm:"type:varchar(50)"`
	Status          string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_fc_status"`
	CreatedByUserID string         `gorm:"type:char(36)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (FilterConfig) TableName() string {
	return "filter_configs"
}

// CandidateProfile 候选人画像表，保存筛选用的结构化事实
type CandidateProfile struct {
	SubmissionUUID    string         `gorm:"type:char(36);primaryKey"`
	CandidateName     string         `gorm:"type:varchar(255)"`
	FactsJSON         datatypes.JSON `gorm:"type:json"` // 扁平键值事实，如 education_level / work_years / skills
	ParsedTextPathOSS string         `gorm:"type:varchar(1024)"` // 简历原文在MinIO中的路径，关键词搜索用
	RawTextMD5        string         `gorm:"type:char(32);index:idx_cp_raw_text_md5"`
	Status            string         `gorm:"type:varchar(50);default:'PENDING_SCREENING';index:idx_cp_status"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CandidateProfile) TableName() string {
	return "candidate_profiles"
}

// ScreeningOutcome 筛选结论表，每个(候选人,配置)组合一条记录
type ScreeningOutcome struct {
	OutcomeID      uint64         `gorm:"primaryKey;autoIncrement"`
	SubmissionUUID string         `gorm:"type:char(36);not null;index:idx_so_submission_uuid;uniqueIndex:idx_so_submission_config,priority:1"`
	FilterConfigID string         `gorm:"type:char(36);not null;index:idx_so_filter_config_id;uniqueIndex:idx_so_submission_config,priority:2"`
	Qualified      bool           `gorm:"not null;index:idx_so_qualified"`
	ReasonText     string         `gorm:"type:text"`
	OutcomesJSON   datatypes.JSON `gorm:"type:json"` // 叶子条件评估明细
	RulesetVersion string         `gorm:"type:varchar(50)"`
	EvaluatedAt    time.Time      `gorm:"type:datetime(6);not null;index:idx_so_evaluated_at"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	FilterConfig     *FilterConfig     `gorm:"foreignKey:FilterConfigID;references:ConfigID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CandidateProfile *CandidateProfile `gorm:"foreignKey:SubmissionUUID;references:SubmissionUUID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ScreeningOutcome) TableName() string {
	return "screening_outcomes"
}

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON Helper function to convert map[string]interface{} to datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToMap 把datatypes.JSON解码回map[string]interface{}
func JSONToMap(j datatypes.JSON) (map[string]interface{}, error) {
	if len(j) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(j, &m); err != nil {
		return nil, err
	}
	return m, nil
}
