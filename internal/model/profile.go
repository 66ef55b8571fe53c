package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// StringSet 是以 JSON 数组形式落库的字符串集合。
// 序列化时始终按字典序输出，保证同一集合的存储形式稳定。
type StringSet []string

// Value 实现 driver.Valuer 接口。
func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		s = StringSet{}
	}
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	return json.Marshal(sorted)
}

// Scan 实现 sql.Scanner 接口。
func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		*s = StringSet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 StringSet", value)
	}
	if len(data) == 0 {
		*s = StringSet{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// Contains 判断集合是否包含指定元素。
func (s StringSet) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Union 返回并入若干元素后的新集合，忽略空串，按字典序排列。
func (s StringSet) Union(values ...string) StringSet {
	seen := make(map[string]struct{}, len(s)+len(values))
	for _, v := range s {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make(StringSet, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// UserProfile 对应于数据库中的 'user_profiles' 表，保存每个用户的滚动统计。
// 所有计数都是对该用户全部已导入分片的累计值，
// 更新必须走读取-合并-写回，而不是用单个分片的局部值盲目覆盖。
type UserProfile struct {
	UserID                     string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	TotalConversations         int       `gorm:"not null;default:0" json:"totalConversations"`
	TotalMessages              int       `gorm:"not null;default:0" json:"totalMessages"`
	Languages                  StringSet `gorm:"type:json" json:"languages"`
	ModelsUsed                 StringSet `gorm:"type:json" json:"modelsUsed"`
	AvgTurnsPerConversation    float64   `gorm:"not null;default:0" json:"avgTurnsPerConversation"`
	AvgMessagesPerConversation float64   `gorm:"not null;default:0" json:"avgMessagesPerConversation"`
	FirstSeen                  time.Time `json:"firstSeen"`
	LastSeen                   time.Time `json:"lastSeen"`
	ProfileGenerated           bool      `gorm:"not null;default:false" json:"profileGenerated"`
	CreatedAt                  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
