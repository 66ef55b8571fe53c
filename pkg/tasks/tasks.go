// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ScoreGenerationTask 表示一个异步的用户评分任务。
// 批量评分入口为每个已建档用户投递一条该任务，由后台消费者逐个执行。
type ScoreGenerationTask struct {
	UserID string `json:"user_id"`
	// Reason 记录任务来源（batch / manual），仅用于日志排查。
	Reason string `json:"reason,omitempty"`
}
