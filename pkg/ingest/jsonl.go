// Package ingest 提供 JSONL 数据集的解析与分片切割。
package ingest

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"gail-go/internal/apperr"
	"gail-go/internal/model"
)

// 单行记录的最大字节数，长对话内容可能相当大。
const maxLineBytes = 4 * 1024 * 1024

// ParseJSONL 从 reader 中逐行解析 ConversationRecord。
// 任何一行格式非法都会使整个数据集解析失败，不做部分容忍：
// 坏行必须在分片切割之前被发现，而不是进入导入流程后才暴露。
func ParseJSONL(r io.Reader) ([]model.ConversationRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var records []model.ConversationRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record model.ConversationRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, apperr.Validationf("第 %d 行不是合法的 JSON 记录: %v", lineNo, err)
		}
		if !record.Valid() {
			return nil, apperr.Validationf("第 %d 行缺少必要字段 (user_id/conversation_id/role)", lineNo)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Validationf("读取数据集失败: %v", err)
	}
	return records, nil
}

// SplitRecords 将记录集按固定大小切成连续分片，最后一片可以不满。
// chunkSize 非法时退回默认值 500。
func SplitRecords(records []model.ConversationRecord, chunkSize int) [][]model.ConversationRecord {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	var chunks [][]model.ConversationRecord
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
