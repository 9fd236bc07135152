package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

var (
	resultsCSVFields   = []string{"url", "id", "impact", "tags", "help", "description", "helpUrl", "html", "target", "failureSummary"}
	documentCSVFields  = []string{"url", "documentTitle", "code", "type", "typeCode", "message", "context", "selector"}
	exceptionCSVFields = []string{"url", "error"}
	pdfCSVFields       = []string{"url", "pdf"}
	msOfficeCSVFields  = []string{"url", "msoffice"}
	redirectCSVFields  = []string{"from", "to"}
)

// ProjectCSV 把已收尾的日志转换成CSV, 返回写入的文件
// results.csv 和 summary.csv 总是生成, 其余文件只在有数据时生成
func ProjectCSV(reportsDir string) ([]string, error) {
	written := make([]string, 0, 6)

	pages, err := readPageResults(filepath.Join(reportsDir, models.LogResults.FileName()))
	if err != nil {
		return written, err
	}

	resultsPath := filepath.Join(reportsDir, "results.csv")
	if err := writeCSV(resultsPath, resultsCSVFields, resultRows(pages)); err != nil {
		return written, err
	}
	written = append(written, resultsPath)

	header, rows := summaryRows(pages)
	summaryPath := filepath.Join(reportsDir, "summary.csv")
	if err := writeCSV(summaryPath, header, rows); err != nil {
		return written, err
	}
	written = append(written, summaryPath)

	listLogs := []struct {
		category models.LogCategory
		fields   []string
	}{
		{models.LogExceptions, exceptionCSVFields},
		{models.LogPDF, pdfCSVFields},
		{models.LogMSOffice, msOfficeCSVFields},
	}
	for _, l := range listLogs {
		rows, err := listLogRows(filepath.Join(reportsDir, l.category.FileName()), l.fields)
		if err != nil {
			return written, err
		}
		if len(rows) == 0 {
			continue
		}
		path := filepath.Join(reportsDir, string(l.category)+".csv")
		if err := writeCSV(path, l.fields, rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	redirects, err := redirectRows(filepath.Join(reportsDir, models.LogRedirects.FileName()))
	if err != nil {
		return written, err
	}
	if len(redirects) > 0 {
		path := filepath.Join(reportsDir, "redirects.csv")
		if err := writeCSV(path, redirectCSVFields, redirects); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	utils.Infof("✅ 生成了 %d 个CSV文件", len(written))
	return written, nil
}

// readPageResults 读取 results.json, 跳过结束标记和缺少 currentUrl 的条目
func readPageResults(path string) ([]models.PageResult, error) {
	entries, err := utils.ReadLogArray(path)
	if err != nil {
		return nil, err
	}

	pages := make([]models.PageResult, 0, len(entries))
	for _, raw := range entries {
		var page models.PageResult
		if err := json.Unmarshal(raw, &page); err != nil {
			utils.Warnf("跳过无法解析的结果记录: %v", err)
			continue
		}
		if page.CurrentURL == "" {
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// resultRows 每个违规节点一行
func resultRows(pages []models.PageResult) [][]string {
	rows := make([][]string, 0)
	for _, page := range pages {
		for _, rule := range page.Data {
			for _, node := range rule.Nodes {
				rows = append(rows, []string{
					page.CurrentURL,
					rule.ID,
					rule.Impact,
					strings.Join(rule.Tags, "\n"),
					rule.Help,
					rule.Description,
					rule.HelpURL,
					node.HTML,
					joinTarget(node.Target),
					node.FailureSummary,
				})
			}
		}
	}
	return rows
}

// summaryRows 每页一行: 违规规则数 + 每条规则的节点数
// 规则列按首次出现的顺序排列
func summaryRows(pages []models.PageResult) ([]string, [][]string) {
	header := []string{"url", "total"}
	column := make(map[string]int)

	counts := make([]map[string]int, len(pages))
	for i, page := range pages {
		counts[i] = make(map[string]int)
		for _, rule := range page.Data {
			if _, ok := column[rule.ID]; !ok {
				column[rule.ID] = len(header)
				header = append(header, rule.ID)
			}
			counts[i][rule.ID] += len(rule.Nodes)
		}
	}

	rows := make([][]string, 0, len(pages))
	for i, page := range pages {
		row := make([]string, len(header))
		row[0] = page.CurrentURL
		row[1] = strconv.Itoa(len(page.Data))
		for id, n := range counts[i] {
			row[column[id]] = strconv.Itoa(n)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// listLogRows 展开列表型日志 (每条记录是一个对象数组)
func listLogRows(path string, fields []string) ([][]string, error) {
	entries, err := utils.ReadLogArray(path)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0)
	for _, raw := range entries {
		var items []map[string]interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			utils.Warnf("跳过无法解析的日志记录 [%s]: %v", filepath.Base(path), err)
			continue
		}
		for _, item := range items {
			row := make([]string, len(fields))
			for i, field := range fields {
				row[i] = cellValue(item[field])
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// redirectRows 只保留同时包含 from 和 to 的记录
func redirectRows(path string) ([][]string, error) {
	entries, err := utils.ReadLogArray(path)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0)
	for _, raw := range entries {
		var r models.Redirect
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if r.From == "" || r.To == "" {
			continue
		}
		rows = append(rows, []string{r.From, r.To})
	}
	return rows, nil
}

// documentRows 文档测试结果, 每个问题一行
func documentRows(results []models.DocumentResult) [][]string {
	rows := make([][]string, 0)
	for _, result := range results {
		var report models.DocumentReport
		if err := json.Unmarshal(result.Data, &report); err != nil {
			continue
		}
		for _, issue := range report.Issues {
			rows = append(rows, []string{
				result.CurrentURL,
				report.DocumentTitle,
				issue.Code,
				issue.Type,
				strconv.Itoa(issue.TypeCode),
				issue.Message,
				issue.Context,
				issue.Selector,
			})
		}
	}
	return rows
}

// joinTarget 把选择器列表拼成多行文本
func joinTarget(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return strings.Join(flat, "\n")
	}
	var nested []interface{}
	if err := json.Unmarshal(raw, &nested); err == nil {
		parts := make([]string, len(nested))
		for i, v := range nested {
			parts[i] = cellValue(v)
		}
		return strings.Join(parts, "\n")
	}
	return strings.Trim(string(raw), `"`)
}

func cellValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = cellValue(item)
		}
		return strings.Join(parts, " > ")
	default:
		return fmt.Sprint(val)
	}
}

// writeCSV 写入带表头的CSV文件
func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败 [%s]: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("写入CSV失败 [%s]: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("关闭CSV文件失败 [%s]: %w", path, err)
	}
	return nil
}
