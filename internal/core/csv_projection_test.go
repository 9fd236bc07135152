package core

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开CSV失败: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("解析CSV失败: %v", err)
	}
	return records
}

// writeFinalizedLogs 写入一组已收尾的日志
func writeFinalizedLogs(t *testing.T, dir string) {
	t.Helper()
	logs := utils.NewLogSet(dir)
	if err := logs.Init(); err != nil {
		t.Fatal(err)
	}

	records := []struct {
		category models.LogCategory
		record   interface{}
	}{
		{models.LogResults, models.PageResult{
			CurrentURL: "https://example.com/",
			Data: []models.RuleViolation{
				{
					ID: "image-alt", Impact: "critical", Tags: []string{"wcag2a", "wcag111"},
					Help: "Images must have alternate text", HelpURL: "https://dequeuniversity.com/rules/axe/image-alt",
					Nodes: []models.ViolationNode{
						{HTML: `<img src="a.png">`, Target: []byte(`["img.logo"]`), FailureSummary: "Fix any"},
						{HTML: `<img src="b.png">`, Target: []byte(`[["iframe", "img"]]`)},
					},
				},
				{ID: "color-contrast", Impact: "serious", Nodes: []models.ViolationNode{{HTML: "<p>"}}},
			},
		}},
		{models.LogResults, models.PageResult{CurrentURL: "https://example.com/clean", Data: []models.RuleViolation{}}},
		{models.LogResults, map[string]string{"note": "no url"}},
		{models.LogRedirects, models.Redirect{From: "https://example.com/old", To: "https://example.com/new"}},
		{models.LogRedirects, models.Redirect{From: "https://example.com/partial"}},
		{models.LogExceptions, []models.PageException{{URL: "https://example.com/", Error: "TypeError: x"}}},
		{models.LogPDF, []models.PDFReference{
			{URL: "https://example.com/", PDF: "https://example.com/a.pdf"},
			{URL: "https://example.com/", PDF: "https://example.com/b.pdf"},
		}},
		{models.LogPDF, []models.PDFReference{}},
	}
	for _, r := range records {
		if err := logs.Append(r.category, r.record); err != nil {
			t.Fatal(err)
		}
	}
	if err := logs.Finalize(); err != nil {
		t.Fatal(err)
	}
}

func TestProjectCSV(t *testing.T) {
	dir := t.TempDir()
	writeFinalizedLogs(t, dir)

	written, err := ProjectCSV(dir)
	if err != nil {
		t.Fatalf("ProjectCSV() 失败: %v", err)
	}

	var names []string
	for _, p := range written {
		names = append(names, filepath.Base(p))
	}
	want := []string{"results.csv", "summary.csv", "exceptions.csv", "pdf.csv", "redirects.csv"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("生成的文件 = %v, 期望 %v", names, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "msoffice.csv")); !os.IsNotExist(err) {
		t.Error("没有数据的日志不应生成CSV")
	}

	t.Run("results.csv每个节点一行", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, "results.csv"))
		if len(rows) != 4 {
			t.Fatalf("期望表头加 3 行, 得到 %d", len(rows))
		}
		if !reflect.DeepEqual(rows[0], resultsCSVFields) {
			t.Errorf("表头 = %v", rows[0])
		}
		if rows[1][3] != "wcag2a\nwcag111" {
			t.Errorf("tags 应按换行拼接: %q", rows[1][3])
		}
		if rows[1][8] != "img.logo" || rows[2][8] != "iframe > img" {
			t.Errorf("target 列错误: %q / %q", rows[1][8], rows[2][8])
		}
	})

	t.Run("summary.csv每页一行", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, "summary.csv"))
		wantRows := [][]string{
			{"url", "total", "image-alt", "color-contrast"},
			{"https://example.com/", "2", "2", "1"},
			{"https://example.com/clean", "0", "", ""},
		}
		if !reflect.DeepEqual(rows, wantRows) {
			t.Errorf("summary.csv = %v, 期望 %v", rows, wantRows)
		}
	})

	t.Run("列表日志展开", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, "pdf.csv"))
		if len(rows) != 3 || rows[2][1] != "https://example.com/b.pdf" {
			t.Errorf("pdf.csv = %v", rows)
		}
	})

	t.Run("重定向只保留完整记录", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, "redirects.csv"))
		if len(rows) != 2 || rows[1][0] != "https://example.com/old" {
			t.Errorf("redirects.csv = %v", rows)
		}
	})
}

func TestProjectCSV_Empty(t *testing.T) {
	dir := t.TempDir()
	logs := utils.NewLogSet(dir)
	if err := logs.Init(); err != nil {
		t.Fatal(err)
	}
	if err := logs.Finalize(); err != nil {
		t.Fatal(err)
	}

	written, err := ProjectCSV(dir)
	if err != nil {
		t.Fatalf("ProjectCSV() 失败: %v", err)
	}
	if len(written) != 2 {
		t.Errorf("空日志应只生成 results.csv 和 summary.csv, 得到 %v", written)
	}
	if rows := readCSV(t, filepath.Join(dir, "results.csv")); len(rows) != 1 {
		t.Errorf("results.csv 应只有表头, 得到 %d 行", len(rows))
	}
}

func TestProjectCSV_NotFinalized(t *testing.T) {
	dir := t.TempDir()
	logs := utils.NewLogSet(dir)
	if err := logs.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := ProjectCSV(dir); err == nil {
		t.Error("未收尾的日志应返回错误")
	}
}

func TestDocumentRows(t *testing.T) {
	results := []models.DocumentResult{
		{
			CurrentURL: "https://example.com/a.pdf",
			Data: []byte(`{"documentTitle":"年度报告","issues":[
				{"code":"WCAG2AA.H37","type":"error","typeCode":1,"message":"缺少alt","context":"<img>","selector":"img"}]}`),
		},
		{CurrentURL: "https://example.com/b.pdf", Data: []byte(`not json`)},
	}
	rows := documentRows(results)
	if len(rows) != 1 {
		t.Fatalf("期望 1 行, 得到 %d", len(rows))
	}
	want := []string{"https://example.com/a.pdf", "年度报告", "WCAG2AA.H37", "error", "1", "缺少alt", "<img>", "img"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Errorf("documentRows() = %v", rows[0])
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("写入表头和数据", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		if err := writeCSV(path, []string{"from", "to"}, [][]string{{"https://a.com/", "https://b.com/"}}); err != nil {
			t.Fatalf("writeCSV() 失败: %v", err)
		}
		want := [][]string{{"from", "to"}, {"https://a.com/", "https://b.com/"}}
		if got := readCSV(t, path); !reflect.DeepEqual(got, want) {
			t.Errorf("CSV内容 = %v, 期望 %v", got, want)
		}
	})

	t.Run("目录不存在", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.csv")
		if err := writeCSV(path, []string{"url"}, nil); err == nil {
			t.Error("期望创建文件失败")
		}
	})

	t.Run("磁盘写满时报错", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("没有 /dev/full")
		}
		if err := writeCSV("/dev/full", []string{"url"}, [][]string{{"https://a.com/"}}); err == nil {
			t.Error("写入失败应返回错误")
		}
	})
}
