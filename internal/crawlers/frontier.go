package crawlers

import (
	"strings"

	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// Frontier 爬取边界
// 职责: 管理待爬URL (先进先出) 和已访问集合,只接受与种子同主机名的URL
// 单线程使用,不需要加锁
type Frontier struct {
	// 待处理URL队列
	pending []string

	// 已访问URL标记集合 (键为规范化URL)
	visited map[string]bool

	// 目标主机名 (用于跨域过滤, 不区分大小写)
	baseHost string
}

// NewFrontier 创建爬取边界
func NewFrontier(baseHost string) *Frontier {
	return &Frontier{
		pending:  make([]string, 0, 64),
		visited:  make(map[string]bool),
		baseHost: strings.ToLower(baseHost),
	}
}

// Push 添加URL到待爬队列
// 返回是否真正入队: 非 http/https、非同主机或已访问的URL被过滤
func (f *Frontier) Push(rawURL string) bool {
	normalized := utils.NormalizeURL(rawURL)
	if !utils.IsHTTPURL(normalized) {
		return false
	}

	// 检查跨域
	if !f.SameHost(normalized) {
		return false
	}

	// 检查是否已访问
	if f.visited[utils.URLKey(normalized)] {
		return false
	}

	f.pending = append(f.pending, normalized)
	return true
}

// Pop 取出队首URL
func (f *Frontier) Pop() (string, bool) {
	if len(f.pending) == 0 {
		return "", false
	}
	next := f.pending[0]
	f.pending[0] = ""
	f.pending = f.pending[1:]
	return next, true
}

// SameHost 判断URL是否与种子同主机名
func (f *Frontier) SameHost(rawURL string) bool {
	host := utils.URLHostname(rawURL)
	return host != "" && strings.EqualFold(host, f.baseHost)
}

// MarkVisited 标记URL为已访问
func (f *Frontier) MarkVisited(rawURL string) {
	f.visited[utils.URLKey(rawURL)] = true
}

// IsVisited 检查URL是否已访问
func (f *Frontier) IsVisited(rawURL string) bool {
	return f.visited[utils.URLKey(rawURL)]
}

// PendingCount 返回当前待处理URL数量
func (f *Frontier) PendingCount() int {
	return len(f.pending)
}

// VisitedCount 返回已访问URL数量
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
