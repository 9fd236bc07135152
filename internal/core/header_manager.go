package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/SiteA11y/internal/config"
	"github.com/RecoveryAshes/SiteA11y/internal/models"
	"github.com/RecoveryAshes/SiteA11y/internal/utils"
)

// DefaultUserAgent 发现阶段默认的User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36 SiteA11y"

// HeaderManager 合并发现阶段的请求头部
// 优先级: 默认 < 配置文件 < 命令行, 实现 models.HeaderProvider
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	once    sync.Once
	loadErr error
}

// NewHeaderManager 创建头部管理器
// configFile 为空时读取默认路径 (不存在则忽略)
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	return &HeaderManager{
		defaults:     defaultHeaders(),
		config:       make(http.Header),
		cli:          cli,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// load 只加载并校验一次
func (hm *HeaderManager) load() error {
	hm.once.Do(func() {
		headerConfig, err := hm.configLoader.LoadConfig()
		if err != nil {
			utils.Errorf("加载HTTP头部配置失败: %v", err)
			hm.loadErr = err
			return
		}
		for name, value := range headerConfig.Headers {
			hm.config.Set(name, value)
		}

		for _, h := range []http.Header{hm.defaults, hm.config, hm.cli} {
			if err := hm.validator.Validate(h); err != nil {
				hm.loadErr = err
				return
			}
		}

		if len(hm.config)+len(hm.cli) > 0 {
			utils.Debugf("自定义HTTP头部: %s", hm.redactor.RedactToString(hm.merged()))
		}
	})
	return hm.loadErr
}

func (hm *HeaderManager) merged() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetHeaders 返回合并后的头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.load(); err != nil {
		return nil, err
	}
	return hm.merged(), nil
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() (map[string]string, error) {
	headers, err := hm.GetHeaders()
	if err != nil {
		return nil, err
	}
	return hm.redactor.Redact(headers), nil
}
