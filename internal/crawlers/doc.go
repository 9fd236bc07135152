// Package crawlers 提供站点发现和逐页测试驱动
//
// # 概述
//
// crawlers包负责两件事: 在发现阶段找出站点中所有需要测试的URL,
// 以及在测试阶段用无头浏览器逐个访问这些URL并写入增量日志。
// 发现阶段基于Colly同步抓取,测试阶段基于go-rod。
//
// # 核心组件
//
// ## Fetcher
//
// 基于Colly的同步抓取器,一次只有一个请求在途。
// 支持自定义头部、HTTP基本认证、限速和响应体过滤。
// 站点爬取时使用 HTMLOnly 过滤器,非HTML资源只读取响应头即可分类。
//
//	fetcher, err := NewFetcher(ctx, config, headerProvider)
//	fetcher.SetBodyFilter(HTMLOnly)
//	resp, err := fetcher.Fetch("https://example.com/")
//
// ## SitemapResolver
//
// 解析 urlset 和 sitemapindex,索引递归展开。
// 同一次解析中已访问的站点地图不会再次抓取,失败只记录警告。
//
//	urls := NewSitemapResolver(fetcher).Resolve(ctx, "https://example.com/sitemap.xml")
//
// ## SiteCrawler
//
// 同主机广度优先爬取,结果分为 HTML / PDF / Office / 其他 四类。
// 分类优先级见 ClassifyResource。
//
//	result, err := NewSiteCrawler(fetcher, maxURLs).Crawl(ctx, "https://example.com/")
//
// ## Frontier
//
// 爬取边界: 先进先出的待爬队列加已访问集合。
// 主机名比较不区分大小写且忽略端口。
//
// ## PageDriver
//
// 内置测试驱动。按分块配置依次访问URL,记录重定向、页面异常、
// 页面中引用的PDF和Office文档,可选地注入检查脚本并按截图模式保存截图。
//
//	driver := NewPageDriver(opts, config, utils.NewLogSet(reportsDir), screenshotsDir)
//	summary, err := driver.Run(ctx)
//
// # 增量日志
//
// PageDriver 只追加日志,从不回读。每个URL写入后立即落盘,
// 驱动进程崩溃时已写入的记录保留,由上层在全部分块结束后统一收尾。
package crawlers
