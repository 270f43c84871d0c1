// Package classify maps raw error text onto the small set of failure
// categories recorded in the ledger status suffix. The remote system reports
// failures as free-form messages (Chinese and English mixed), so
// categorization is a keyword match rather than error-type inspection.
//
// The category strings are part of the ledger file contract and must not be
// changed: retry tooling and operators rely on them verbatim.
package classify

import "strings"

// Ledger status categories.
const (
	CategoryConnection = "连接失败"
	CategoryNotFound   = "未查找到产品FID"
	CategorySubmission = "提交失败"
	CategoryFormat     = "数据格式错误"
)

// maxRawLen is the rune budget for messages that match no rule and are
// carried into the ledger verbatim.
const maxRawLen = 50

type rule struct {
	keywords []string
	category string
}

// rules are evaluated in order against the lower-cased message; the first
// keyword hit wins. Connection problems take precedence over lookup and
// submission problems because a dropped session tends to surface as all
// three at once.
var rules = []rule{
	{
		keywords: []string{
			"connection", "connect", "timeout", "network", "连接",
			"login", "登录", "cookie", "session", "http",
		},
		category: CategoryConnection,
	},
	{
		keywords: []string{
			"search", "not found", "no result", "搜索", "未找到",
			"product", "fid", "serial",
		},
		category: CategoryNotFound,
	},
	{
		keywords: []string{"submit", "post", "form", "data", "提交", "数据"},
		category: CategorySubmission,
	},
}

// Categorize maps an error message to a ledger status category. An empty
// message is treated as a generic submission failure. Messages that match no
// rule are returned as-is, truncated to 50 runes. Categorize never fails.
func Categorize(msg string) string {
	if msg == "" {
		return CategorySubmission
	}

	lower := strings.ToLower(msg)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}

	runes := []rune(msg)
	if len(runes) > maxRawLen {
		return string(runes[:maxRawLen])
	}
	return msg
}
