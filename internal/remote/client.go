// Package remote drives the authenticated session against the legacy repair
// web application. The application exposes no API: every write scrapes the
// stateful edit form, extracts its hidden state tokens, merges them with the
// new repair data and posts the reconstructed form back.
//
// One Client serves exactly one batch task. It owns the session cookies and
// two bounded result caches; nothing is shared across tasks, so tasks stay
// fully independent.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
)

// Per-step timeouts. Login and connectivity probes fail fast; the edit page
// and the submission endpoint are slow on the remote side and get more room.
const (
	connectTimeout = 8 * time.Second
	searchTimeout  = 15 * time.Second
	pageTimeout    = 30 * time.Second
	submitTimeout  = 30 * time.Second
)

// cacheSize bounds both per-task caches; FIFO-evicted beyond this.
const cacheSize = 100

// editPageMarker must appear in a fetched edit page: its absence means the
// form did not render (session bounce, error page) and the page is unusable.
const editPageMarker = "ctl00$ContentPlaceHolder1$txtRemarks"

// Remote endpoint paths, fixed by the legacy application.
const (
	pathLogin     = "/InterfaceLibrary/Login/Login.ashx"
	pathRepair    = "/SEWC/Repair/Default.aspx"
	pathSearch    = "/InterfaceLibrary/SEWC/Repair/Default.ashx"
	pathEditPage  = "/SEWC/Repair/RepairOperation.aspx"
	pathSubmit    = "/InterfaceLibrary/SEWC/Repair/RepairOperation.ashx"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// loginStatusRe extracts the login status token from the login response body.
var loginStatusRe = regexp.MustCompile(`loginStatus:(\d+),DefaultPage`)

// Config addresses the remote application and carries the service account.
type Config struct {
	BaseURL       string
	LoginName     string
	LoginPassword string
}

// IDPair is the remote identity of a repair request resolved by search: the
// display RequestID and the uRequestID that addresses its edit page.
type IDPair struct {
	RequestID  string
	URequestID string
}

// Client is the per-task remote session. Not safe for concurrent use; each
// batch worker owns exactly one.
type Client struct {
	httpClient  *http.Client
	cfg         Config
	searchCache *fifoCache[IDPair]
	pageCache   *fifoCache[string]
}

// New creates an unauthenticated client. The cookie jar is empty until
// Authenticate succeeds.
func New(cfg Config) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient:  &http.Client{Jar: jar},
		cfg:         cfg,
		searchCache: newFIFOCache[IDPair](cacheSize),
		pageCache:   newFIFOCache[string](cacheSize),
	}
}

// Authenticate establishes the session: a landing-page GET to seed cookies, a
// credentials POST whose body must carry loginStatus:1, and a GET of the
// protected repair page to confirm the session is live. Any failure aborts
// authentication; the error messages are fixed and feed the classifier.
func (c *Client) Authenticate(ctx context.Context) error {
	resp, body, err := c.get(ctx, c.cfg.BaseURL+"/", connectTimeout)
	if err != nil {
		return translateNetErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("网站访问失败 (HTTP %d)", resp.StatusCode)
	}

	form := url.Values{
		"loginname": {c.cfg.LoginName},
		"loginpwd":  {c.cfg.LoginPassword},
		"stype":     {"login"},
	}
	resp, body, err = c.postForm(ctx, c.cfg.BaseURL+pathLogin, form, connectTimeout, nil)
	if err != nil {
		return translateNetErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("登录请求失败 (HTTP %d)", resp.StatusCode)
	}
	if !loginAccepted(body) {
		return errors.New("登录失败: 用户凭据无效")
	}

	resp, _, err = c.get(ctx, c.cfg.BaseURL+pathRepair, connectTimeout)
	if err != nil {
		return translateNetErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("系统访问失败 (HTTP %d)", resp.StatusCode)
	}

	log.Debug().Str("user", c.cfg.LoginName).Msg("remote session established")
	return nil
}

func loginAccepted(body string) bool {
	for _, m := range loginStatusRe.FindAllStringSubmatch(body, -1) {
		if m[1] == "1" {
			return true
		}
	}
	return false
}

// searchResponse is the jqGrid result envelope of the search endpoint.
type searchResponse struct {
	Records int `json:"records"`
	Rows    []struct {
		SerialNo   string `json:"SerialNo"`
		RequestID  string `json:"RequestID"`
		URequestID string `json:"uRequestID"`
	} `json:"rows"`
}

// Search resolves a product FID to its remote request identity. The result
// is cached per FID; repeated records in a batch hit the cache instead of
// the endpoint. Reports false when the FID has no exactly matching row or
// the endpoint misbehaves — the caller cannot distinguish, and does not need
// to: both mean the record cannot be submitted.
func (c *Client) Search(ctx context.Context, productFID string) (IDPair, bool) {
	if hit, ok := c.searchCache.get(productFID); ok {
		return hit, true
	}

	filters, err := json.Marshal(map[string]any{
		"groupOp": "AND",
		"rules": []map[string]string{
			{"field": "SerialNo", "op": "eq", "data": productFID},
		},
	})
	if err != nil {
		return IDPair{}, false
	}

	form := url.Values{
		"_search": {"true"},
		"nd":      {strconv.FormatInt(time.Now().UnixMilli(), 10)},
		"rows":    {"5"},
		"page":    {"1"},
		"sidx":    {"RequestID"},
		"sord":    {"desc"},
		"filters": {string(filters)},
	}

	resp, body, err := c.postForm(ctx, c.cfg.BaseURL+pathSearch, form, searchTimeout, nil)
	if err != nil {
		log.Debug().Err(err).Str("fid", productFID).Msg("search request failed")
		return IDPair{}, false
	}
	if resp.StatusCode != http.StatusOK {
		return IDPair{}, false
	}

	var result searchResponse
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		log.Debug().Err(err).Str("fid", productFID).Msg("search response unparseable")
		return IDPair{}, false
	}
	if result.Records == 0 {
		return IDPair{}, false
	}

	for _, row := range result.Rows {
		if row.SerialNo == productFID {
			pair := IDPair{RequestID: row.RequestID, URequestID: row.URequestID}
			c.searchCache.put(productFID, pair)
			return pair, true
		}
	}
	return IDPair{}, false
}

// FetchEditPage retrieves the raw edit-page HTML for a request. A page is
// accepted only when it is HTTP 200 and contains the marker field proving
// the form rendered; accepted pages are cached per uRequestID.
func (c *Client) FetchEditPage(ctx context.Context, uRequestID string) (string, bool) {
	cacheKey := "edit_" + uRequestID
	if page, ok := c.pageCache.get(cacheKey); ok {
		return page, true
	}

	editURL := c.cfg.BaseURL + pathEditPage + "?sID=" + url.QueryEscape(uRequestID)
	resp, body, err := c.get(ctx, editURL, pageTimeout)
	if err != nil {
		log.Debug().Err(err).Str("uRequestID", uRequestID).Msg("edit page fetch failed")
		return "", false
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, editPageMarker) {
		return "", false
	}

	c.pageCache.put(cacheKey, body)
	return body, true
}

// Submit posts the merged form. The endpoint returns no structured
// confirmation, so bare HTTP 200 is the only success signal.
func (c *Client) Submit(ctx context.Context, form url.Values) bool {
	headers := map[string]string{
		"Content-Type":     "application/x-www-form-urlencoded; charset=UTF-8",
		"X-Requested-With": "XMLHttpRequest",
	}
	resp, _, err := c.postForm(ctx, c.cfg.BaseURL+pathSubmit, form, submitTimeout, headers)
	if err != nil {
		log.Debug().Err(err).Msg("submission request failed")
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// ProcessRecord runs the three-step protocol for one record: search, scrape
// the edit page, submit the merged form. It never returns an error — every
// failure is reduced to a reason string for the classifier, because a single
// record must not be able to abort the batch.
func (c *Client) ProcessRecord(ctx context.Context, productFID string, rec ledger.Record) (bool, string) {
	pair, found := c.Search(ctx, productFID)
	if !found {
		return false, "未查找到产品FID"
	}

	page, ok := c.FetchEditPage(ctx, pair.URequestID)
	if !ok {
		return false, "无法访问编辑页面"
	}

	existing := extractFormFields(page)
	form := buildSubmission(existing, rec, pair.URequestID)

	if c.Submit(ctx, form) {
		return true, "success"
	}
	return false, "提交失败"
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	return c.do(req, nil)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration, headers map[string]string) (*http.Response, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, headers)
}

func (c *Client) do(req *http.Request, headers map[string]string) (*http.Response, string, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	log.Trace().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("remote request")
	return resp, string(body), nil
}

// translateNetErr converts transport-level failures into the fixed messages
// operators know from the legacy tool. All of them classify as connection
// failures except the bare request timeout, which is carried verbatim.
func translateNetErr(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("连接超时: 网络连接缓慢或不稳定")
	case errors.As(err, &netErr) && netErr.Timeout():
		return errors.New("请求超时: 服务器无响应")
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return errors.New("连接失败: 无法连接到服务器，请检查网络")
		}
		return fmt.Errorf("网络异常: %v", err)
	}
}
