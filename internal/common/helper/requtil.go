package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Bet helpers --------

// SubBetParsed 单个子注入参
type SubBetParsed struct {
	Position int    `json:"position"` // 位置 1..10
	Number   int    `json:"number"`   // 号码 1..10
	Amount   string `json:"amount"`   // 金额字符串
}

// BetParsed 为解析后的投注入参（与控制器/服务层解耦）
type BetParsed struct {
	SubBets        []SubBetParsed `json:"sub_bets"`
	TotalAmount    string         `json:"total_amount"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// ParseBetFromJSON 解析 JSON 到 BetParsed。失败返回 false 与错误消息。
func ParseBetFromJSON(r io.Reader) (BetParsed, bool, string) {
	var out BetParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BetParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBetFromForm 表单形式：sub_bets 传 JSON 数组字符串
func ParseBetFromForm(ctx *beegocontext.Context) (BetParsed, bool, string) {
	var out BetParsed
	raw := strings.TrimSpace(ctx.Input.Query("sub_bets"))
	if raw == "" {
		return BetParsed{}, false, "sub_bets required"
	}
	if err := json.Unmarshal([]byte(raw), &out.SubBets); err != nil {
		return BetParsed{}, false, "sub_bets must be a json array"
	}
	out.TotalAmount = strings.TrimSpace(ctx.Input.Query("total_amount"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

// ValidateBet 对通用字段做入口级校验（适用于 JSON 与 FORM）
// 形状细节（位置/号码范围、总额匹配）由服务层统一判定
func ValidateBet(in *BetParsed) (bool, string) {
	if len(in.SubBets) == 0 {
		return false, "sub_bets required"
	}
	if len(in.SubBets) > 100 {
		return false, "too many sub_bets"
	}
	if strings.TrimSpace(in.TotalAmount) == "" {
		return false, "total_amount required"
	}
	if !IsMoneyFormat(in.TotalAmount) {
		return false, "total_amount must be numeric with up to 2 decimals"
	}
	if in.IdempotencyKey == "" {
		return false, "idempotency_key required"
	}
	if len(in.IdempotencyKey) > 64 || len(in.TotalAmount) > 32 {
		return false, "invalid request"
	}
	for i := range in.SubBets {
		if !IsMoneyFormat(in.SubBets[i].Amount) {
			return false, fmt.Sprintf("sub_bets[%d].amount must be numeric with up to 2 decimals", i)
		}
	}
	return true, ""
}

// ParseAndValidateBet 按 Content-Type 自动解析并做统一校验
func ParseAndValidateBet(ctx *beegocontext.Context) (BetParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBetFromJSON, ParseBetFromForm)
	if !ok {
		return BetParsed{}, false, msg
	}
	if ok, msg := ValidateBet(&out); !ok {
		return BetParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Draw helpers --------

// DrawParsed 人工开奖入参：round_number 为 0 表示开最早到期的回合
type DrawParsed struct {
	RoundNumber int64 `json:"round_number"`
}

func ParseDrawFromJSON(r io.Reader) (DrawParsed, bool, string) {
	var out DrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DrawParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseDrawFromForm(ctx *beegocontext.Context) (DrawParsed, bool, string) {
	var out DrawParsed
	if rs := strings.TrimSpace(ctx.Input.Query("round_number")); rs != "" {
		v, err := strconv.ParseInt(rs, 10, 64)
		if err != nil || v < 0 {
			return DrawParsed{}, false, "round_number must be a non-negative integer"
		}
		out.RoundNumber = v
	}
	return out, true, ""
}

// ParseAndValidateDraw 按 Content-Type 自动解析并校验
func ParseAndValidateDraw(ctx *beegocontext.Context) (DrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDrawFromJSON, ParseDrawFromForm)
	if !ok {
		return DrawParsed{}, false, msg
	}
	if out.RoundNumber < 0 {
		return DrawParsed{}, false, "round_number must be a non-negative integer"
	}
	return out, true, ""
}

// -------- Adjust helpers --------

// AdjustParsed 人工调账入参
type AdjustParsed struct {
	PlatformUserID string `json:"platform_user_id"`
	Amount         string `json:"amount"` // 可带负号
	Remark         string `json:"remark"`
}

func ParseAdjustFromJSON(r io.Reader) (AdjustParsed, bool, string) {
	var out AdjustParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return AdjustParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseAdjustFromForm(ctx *beegocontext.Context) (AdjustParsed, bool, string) {
	var out AdjustParsed
	out.PlatformUserID = strings.TrimSpace(ctx.Input.Query("platform_user_id"))
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Remark = strings.TrimSpace(ctx.Input.Query("remark"))
	return out, true, ""
}

// ValidateAdjust 调账金额允许负数，但格式必须是最多两位小数
func ValidateAdjust(in *AdjustParsed) (bool, string) {
	if in.PlatformUserID == "" {
		return false, "platform_user_id required"
	}
	amt := strings.TrimPrefix(strings.TrimSpace(in.Amount), "-")
	if amt == "" || !IsMoneyFormat(amt) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Remark) > 255 {
		return false, "remark too long"
	}
	return true, ""
}

func ParseAndValidateAdjust(ctx *beegocontext.Context) (AdjustParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseAdjustFromJSON, ParseAdjustFromForm)
	if !ok {
		return AdjustParsed{}, false, msg
	}
	if ok, msg := ValidateAdjust(&out); !ok {
		return AdjustParsed{}, false, msg
	}
	return out, true, ""
}
