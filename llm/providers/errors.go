package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/sceneforge/llm"
)

// statusMapping HTTP 状态码 → llm.ErrorCode。
// 不在表中的 5xx 归为可重试的上游错误，其余 4xx 归为请求错误。
var statusMapping = map[int]struct {
	code      llm.ErrorCode
	retryable bool
}{
	http.StatusBadRequest:          {llm.ErrInvalidRequest, false},
	http.StatusUnauthorized:        {llm.ErrUnauthorized, false},
	http.StatusPaymentRequired:     {llm.ErrQuotaExceeded, false},
	http.StatusForbidden:           {llm.ErrForbidden, false},
	http.StatusNotFound:            {llm.ErrInvalidRequest, false}, // 未知模型
	http.StatusRequestTimeout:      {llm.ErrUpstreamTimeout, true},
	http.StatusUnprocessableEntity: {llm.ErrInvalidRequest, false}, // Mistral 参数校验
	http.StatusTooManyRequests:     {llm.ErrRateLimited, true},
	http.StatusBadGateway:          {llm.ErrUpstreamError, true},
	http.StatusServiceUnavailable:  {llm.ErrUpstreamError, true},
	http.StatusGatewayTimeout:      {llm.ErrUpstreamTimeout, true},
	529:                            {llm.ErrModelOverloaded, true},
}

// MapHTTPError 把非 2xx 响应映射为 llm.Error。
// 400 且消息提到 quota/credit 时视为额度用尽。
func MapHTTPError(status int, msg, provider string) *llm.Error {
	e := &llm.Error{
		Code:       llm.ErrInvalidRequest,
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}
	if m, ok := statusMapping[status]; ok {
		e.Code, e.Retryable = m.code, m.retryable
	} else if status >= 500 {
		e.Code, e.Retryable = llm.ErrUpstreamError, true
	}
	if status == http.StatusBadRequest {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			e.Code = llm.ErrQuotaExceeded
		}
	}
	return e
}

// ErrorFromResponse 读取错误响应体并映射
func ErrorFromResponse(resp *http.Response, provider string) *llm.Error {
	return MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), provider)
}

// ReadErrorMessage 提取错误消息，依次尝试
// {"error":{"message","type"}}、顶层 {"message"}（Mistral）与原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var payload struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != nil && payload.Error.Message != "" && payload.Error.Type != "":
			return fmt.Sprintf("%s (type: %s)", payload.Error.Message, payload.Error.Type)
		case payload.Error != nil && payload.Error.Message != "":
			return payload.Error.Message
		case payload.Message != "":
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return "empty error response"
}
