package domain

import "strings"

// Messages maps each error kind to the text shown to users.
type Messages map[ErrorKind]string

// EnglishMessages is the default table.
var EnglishMessages = Messages{
	KindNetwork:        "Network error, please check your connection",
	KindTimeout:        "Request timed out, please try again later",
	KindUnauthorized:   "You are not signed in or your session has expired",
	KindForbidden:      "You do not have permission to access this resource",
	KindNotFound:       "The requested resource does not exist",
	KindServerError:    "Server error, please try again later",
	KindDefault:        "Request failed, please try again later",
	KindInvalidRequest: "The request could not be sent",
}

// ChineseMessages is the Simplified Chinese table.
var ChineseMessages = Messages{
	KindNetwork:        "网络错误，请检查您的网络连接",
	KindTimeout:        "请求超时，请稍后重试",
	KindUnauthorized:   "用户未授权或登录已过期",
	KindForbidden:      "没有权限访问该资源",
	KindNotFound:       "请求的资源不存在",
	KindServerError:    "服务器错误，请稍后重试",
	KindDefault:        "请求失败，请稍后重试",
	KindInvalidRequest: "请求无效",
}

// MessagesFor selects a table by locale tag ("zh", "zh-CN", ...). Anything
// else gets English.
func MessagesFor(locale string) Messages {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		return ChineseMessages
	}
	return EnglishMessages
}

// Text returns the message for kind, falling back to the default entry.
func (m Messages) Text(kind ErrorKind) string {
	if msg, ok := m[kind]; ok {
		return msg
	}
	if msg, ok := m[KindDefault]; ok {
		return msg
	}
	return EnglishMessages[KindDefault]
}

// Error builds an Error of kind with this table's message.
func (m Messages) Error(kind ErrorKind, status int, cause error) *Error {
	return NewError(kind, status, m.Text(kind), cause)
}
