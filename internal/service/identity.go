package service

import "strings"

// Identity 认证方提供的身份：稳定的用户 ID 以及若干资料字段
type Identity struct {
	UserID    string
	Username  string
	FirstName string
	Email     string
	ImageURL  string
	Role      string
}

const anonymousName = "Anonymous"

// DefaultDisplayName 依次取 username、first name、邮箱本地部分，否则 "Anonymous"
func (id Identity) DefaultDisplayName() string {
	if s := strings.TrimSpace(id.Username); s != "" {
		return truncateName(s)
	}
	if s := strings.TrimSpace(id.FirstName); s != "" {
		return truncateName(s)
	}
	if at := strings.Index(id.Email, "@"); at > 0 {
		return truncateName(id.Email[:at])
	}
	return anonymousName
}

// NormalizeUserID 去掉认证方前缀，例如 "https://issuer|user_123" -> "user_123"
func NormalizeUserID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "|"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func truncateName(s string) string {
	r := []rune(s)
	if len(r) > maxDisplayNameLen {
		return string(r[:maxDisplayNameLen])
	}
	return s
}
