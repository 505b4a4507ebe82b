package domain

import "strings"

// localChars 邮箱本地部分允许的字符集
const localChars = "abcdefghijklmnopqrstuvwxyz0123456789._+-"

// NormalizeAddress 归一化邮件地址：去除空白与尖括号并转为小写。
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

// ExtractLocalPart 从收件地址中提取本地部分。
//
// 地址先经过 NormalizeAddress 归一化；本地部分取第一个 @ 之前的
// 子串。地址不含 @、本地部分或域名为空、或本地部分含非法字符时
// 返回 ErrInvalidRecipient。
//
// 返回值:
//   - local: 本地部分（小写）
//   - address: 归一化后的完整地址（小写）
func ExtractLocalPart(addr string) (local string, address string, err error) {
	address = NormalizeAddress(addr)

	at := strings.Index(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", ErrInvalidRecipient
	}

	local = address[:at]
	if len(local) > 64 {
		return "", "", ErrInvalidRecipient
	}
	for _, r := range local {
		if !strings.ContainsRune(localChars, r) {
			return "", "", ErrInvalidRecipient
		}
	}

	return local, address, nil
}
