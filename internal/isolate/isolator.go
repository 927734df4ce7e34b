// Package isolate 在送入翻译模型前把代码、图片、表格和公式替换为占位符，并在翻译后还原。
package isolate

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Isolator 一个隔离会话（一个批次的一次翻译）。不要跨批次复用。
type Isolator struct {
	vault *Vault
}

// New 为输入文本开启一个新会话
func New(source string) *Isolator {
	return &Isolator{vault: NewVault(source)}
}

// Vault 返回会话的保险箱
func (iso *Isolator) Vault() *Vault {
	return iso.vault
}

// Protect 把 text 中 rule 的所有不重叠匹配替换为新的占位符
func (iso *Isolator) Protect(text string, rule Rule) (string, error) {
	out, err := rule.Pattern.ReplaceFunc(text, func(m regexp2.Match) string {
		return iso.vault.Put(rule.Category, m.String())
	}, -1, -1)
	if err != nil {
		return text, fmt.Errorf("protect %s: %w", rule.Name, err)
	}
	return out, nil
}

// ProtectAll 按顺序执行所有保护规则
func (iso *Isolator) ProtectAll(text string, rules []Rule) (string, error) {
	var err error
	for _, rule := range rules {
		text, err = iso.Protect(text, rule)
		if err != nil {
			return text, err
		}
	}
	return text, nil
}

// Restore 把会话中的每个占位符替换回原始内容（字面替换）
func (iso *Isolator) Restore(text string) string {
	return iso.vault.Restore(text)
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
