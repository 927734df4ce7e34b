package isolate

import (
	"fmt"
	"strings"
)

// Category 占位符类别
type Category string

const (
	CategoryCode       Category = "CODE"
	CategoryImage      Category = "IMG"
	CategoryTable      Category = "TBL"
	CategoryBlockMath  Category = "EQ_BLOCK"
	CategoryInlineMath Category = "EQ_INLINE"
)

// Key 生成 [[__<CATEGORY>_<seq>__]] 形式的占位符
func Key(cat Category, seq int) string {
	return fmt.Sprintf("[[__%s_%d__]]", cat, seq)
}

// Vault 占位符 -> 原始片段 的映射，只属于一个隔离会话
type Vault struct {
	// reserved 是会话的原始输入，生成的 key 不能在其中出现
	reserved string
	entries  map[string]string
	// keys 按生成顺序保存，还原时倒序遍历
	keys    []string
	counter int
}

// NewVault 创建保险箱，reserved 为会话输入文本
func NewVault(reserved string) *Vault {
	return &Vault{
		reserved: reserved,
		entries:  make(map[string]string),
	}
}

// Put 保存内容并返回新生成的 key。序号在会话内单调递增，不会复用；
// 若某个序号对应的 key 已经自然出现在输入中则跳过该序号。
func (v *Vault) Put(cat Category, content string) string {
	for {
		key := Key(cat, v.counter)
		v.counter++
		if strings.Contains(v.reserved, key) {
			continue
		}
		v.entries[key] = content
		v.keys = append(v.keys, key)
		return key
	}
}

// Get 查找 key 对应的原始内容
func (v *Vault) Get(key string) (string, bool) {
	content, ok := v.entries[key]
	return content, ok
}

// Len 返回保存的片段数
func (v *Vault) Len() int {
	return len(v.keys)
}

// Keys 按生成顺序返回所有 key
func (v *Vault) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Restore 用字面替换还原所有 key。后生成的片段可能包含先生成的 key
// （例如行内公式里夹着代码占位符），所以从后往前还原。
func (v *Vault) Restore(text string) string {
	for i := len(v.keys) - 1; i >= 0; i-- {
		key := v.keys[i]
		if !strings.Contains(text, key) {
			continue
		}
		text = strings.ReplaceAll(text, key, v.entries[key])
	}
	return text
}
