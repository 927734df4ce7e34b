// Package fidelity 统计 Markdown 的结构元素，用来发现双语输出里丢失的代码、图片、表格和公式。
package fidelity

import (
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Counts 各类结构元素的数量
type Counts struct {
	CodeBlocks int `json:"code_blocks"`
	Images     int `json:"images"`
	Tables     int `json:"tables"`
	MathBlocks int `json:"math_blocks"`
	InlineMath int `json:"inline_math"`
}

// Shortfall 输出中数量少于原文的类别
type Shortfall struct {
	Category string `json:"category"`
	Source   int    `json:"source"`
	Output   int    `json:"output"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		mathjax.MathJax,
		meta.Meta,
	),
)

// Census 解析 Markdown 并计数
func Census(src string) Counts {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var c Counts
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock:
			c.CodeBlocks++
		case *ast.Image:
			c.Images++
		case *east.Table:
			c.Tables++
		case *mathjax.MathBlock:
			c.MathBlocks++
		case *mathjax.InlineMath:
			c.InlineMath++
		}
		return ast.WalkContinue, nil
	})
	return c
}

// Compare 找出输出里数量变少的类别。双语输出会重复行内公式，所以只关心"变少"。
func Compare(src, out string) []Shortfall {
	a, b := Census(src), Census(out)
	var shortfalls []Shortfall
	check := func(name string, s, o int) {
		if o < s {
			shortfalls = append(shortfalls, Shortfall{Category: name, Source: s, Output: o})
		}
	}
	check("code_blocks", a.CodeBlocks, b.CodeBlocks)
	check("images", a.Images, b.Images)
	check("tables", a.Tables, b.Tables)
	check("math_blocks", a.MathBlocks, b.MathBlocks)
	check("inline_math", a.InlineMath, b.InlineMath)
	return shortfalls
}
