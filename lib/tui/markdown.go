// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// The goldmark parser is configured once and shared; Parse keeps its
// state per call.
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
			),
		)
	})
	return markdownParser
}

// MarkdownRenderer renders message bodies as styled terminal text.
// Unlike document markdown, a single newline in a chat message is a
// line break: senders type them on purpose.
type MarkdownRenderer struct {
	theme    Theme
	lip      *lipgloss.Renderer
	codeFmt  string
	disabled bool
}

// NewMarkdownRenderer creates a renderer producing escapes for the
// given color profile. termenv.Ascii disables styling entirely.
func NewMarkdownRenderer(theme Theme, profile termenv.Profile) *MarkdownRenderer {
	lip := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(profile))
	lip.SetColorProfile(profile)
	return &MarkdownRenderer{
		theme:    theme,
		lip:      lip,
		codeFmt:  chromaFormatter(profile),
		disabled: profile == termenv.Ascii,
	}
}

func chromaFormatter(profile termenv.Profile) string {
	switch profile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal16"
	default:
		return "noop"
	}
}

// Render parses input and returns it wrapped to width. The result has
// no trailing newline.
func (markdown *MarkdownRenderer) Render(input string, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	walker := &markdownWalker{
		renderer: markdown,
		source:   source,
		width:    width,
	}
	ast.Walk(document, walker.walk)
	return strings.TrimRight(walker.output.String(), "\n")
}

// markdownWalker accumulates inline content per block and wraps it as
// a unit when the block closes.
type markdownWalker struct {
	renderer *MarkdownRenderer
	source   []byte
	width    int

	output strings.Builder
	inline strings.Builder

	// prefix is prepended to every emitted line (quotes, list
	// continuation). bullet replaces it for the next line only.
	prefix      string
	prefixWidth int
	prefixes    []string
	bullet      string

	bold, italic, strike int
	lists                []listCounter
}

type listCounter struct {
	ordered bool
	next    int
}

func (walker *markdownWalker) style() lipgloss.Style {
	return walker.renderer.lip.NewStyle()
}

func (walker *markdownWalker) render(style lipgloss.Style, content string) string {
	if walker.renderer.disabled {
		return content
	}
	return style.Render(content)
}

func (walker *markdownWalker) contentWidth() int {
	return max(walker.width-walker.prefixWidth, 10)
}

func (walker *markdownWalker) pushPrefix(prefix string) {
	walker.prefixes = append(walker.prefixes, prefix)
	walker.prefix += prefix
	walker.prefixWidth += ansi.StringWidth(prefix)
}

func (walker *markdownWalker) popPrefix() {
	if len(walker.prefixes) == 0 {
		return
	}
	top := walker.prefixes[len(walker.prefixes)-1]
	walker.prefixes = walker.prefixes[:len(walker.prefixes)-1]
	walker.prefix = walker.prefix[:len(walker.prefix)-len(top)]
	walker.prefixWidth -= ansi.StringWidth(top)
}

// emit writes content line by line with the current prefixes.
func (walker *markdownWalker) emit(content string) {
	for _, line := range strings.Split(content, "\n") {
		if walker.bullet != "" {
			walker.output.WriteString(walker.bullet)
			walker.bullet = ""
		} else {
			walker.output.WriteString(walker.prefix)
		}
		walker.output.WriteString(line)
		walker.output.WriteString("\n")
	}
}

func (walker *markdownWalker) flushInline() {
	content := walker.inline.String()
	walker.inline.Reset()
	if content == "" {
		return
	}
	walker.emit(ansi.Wrap(content, walker.contentWidth(), " ,.;-+|"))
}

func (walker *markdownWalker) styledText(content string) string {
	style := walker.style().Foreground(walker.renderer.theme.NormalText)
	if walker.bold > 0 {
		style = style.Bold(true)
	}
	if walker.italic > 0 {
		style = style.Italic(true)
	}
	if walker.strike > 0 {
		style = style.Strikethrough(true)
	}
	return walker.render(style, content)
}

func (walker *markdownWalker) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if !entering {
			walker.flushInline()
		}

	case ast.KindHeading:
		if entering {
			walker.bold++
		} else {
			walker.bold--
			walker.flushInline()
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			walker.renderCode(walker.lines(block), string(block.Language(walker.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			walker.renderCode(walker.lines(node), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			walker.pushPrefix(walker.render(walker.style().Foreground(walker.renderer.theme.QuoteForeground), "> "))
		} else {
			walker.popPrefix()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			walker.lists = append(walker.lists, listCounter{ordered: list.IsOrdered(), next: list.Start})
		} else if len(walker.lists) > 0 {
			walker.lists = walker.lists[:len(walker.lists)-1]
		}

	case ast.KindListItem:
		if entering {
			walker.enterListItem()
		} else {
			walker.popPrefix()
		}

	case ast.KindThematicBreak:
		if entering {
			rule := strings.Repeat("─", walker.contentWidth())
			walker.emit(walker.render(walker.style().Foreground(walker.renderer.theme.BorderColor), rule))
		}

	case ast.KindHTMLBlock:
		if entering {
			walker.emit(walker.render(walker.style().Foreground(walker.renderer.theme.FaintText),
				strings.TrimRight(walker.lines(node), "\n")))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			walker.inline.WriteString(walker.styledText(string(textNode.Segment.Value(walker.source))))
			if textNode.SoftLineBreak() || textNode.HardLineBreak() {
				walker.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			walker.inline.WriteString(walker.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &walker.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &walker.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			walker.strike++
		} else {
			walker.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch inline := child.(type) {
				case *ast.Text:
					code.Write(inline.Segment.Value(walker.source))
				case *ast.String:
					code.Write(inline.Value)
				}
			}
			walker.inline.WriteString(walker.render(walker.style().Foreground(walker.renderer.theme.CodeForeground), code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if !entering {
			destination := string(node.(*ast.Link).Destination)
			if destination != "" {
				walker.inline.WriteString(" " + walker.render(walker.style().Foreground(walker.renderer.theme.FaintText), "<"+destination+">"))
			}
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(walker.source))
			walker.inline.WriteString(walker.render(walker.style().Foreground(walker.renderer.theme.LinkForeground).Underline(true), url))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			walker.inline.WriteString(walker.render(walker.style().Foreground(walker.renderer.theme.FaintText),
				fmt.Sprintf("[image: %s]", image.Destination)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := 0; index < raw.Segments.Len(); index++ {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(walker.source))
			}
			walker.inline.WriteString(walker.render(walker.style().Foreground(walker.renderer.theme.FaintText), html.String()))
		}
	}
	return ast.WalkContinue, nil
}

func (walker *markdownWalker) lines(node ast.Node) string {
	var content strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		content.Write(segment.Value(walker.source))
	}
	return content.String()
}

func (walker *markdownWalker) enterListItem() {
	bullet := "• "
	if len(walker.lists) > 0 {
		top := &walker.lists[len(walker.lists)-1]
		if top.ordered {
			bullet = fmt.Sprintf("%d. ", top.next)
			top.next++
		}
	}
	walker.bullet = walker.prefix + bullet
	walker.pushPrefix(strings.Repeat(" ", ansi.StringWidth(bullet)))
}

// renderCode highlights code with chroma. Unknown languages and
// highlighter failures fall back to the plain code color.
func (walker *markdownWalker) renderCode(code, language string) {
	code = strings.TrimRight(code, "\n")
	plain := walker.render(walker.style().Foreground(walker.renderer.theme.CodeForeground), code)
	if language == "" || walker.renderer.disabled {
		walker.emit(plain)
		return
	}
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, code, language, walker.renderer.codeFmt, walker.renderer.theme.CodeStyle); err != nil {
		walker.emit(plain)
		return
	}
	walker.emit(strings.TrimRight(highlighted.String(), "\n"))
}
