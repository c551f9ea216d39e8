// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tgmarkup provides functionality to convert Markdown text to
// Telegram-flavored message markup.
package tgmarkup

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"rsc.io/markdown"
)

// Message represents a Telegram message with text and entities for formatting.
// It is designed to be marshaled into JSON for use with the Telegram Bot API.
// See https://core.telegram.org/bots/api#message for more information.
type Message struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Type represents the type of a Telegram message entity.
// See https://core.telegram.org/bots/api#messageentity for a complete list of
// supported types.
type Type string

// Constants for Telegram message entity types produced by this package.
const (
	URL           Type = "url" // https://telegram.org
	Bold          Type = "bold"
	Italic        Type = "italic"
	Strikethrough Type = "strikethrough"
	Blockquote    Type = "blockquote"
	Code          Type = "code" // monowidth string
	Pre           Type = "pre"  // monowidth block
	TextLink      Type = "text_link"
)

// Entity represents a Telegram message entity. It defines the type and
// location of a formatted part of the message text. See
// https://core.telegram.org/bots/api#messageentity.
type Entity struct {
	Type Type `json:"type"`
	// Offset in UTF-16 code units to the start of the entity.
	Offset int `json:"offset"`
	// Length of the entity in UTF-16 code units.
	Length int `json:"length"`
	// Optional. For “text_link” only, URL that will be opened after user taps on
	// the text.
	URL string `json:"url,omitempty"`
	// Optional. For “pre” only, the programming language of the entity text.
	Language string `json:"language,omitempty"`
}

// Len returns the length of the text in UTF-16 code units, as Telegram
// counts it.
func (m Message) Len() int { return utf16len(m.Text) }

// FromMarkdown converts a Markdown text to a [Message]. Top-level blocks are
// separated by an empty line, list items get bullets or numbers.
func FromMarkdown(text string) Message {
	p := markdown.Parser{
		Strikethrough: true,
		AutoLinkText:  true,
	}
	md := p.Parse(text)

	c := new(converter)
	for i, b := range md.Blocks {
		if i > 0 {
			c.sb.WriteString("\n")
		}
		c.block(b)
	}
	return c.message()
}

// Escape escapes ASCII punctuation in s so that it appears literally when
// inserted into Markdown passed to [FromMarkdown].
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type converter struct {
	sb       strings.Builder
	entities []Entity
}

func (c *converter) offset() int { return utf16len(c.sb.String()) }

func (c *converter) wrap(typ Type, f func()) *Entity {
	offset := c.offset()
	f()
	c.entities = append(c.entities, Entity{
		Type:   typ,
		Offset: offset,
		Length: c.offset() - offset,
	})
	return &c.entities[len(c.entities)-1]
}

// message trims trailing newlines and drops entities left empty by that.
func (c *converter) message() Message {
	text := strings.TrimRight(c.sb.String(), "\n")
	total := utf16len(text)

	var entities []Entity
	for _, e := range c.entities {
		if e.Offset+e.Length > total {
			e.Length = total - e.Offset
		}
		if e.Length <= 0 {
			continue
		}
		entities = append(entities, e)
	}
	return Message{Text: text, Entities: entities}
}

func (c *converter) block(b markdown.Block) {
	switch block := b.(type) {
	case *markdown.Paragraph:
		c.inlines(block.Text.Inline)
		c.sb.WriteString("\n")
	case *markdown.Quote:
		c.wrap(Blockquote, func() {
			for _, b := range block.Blocks {
				c.block(b)
			}
		})
	case *markdown.CodeBlock:
		e := c.wrap(Pre, func() {
			c.sb.WriteString(strings.Join(block.Text, "\n"))
		})
		e.Language = block.Info
		c.sb.WriteString("\n")
	case *markdown.Heading:
		c.wrap(Bold, func() { c.inlines(block.Text.Inline) })
		c.sb.WriteString("\n")
	case *markdown.List:
		n := block.Start
		for _, itemBlock := range block.Items {
			item, ok := itemBlock.(*markdown.Item)
			if !ok {
				continue
			}
			if block.Bullet == '.' || block.Bullet == ')' {
				c.sb.WriteString(strconv.Itoa(n) + string(block.Bullet) + " ")
				n++
			} else {
				c.sb.WriteString("• ")
			}
			for _, b := range item.Blocks {
				c.block(b)
			}
		}
	case *markdown.ThematicBreak:
		c.sb.WriteString("⸻\n")
	}
}

func (c *converter) inlines(inlines markdown.Inlines) {
	for _, inline := range inlines {
		c.inline(inline)
	}
}

func (c *converter) inline(i markdown.Inline) {
	switch inline := i.(type) {
	case *markdown.Plain:
		c.sb.WriteString(inline.Text)
	case *markdown.Escaped:
		c.sb.WriteString(inline.Text)
	case *markdown.Strong:
		c.wrap(Bold, func() { c.inlines(inline.Inner) })
	case *markdown.Emph:
		c.wrap(Italic, func() { c.inlines(inline.Inner) })
	case *markdown.Del:
		c.wrap(Strikethrough, func() { c.inlines(inline.Inner) })
	case *markdown.Link:
		e := c.wrap(TextLink, func() { c.inlines(inline.Inner) })
		e.URL = inline.URL
	case *markdown.AutoLink:
		c.wrap(URL, func() { c.sb.WriteString(inline.Text) })
	case *markdown.Code:
		c.wrap(Code, func() { c.sb.WriteString(inline.Text) })
	case *markdown.SoftBreak, *markdown.HardBreak:
		c.sb.WriteString("\n")
	}
}

func utf16len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
